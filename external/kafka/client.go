package kafka

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/qubic/go-ledger-engine/entities"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

type KafkaClient interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

type Client struct {
	kcl    KafkaClient
	logger *zap.SugaredLogger
}

func NewClient(kafkaClient KafkaClient, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		kcl:    kafkaClient,
		logger: logger,
	}
}

// PublishAccounts produces one record per account snapshot, keyed by client id.
func (kc *Client) PublishAccounts(ctx context.Context, accounts []entities.Account) error {

	wg := sync.WaitGroup{}
	errorChannel := make(chan error, len(accounts))

	for _, account := range accounts {

		record, err := createAccountRecord(account)
		if err != nil {
			kc.logger.Errorw("Error while creating account record", "client", account.Client, "error", err)
			errorChannel <- err
			break
		}

		wg.Add(1)
		kc.kcl.Produce(ctx, record, func(_ *kgo.Record, err error) {
			defer wg.Done()
			if err != nil {
				kc.logger.Errorw("Error while producing account record", "client", account.Client, "error", err)
				errorChannel <- err
				return
			}
			errorChannel <- nil
		})
	}

	wg.Wait()
	close(errorChannel)

	for err := range errorChannel {
		if err != nil {
			return errors.New("encountered errors while producing account records")
		}
	}

	return nil
}

func createAccountRecord(account entities.Account) (*kgo.Record, error) {

	payload, err := json.Marshal(account)
	if err != nil {
		return nil, fmt.Errorf("marshalling account to json: %w", err)
	}
	key := make([]byte, 2)
	binary.BigEndian.PutUint16(key, account.Client)

	return &kgo.Record{
		Key:   key,
		Value: payload,
	}, nil

}
