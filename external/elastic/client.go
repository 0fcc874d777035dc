package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/qubic/go-ledger-engine/entities"
)

type Client struct {
	index    string
	esClient *elasticsearch.Client
}

type bulkResponse struct {
	Errors bool `json:"errors"`
}

func NewClient(address, index string, timeout time.Duration) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{address},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: timeout,
		},
	}

	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %v", err)
	}

	return &Client{
		index:    index,
		esClient: esClient,
	}, nil
}

// PublishAccounts indexes one document per account, using the client id as document id so that a
// rerun replaces the previous snapshot.
func (es *Client) PublishAccounts(ctx context.Context, accounts []entities.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	var buf bytes.Buffer

	for _, account := range accounts {
		// Metadata line for each document
		meta := []byte(fmt.Sprintf(`{ "index": { "_index": "%s", "_id": "%d" } }%s`, es.index, account.Client, "\n"))
		buf.Write(meta)

		data, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("error serializing account: %w", err)
		}
		buf.Write(data)
		buf.Write([]byte("\n")) // Add a newline between documents
	}

	// Send the bulk request
	res, err := es.esClient.Bulk(bytes.NewReader(buf.Bytes()),
		es.esClient.Bulk.WithContext(ctx),
		es.esClient.Bulk.WithRefresh("true"))
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	// Check response for errors
	if res.IsError() {
		return fmt.Errorf("bulk request error: %s", res.String())
	}

	var response bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}
	if response.Errors {
		return fmt.Errorf("bulk request contained failed items for index [%s]", es.index)
	}

	return nil
}
