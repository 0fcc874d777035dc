package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/jellydator/ttlcache/v3"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qubic/go-ledger-engine/api"
	"github.com/qubic/go-ledger-engine/business/domain/ledger"
	"github.com/qubic/go-ledger-engine/entities"
	"github.com/qubic/go-ledger-engine/external/csvfile"
	"github.com/qubic/go-ledger-engine/external/elastic"
	"github.com/qubic/go-ledger-engine/external/kafka"
	"github.com/qubic/go-ledger-engine/infrastructure/store/memdb"
	"github.com/qubic/go-ledger-engine/infrastructure/store/pebbledb"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const prefix = "QUBIC_LEDGER_ENGINE"

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	config := zap.NewProductionConfig()
	// this is just for sugar, to display a readable date instead of an epoch time
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	// optional, the environment and flags take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "loading .env file")
	}

	var cfg struct {
		Args  conf.Args
		Index struct {
			// memory, csv (re-scan the input file), pebble or pebble-memory
			Backend     string `conf:"default:memory"`
			StoreFolder string `conf:"default:store"`
		}
		Output struct {
			Csv            bool          `conf:"default:true"`
			PublishTimeout time.Duration `conf:"default:5m"`
		}
		Server struct {
			Enabled     bool          `conf:"default:false"`
			ListenAddr  string        `conf:"default:0.0.0.0:8000"`
			SnapshotTTL time.Duration `conf:"default:1s"`
			KeepServing bool          `conf:"default:false"`
		}
		Kafka struct {
			Enabled          bool     `conf:"default:false"`
			BootstrapServers []string `conf:"default:localhost:9092"`
			AccountsTopic    string   `conf:"default:qubic-ledger-accounts"`
		}
		Elastic struct {
			Enabled   bool          `conf:"default:false"`
			Address   string        `conf:"default:http://localhost:9200"`
			IndexName string        `conf:"default:qubic-ledger-accounts"`
			Timeout   time.Duration `conf:"default:30s"`
		}
		MetricsNamespace string `conf:"default:qubic_ledger"`
	}

	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config usage")
			}
			fmt.Println(usage)
			return nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil
		}
		return errors.Wrap(err, "parsing config")
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return errors.Wrap(err, "generating config for output")
	}
	log.Printf("main: Config :\n%v\n", out)

	inputFile := cfg.Args.Num(0)
	if inputFile == "" {
		return errors.New("no input file was provided")
	}

	index, closeIndex, err := createIndex(cfg.Index.Backend, cfg.Index.StoreFolder, inputFile)
	if err != nil {
		return errors.Wrap(err, "creating transaction index")
	}
	defer func() {
		if err := closeIndex(); err != nil {
			sLogger.Errorw("error closing transaction index", "error", err)
		}
	}()

	source, err := csvfile.OpenFile(inputFile)
	if err != nil {
		return errors.Wrap(err, "opening transaction source")
	}
	defer source.Close()

	var publishers []ledger.AccountPublisher
	if cfg.Output.Csv {
		publishers = append(publishers, csvfile.NewWriter(os.Stdout))
	}

	if cfg.Kafka.Enabled {
		kafkaMetrics := kprom.NewMetrics(cfg.MetricsNamespace,
			kprom.Registerer(prometheus.DefaultRegisterer),
			kprom.Gatherer(prometheus.DefaultGatherer))
		kcl, err := kgo.NewClient(
			kgo.WithHooks(kafkaMetrics),
			kgo.DefaultProduceTopic(cfg.Kafka.AccountsTopic),
			kgo.SeedBrokers(cfg.Kafka.BootstrapServers...),
			kgo.ProducerBatchCompression(kgo.ZstdCompression()),
		)
		if err != nil {
			return errors.Wrap(err, "creating kafka client")
		}
		defer kcl.Close()
		publishers = append(publishers, kafka.NewClient(kcl, sLogger))
	}

	if cfg.Elastic.Enabled {
		elasticClient, err := elastic.NewClient(cfg.Elastic.Address, cfg.Elastic.IndexName, cfg.Elastic.Timeout)
		if err != nil {
			return errors.Wrap(err, "creating elastic client")
		}
		publishers = append(publishers, elasticClient)
	}

	metrics := ledger.NewMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
	engine := ledger.NewEngine(index, metrics, sLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		accountsCache := ttlcache.New[string, []entities.Account](
			ttlcache.WithTTL[string, []entities.Account](cfg.Server.SnapshotTTL),
			ttlcache.WithDisableTouchOnHit[string, []entities.Account](), // don't refresh ttl upon getting the item from cache
		)
		go accountsCache.Start()
		defer accountsCache.Stop()

		mux := http.NewServeMux()
		api.NewHandler(engine, accountsCache, sLogger).Register(mux)
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
		defer server.Close()

		go func() {
			log.Printf("main: Starting account, status and metrics endpoint on [%s]", cfg.Server.ListenAddr)
			serverErr <- server.ListenAndServe()
		}()
	}

	procErrors := make(chan error, 1)
	go func() {
		procErrors <- engine.Process(ctx, source)
	}()

	select {
	case <-ctx.Done():
		<-procErrors
		return errors.New("shutting down")
	case err := <-serverErr:
		return errors.Wrap(err, "server error")
	case err := <-procErrors:
		if err != nil {
			return errors.Wrap(err, "processing error")
		}
	}

	publishCtx, cancel := context.WithTimeout(ctx, cfg.Output.PublishTimeout)
	defer cancel()
	if err := engine.Publish(publishCtx, publishers...); err != nil {
		return err
	}

	if !cfg.Server.Enabled || !cfg.Server.KeepServing {
		return nil
	}

	sLogger.Infow("Processing finished, serving account snapshots until shutdown")
	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return errors.Wrap(err, "server error")
	}
}

func createIndex(backend, storeFolder, inputFile string) (ledger.TransactionIndex, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case "memory":
		return memdb.NewIndex(), noop, nil
	case "csv":
		return csvfile.NewIndex(inputFile), noop, nil
	case "pebble":
		store, err := pebbledb.NewIndexStore(storeFolder)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "pebble-memory":
		store, err := pebbledb.NewInMemoryIndexStore()
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown index backend [%s]", backend)
	}
}
