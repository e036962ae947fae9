package di

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"FinTrain/internal/domain/repository"
	"FinTrain/internal/handler/api"
	internalrepo "FinTrain/internal/repository"
	"FinTrain/internal/services/progress"
	"FinTrain/internal/usecase"
	"FinTrain/pkg/cache"
	pkgch "FinTrain/pkg/clickhouse"
	"FinTrain/pkg/config"
	xhttp "FinTrain/pkg/http"
	pkgkafka "FinTrain/pkg/kafka"
	applogger "FinTrain/pkg/logger"
	"FinTrain/pkg/metrics"
	"FinTrain/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideRegistry creates a private Prometheus registry with process and Go
// runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideCandleSource selects the candle source named by data.source.
func ProvideCandleSource(cfg *config.Config, l *applogger.Logger) (repository.CandleSource, func(), error) {
	switch cfg.Data.Source {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close error", applogger.Error(err))
			}
		}

		from, to, err := cfg.TimeRange()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		src, err := internalrepo.NewCHCandleSource(client, internalrepo.CHSourceParams{
			Database:  cfg.ClickHouse.Database,
			Table:     cfg.ClickHouse.Table,
			Symbol:    cfg.Data.Symbol,
			Timeframe: repository.NormalizeTimeframe(cfg.Data.Timeframe),
			From:      from,
			To:        to,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		src.SetLogger(l)
		return src, cleanup, nil
	default:
		src := internalrepo.NewCSVCandleSource(cfg.Data.Path, cfg.Data.Symbol)
		src.SetLogger(l)
		return src, func() {}, nil
	}
}

// ProvideCheckpointStore opens the checkpoint database. It returns a nil store
// when checkpoints are disabled.
func ProvideCheckpointStore(cfg *config.Config, l *applogger.Logger) (repository.CheckpointStore, func(), error) {
	if !cfg.Checkpoint.Enabled {
		return nil, func() {}, nil
	}
	db, err := internalrepo.OpenCheckpointDB(cfg.Checkpoint.Driver, cfg.Checkpoint.DSN)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil {
			l.Warn("checkpoint db close error", applogger.Error(err))
		}
	}
	return internalrepo.NewCheckpointStore(db), cleanup, nil
}

// ProvideTracker creates the in-memory run status served over HTTP.
func ProvideTracker(cfg *config.Config) *progress.Tracker {
	return progress.NewTracker("", cfg.Training.NumEpochs)
}

// ProvideRedisStatusStore connects the Redis run status mirror. It returns
// nil when redis.enabled is off.
func ProvideRedisStatusStore(cfg *config.Config, l *applogger.Logger) (*internalrepo.RedisStatusStore, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return internalrepo.NewRedisStatusStore(rc, cfg.Redis.TTL, cfg.Training.NumEpochs), cleanup, nil
}

// ProvideHub creates the websocket hub behind the progress stream.
func ProvideHub(l *applogger.Logger) *xhttp.Hub {
	return xhttp.NewHub(l)
}

// Batch events on the live stream are limited to a burst of streamBatchBurst
// per phase, refilled at streamBatchRate per second.
const (
	streamBatchBurst = 20
	streamBatchRate  = 10
)

// ProvideProgressSink fans progress events out to the console, the tracker,
// the live stream and the optional Kafka and Redis sinks.
func ProvideProgressSink(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	tracker *progress.Tracker,
	hub *xhttp.Hub,
	redisStatus *internalrepo.RedisStatusStore,
) (repository.ProgressSink, func(), error) {
	fan := progress.NewFanout(progress.NewConsoleSink(os.Stdout), tracker)
	if cfg.Server.Enabled {
		fan.Add(progress.NewThrottle(progress.NewStreamSink(hub), streamBatchBurst, streamBatchRate))
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Kafka.Enabled {
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithTopic(cfg.Kafka.Topic),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithBatch(cfg.Kafka.BatchSize, cfg.Kafka.Linger),
			pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
			pkgkafka.WithAsync(cfg.Kafka.Async),
			pkgkafka.WithRegisterer(reg),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				l.Warn("kafka producer close error", applogger.Error(err))
			}
		})
		fan.Add(internalrepo.NewKafkaProgressSink(producer))
		l.Info("kafka progress sink enabled", applogger.String("topic", producer.Topic()))
	}

	if redisStatus != nil {
		fan.Add(redisStatus)
	}

	return fan, cleanup, nil
}

// ProvideTrainer creates the training use case.
func ProvideTrainer(
	cfg *config.Config,
	source repository.CandleSource,
	sink repository.ProgressSink,
	m repository.Metrics,
	store repository.CheckpointStore,
	l *applogger.Logger,
) *usecase.Trainer {
	var opts []usecase.TrainerOption
	if store != nil {
		opts = append(opts, usecase.WithCheckpoints(store, cfg.Checkpoint.LoadName, cfg.Checkpoint.SaveName))
	}
	return usecase.NewTrainer(source, sink, m, l, cfg.Training, opts...)
}

// ProvideStatusHandler creates the status and progress stream routes. With
// Redis enabled the last stored run is served until this process starts one.
func ProvideStatusHandler(
	l *applogger.Logger,
	tracker *progress.Tracker,
	hub *xhttp.Hub,
	redisStatus *internalrepo.RedisStatusStore,
) *api.StatusHandler {
	var opts []api.StatusHandlerOption
	if redisStatus != nil {
		opts = append(opts, api.WithStatusFallback(redisStatus))
	}
	return api.NewStatusHandler(l, tracker, hub, opts...)
}

// ProvideHTTPServer creates the observability server. It is only started
// when server.enabled is set.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, h *api.StatusHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(metricsPath, reg, reg),
	)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	trainer *usecase.Trainer,
	srv *xhttp.Server,
	hub *xhttp.Hub,
) *server.App {
	return server.New(cfg, l, trainer, srv, hub)
}
