package di

import (
    "context"
    "fmt"
    "os"
    "time"

    "EconDash/internal/domain/models"
    "EconDash/internal/domain/repository"
    "EconDash/internal/handler/api"
    "EconDash/internal/handler/ws"
    internalrepo "EconDash/internal/repository"
    "EconDash/internal/service/ratelimit"
    "EconDash/internal/services/features"
    "EconDash/internal/services/synthetic"
    "EconDash/internal/usecase"
    "EconDash/pkg/cache"
    pkgch "EconDash/pkg/clickhouse"
    "EconDash/pkg/config"
    xhttp "EconDash/pkg/http"
    pkgkafka "EconDash/pkg/kafka"
    applogger "EconDash/pkg/logger"
    "EconDash/pkg/metrics"
    "EconDash/pkg/server"
    "EconDash/pkg/util"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse when enabled; nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(5, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideObservationStore mirrors snapshots into ClickHouse; nil without a client.
func ProvideObservationStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.CHObservationStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHObservationStore(ch, cfg.ClickHouse.BatchSize, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideRedis connects to Redis when enabled; nil otherwise.
func ProvideRedis(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideQueryCache picks the query cache: Redis behind an in-process L1 when
// Redis is on, in-process only otherwise, nil when caching is disabled.
func ProvideQueryCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	if !cfg.Cache.Enabled {
		return nil, func() {}
	}
	var svc cache.Service
	if rc != nil {
		svc = cache.NewLayeredCache(rc, cfg.Cache.L1TTL, cache.WithMemoryMaxSize(cfg.Cache.MaxEntries))
	} else {
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxEntries))
	}
	return svc, func() { _ = svc.Close() }
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvidePublisher announces rebuilds on the events topic; nil without Kafka.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideKafkaConsumer creates a consumer for refresh commands when Kafka is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	host, _ := os.Hostname()
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.ConsumerGroupID(host)),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCSVTableStore reads the preferred file and writes the output file.
func ProvideCSVTableStore(cfg *config.Config, l *applogger.Logger) *internalrepo.CSVTableStore {
	return internalrepo.NewCSVTableStore(cfg.Pipeline.PreferredPath, cfg.Pipeline.OutputPath, l)
}

// ProvideFREDProvider wires the FRED client and the optional per-series files.
func ProvideFREDProvider(cfg *config.Config, l *applogger.Logger) (*internalrepo.FREDProvider, error) {
	start, ok := util.ParseDate(cfg.FRED.ObservationStart)
	if !ok {
		return nil, fmt.Errorf("fred.observation_start: invalid date %q", cfg.FRED.ObservationStart)
	}
	client := internalrepo.NewFREDClient(
		xhttp.NewClient(xhttp.WithTimeout(cfg.FRED.Timeout)),
		cfg.FRED.BaseURL,
		cfg.FRED.APIKey,
		cfg.FRED.RequestsPerSecond,
	)
	var store repository.RawSeriesStore
	if cfg.Pipeline.RawDir != "" || cfg.Pipeline.CleanDir != "" {
		store = internalrepo.NewSeriesFileStore(cfg.Pipeline.RawDir, cfg.Pipeline.CleanDir)
	}
	series := make([]internalrepo.FREDSeries, 0, len(cfg.FRED.Series))
	for _, s := range cfg.FRED.Series {
		series = append(series, internalrepo.FREDSeries{ID: s.ID, Name: s.Name, Unit: s.Unit})
	}
	return internalrepo.NewFREDProvider(client, series, start, cfg.FRED.Concurrency, store, l), nil
}

// ProvideSyntheticProvider generates up to EndDate, or up to today on each
// build when EndDate is empty.
func ProvideSyntheticProvider(cfg *config.Config) (*internalrepo.SyntheticProvider, error) {
	freq, err := models.ParseFrequency(cfg.Pipeline.Frequency)
	if err != nil {
		return nil, fmt.Errorf("pipeline.frequency: %w", err)
	}
	start, _ := util.ParseDate(cfg.Pipeline.StartDate)
	end := func() time.Time { return models.Day(time.Now()) }
	if d, ok := util.ParseDate(cfg.Pipeline.EndDate); ok {
		end = func() time.Time { return d }
	}
	return internalrepo.NewSyntheticProvider(cfg.Pipeline.Seed, start, end, freq, syntheticSpecs(cfg.Pipeline.Indicators)), nil
}

// ProvideSourceChain orders providers as configured.
func ProvideSourceChain(
	cfg *config.Config,
	fred *internalrepo.FREDProvider,
	file *internalrepo.CSVTableStore,
	ch *internalrepo.CHObservationStore,
	synth *internalrepo.SyntheticProvider,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.SourceChain, error) {
	providers := make([]repository.TableProvider, 0, len(cfg.Pipeline.Providers))
	for _, name := range cfg.Pipeline.Providers {
		switch name {
		case "fred":
			providers = append(providers, fred)
		case "file":
			providers = append(providers, file)
		case "clickhouse":
			if ch == nil {
				return nil, fmt.Errorf("provider clickhouse requires clickhouse.enabled")
			}
			providers = append(providers, ch)
		case "synthetic":
			providers = append(providers, synth)
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return usecase.NewSourceChain(providers, m, l), nil
}

// ProvideDeriver turns the derived metric config into feature specs.
func ProvideDeriver(cfg *config.Config, l *applogger.Logger) (*usecase.Deriver, error) {
	freq, err := models.ParseFrequency(cfg.Pipeline.Frequency)
	if err != nil {
		return nil, fmt.Errorf("pipeline.frequency: %w", err)
	}
	specs := make([]features.Spec, 0, len(cfg.Pipeline.Derived))
	for _, d := range cfg.Pipeline.Derived {
		specs = append(specs, features.Spec{Kind: features.Kind(d.Kind), Source: d.Source, Target: d.Target, Window: d.Window})
	}
	return usecase.NewDeriver(cfg.Pipeline.ForwardFill, specs, freq, l), nil
}

// ProvideHub creates the websocket hub.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvidePipeline assembles the build pipeline with its sinks and notifiers.
func ProvidePipeline(
	cfg *config.Config,
	chain *usecase.SourceChain,
	deriver *usecase.Deriver,
	file *internalrepo.CSVTableStore,
	ch *internalrepo.CHObservationStore,
	pub repository.EventPublisher,
	hub *ws.Hub,
	rc *cache.RedisCache,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	opts := []usecase.PipelineOption{
		usecase.WithSinks(file),
		usecase.WithNotifiers(hub),
	}
	if ch != nil {
		opts = append(opts, usecase.WithSinks(ch))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	if rc != nil {
		opts = append(opts, usecase.WithLocker(rc, cfg.Redis.LockTTL))
	}
	if cfg.Pipeline.StrictSinks {
		opts = append(opts, usecase.WithStrictSinks())
	}
	return usecase.NewPipeline(chain, deriver, m, l, opts...)
}

// ProvideQueryUseCase serves reads from the pipeline's snapshots.
func ProvideQueryUseCase(cfg *config.Config, p *usecase.Pipeline, c cache.Service, m repository.Metrics, l *applogger.Logger) *usecase.QueryUseCase {
	return usecase.NewQueryUseCase(p, c, cfg.Cache.TTL, m, l)
}

// ProvideRefreshHandler handles refresh commands; nil without a consumer.
func ProvideRefreshHandler(cfg *config.Config, consumer *pkgkafka.Consumer, p *usecase.Pipeline, m repository.Metrics, l *applogger.Logger) pkgkafka.MessageHandler {
	if consumer == nil {
		return nil
	}
	return usecase.NewRefreshHandler(cfg.Kafka.RefreshTopic, p, m, l)
}

// ProvideLimiter limits manual refreshes per client.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RefreshRate, cfg.Server.RefreshBurst)
}

// ProvideHTTPServer registers the API, websocket and health handlers.
func ProvideHTTPServer(
	cfg *config.Config,
	p *usecase.Pipeline,
	q *usecase.QueryUseCase,
	hub *ws.Hub,
	limiter *ratelimit.Limiter,
	ch *pkgch.Client,
	rc *cache.RedisCache,
	l *applogger.Logger,
) *xhttp.Server {
	checks := map[string]api.HealthCheck{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() }
	}
	handlers := []xhttp.Handler{
		api.NewIndicatorsEchoHandler(l, q, p, limiter),
		api.NewHealthEchoHandler(p, checks),
		hub,
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS, cfg.Server.CORSOrigins...),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(l, handlers, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
    cfg *config.Config,
    l *applogger.Logger,
    p *usecase.Pipeline,
    q *usecase.QueryUseCase,
    httpServer *xhttp.Server,
    hub *ws.Hub,
    limiter *ratelimit.Limiter,
    consumer *pkgkafka.Consumer,
    refresh pkgkafka.MessageHandler,
) *server.App {
    // q depends on p, so it subscribes to rebuilds after construction
    p.AddNotifier(q)
    return server.New(cfg, l, p, httpServer, hub, limiter, consumer, refresh)
}

func syntheticSpecs(in []config.SyntheticSeries) []synthetic.IndicatorSpec {
	if len(in) == 0 {
		return nil
	}
	out := make([]synthetic.IndicatorSpec, 0, len(in))
	for _, s := range in {
		spec := synthetic.IndicatorSpec{
			Name:        s.Name,
			Unit:        s.Unit,
			Base:        s.Base,
			SlopePerDay: s.SlopePerDay,
			Amplitude:   s.Amplitude,
			CycleMonths: s.CycleMonths,
			NoiseSigma:  s.NoiseSigma,
		}
		if s.Min != nil && s.Max != nil {
			spec.Clamp, spec.Min, spec.Max = true, *s.Min, *s.Max
		}
		out = append(out, spec)
	}
	return out
}
