package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"EconDash/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		// Manual rebuilds allowed per client: RefreshRate per second, bursting to RefreshBurst.
		RefreshRate  float64 `yaml:"refresh_rate" default:"0.1"`
		RefreshBurst int     `yaml:"refresh_burst" default:"2"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	FRED       FRED       `yaml:"fred"`
	ClickHouse ClickHouse `yaml:"clickhouse"`
	Kafka      Kafka      `yaml:"kafka"`
	Redis      struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"econdash"`
		LockTTL  time.Duration `yaml:"lock_ttl" default:"2m"`
	} `yaml:"redis"`
	Cache struct {
		Enabled    bool          `yaml:"enabled"`
		TTL        time.Duration `yaml:"ttl" default:"10m"`
		L1TTL      time.Duration `yaml:"l1_ttl" default:"30s"`
		MaxEntries int           `yaml:"max_entries" default:"1000"`
	} `yaml:"cache"`
}

// Pipeline configures how the merged table is produced.
type Pipeline struct {
	// Providers is the fallback order; names: fred, file, clickhouse, synthetic.
	Providers []string `yaml:"providers" default:"[\"fred\",\"file\",\"synthetic\"]"`
	Seed      int64    `yaml:"seed" default:"42"`
	StartDate string   `yaml:"start_date" default:"2000-01-01"`
	// EndDate empty means today.
	EndDate   string `yaml:"end_date"`
	Frequency string `yaml:"frequency" default:"daily"`

	PreferredPath string `yaml:"preferred_path" default:"data/merged_economic_data.csv"`
	OutputPath    string `yaml:"output_path" default:"data/merged_economic_data.csv"`
	RawDir        string `yaml:"raw_dir"`
	CleanDir      string `yaml:"clean_dir"`

	// ForwardFill lists columns to fill; empty fills every base column.
	ForwardFill []string          `yaml:"forward_fill"`
	Derived     []DerivedMetric   `yaml:"derived"`
	Indicators  []SyntheticSeries `yaml:"indicators"`

	RefreshInterval time.Duration `yaml:"refresh_interval"`
	BuildTimeout    time.Duration `yaml:"build_timeout" default:"2m"`
	// StrictSinks fails a build whose outputs could not be written.
	StrictSinks bool `yaml:"strict_sinks"`
}

// DerivedMetric is one configured derived column. Window 0 means one year
// of periods at the pipeline frequency.
type DerivedMetric struct {
	Kind   string `yaml:"kind"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Window int    `yaml:"window"`
}

// SyntheticSeries shapes one generated indicator.
type SyntheticSeries struct {
	Name        string   `yaml:"name"`
	Unit        string   `yaml:"unit"`
	Base        float64  `yaml:"base"`
	SlopePerDay float64  `yaml:"slope_per_day"`
	Amplitude   float64  `yaml:"amplitude"`
	CycleMonths float64  `yaml:"cycle_months"`
	NoiseSigma  float64  `yaml:"noise_sigma"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
}

type FRED struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url" default:"https://api.stlouisfed.org"`
	ObservationStart  string        `yaml:"observation_start" default:"2000-01-01"`
	Series            []FREDSeries  `yaml:"series"`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"2"`
	Concurrency       int           `yaml:"concurrency" default:"4"`
	Timeout           time.Duration `yaml:"timeout" default:"30s"`
}

// FREDSeries maps a FRED series id to the column name it becomes.
type FREDSeries struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Unit string `yaml:"unit"`
}

type ClickHouse struct {
	Enabled     bool          `yaml:"enabled"`
	Host        string        `yaml:"host" default:"localhost"`
	Port        int           `yaml:"port" default:"9000"`
	Database    string        `yaml:"database" default:"default"`
	User        string        `yaml:"user" default:"default"`
	Password    string        `yaml:"password"`
	UseHTTP     bool          `yaml:"use_http"`
	DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecTime time.Duration `yaml:"max_exec_time" default:"60s"`
	BatchSize   int           `yaml:"batch_size" default:"5000"`
}

type Kafka struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RefreshTopic string   `yaml:"refresh_topic" default:"econdash.refresh"`
	EventsTopic  string   `yaml:"events_topic" default:"econdash.events"`
	Compression  string   `yaml:"compression" default:"gzip"`
	Consumer     struct {
		GroupID string `yaml:"group_id" default:"econdash"`
		// GroupPerReplica suffixes GroupID with the host name so every
		// replica receives every refresh command.
		GroupPerReplica bool          `yaml:"group_per_replica" default:"true"`
		RetryMax        int           `yaml:"retry_max" default:"2"`
		BackoffMin      time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax      time.Duration `yaml:"backoff_max" default:"5s"`
	} `yaml:"consumer"`
}

// ConsumerGroupID is the refresh consumer group for a replica on host.
func (k Kafka) ConsumerGroupID(host string) string {
	if !k.Consumer.GroupPerReplica || host == "" {
		return k.Consumer.GroupID
	}
	return k.Consumer.GroupID + "-" + host
}

// Default returns a fully defaulted config without reading any file.
func Default() (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	c.applyDomainDefaults()
	return c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDomainDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then applies
// environment overrides and validates again.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.FRED.APIKey = v
	}
	if v := os.Getenv("DATA_FILE"); v != "" {
		c.Pipeline.PreferredPath = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDomainDefaults() {
	if len(c.FRED.Series) == 0 {
		c.FRED.Series = []FREDSeries{
			{ID: "GDP", Name: "GDP", Unit: "Billions of Dollars"},
			{ID: "CPIAUCSL", Name: "CPIAUCSL", Unit: "Index 1982-1984=100"},
			{ID: "UNRATE", Name: "UNRATE", Unit: "Percent"},
			{ID: "FEDFUNDS", Name: "FEDFUNDS", Unit: "Percent"},
		}
	}
	if c.Pipeline.Derived == nil {
		c.Pipeline.Derived = []DerivedMetric{
			{Kind: "growth", Source: "GDP", Target: "GDP_Growth"},
			{Kind: "growth", Source: "CPIAUCSL", Target: "Inflation"},
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if len(c.Pipeline.Providers) == 0 {
		return fmt.Errorf("pipeline.providers cannot be empty")
	}
	for _, p := range c.Pipeline.Providers {
		switch p {
		case "fred", "file", "synthetic":
		case "clickhouse":
			if !c.ClickHouse.Enabled {
				return fmt.Errorf("pipeline.providers lists clickhouse but clickhouse.enabled is false")
			}
		default:
			return fmt.Errorf("pipeline.providers: unknown provider %q", p)
		}
	}
	if _, err := time.Parse("2006-01-02", c.Pipeline.StartDate); err != nil {
		return fmt.Errorf("pipeline.start_date: %w", err)
	}
	if c.Pipeline.EndDate != "" {
		if _, err := time.Parse("2006-01-02", c.Pipeline.EndDate); err != nil {
			return fmt.Errorf("pipeline.end_date: %w", err)
		}
	}
	for i, d := range c.Pipeline.Derived {
		if d.Kind != "growth" && d.Kind != "moving_average" {
			return fmt.Errorf("pipeline.derived[%d].kind must be 'growth' or 'moving_average', got '%s'", i, d.Kind)
		}
		if d.Source == "" {
			return fmt.Errorf("pipeline.derived[%d].source is required", i)
		}
		if d.Window < 0 {
			return fmt.Errorf("pipeline.derived[%d].window must not be negative", i)
		}
	}
	for i, s := range c.Pipeline.Indicators {
		if s.Name == "" {
			return fmt.Errorf("pipeline.indicators[%d].name is required", i)
		}
		if (s.Min == nil) != (s.Max == nil) {
			return fmt.Errorf("pipeline.indicators[%d]: min and max must be set together", i)
		}
	}
	for i, s := range c.FRED.Series {
		if s.ID == "" {
			return fmt.Errorf("fred.series[%d].id is required", i)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	return nil
}
