package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Training holds the hyperparameters of one run. It is passed by value into
// every component that needs it and never mutated after Load.
type Training struct {
	NumRows        int     `yaml:"num_rows" default:"30" validate:"gte=1"`
	NumIntoFut     int     `yaml:"num_into_fut" default:"5" validate:"gte=1"`
	Step           int     `yaml:"step" default:"10" validate:"gte=1"`
	SplitFraction  float64 `yaml:"split_fraction" default:"0.7" validate:"gt=0,lt=1"`
	TestFraction   float64 `yaml:"test_fraction" validate:"gte=0,lt=1"`
	BatchSize      int     `yaml:"batch_size" default:"64" validate:"gte=1"`
	Shuffle        bool    `yaml:"shuffle" default:"true"`
	DropLast       bool    `yaml:"drop_last" default:"true"`
	NumWorkers     int     `yaml:"num_workers" default:"5" validate:"gte=0,lte=64"`
	LearningRate   float64 `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
	NumEpochs      int     `yaml:"num_epochs" default:"6" validate:"gte=1"`
	DatasetVariant string  `yaml:"dataset_variant" default:"sequence" validate:"oneof=sequence image"`
	ImageHeight    int     `yaml:"image_height" default:"32" validate:"gte=2"`
	Model          string  `yaml:"model" default:"linear" validate:"oneof=linear step_linear"`
	Optimizer      string  `yaml:"optimizer" default:"adam" validate:"oneof=adam sgd"`
	Seed           int64   `yaml:"seed" default:"42"`
	Device         string  `yaml:"device" default:"cpu" validate:"oneof=cpu cuda"`
	Indicators     bool    `yaml:"indicators" default:"true"`
	Debug          bool    `yaml:"debug"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout" validate:"required"`
	} `yaml:"log"`
	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Training Training `yaml:"training"`
	Data     struct {
		Source    string `yaml:"source" default:"csv" validate:"oneof=csv clickhouse"`
		Path      string `yaml:"path" default:"data/bitcoin1m.csv"`
		Symbol    string `yaml:"symbol" default:"BTCUSDT"`
		Timeframe string `yaml:"timeframe" default:"1m" validate:"oneof=1s 1m 5m"`
		From      string `yaml:"from"`
		To        string `yaml:"to"`
	} `yaml:"data"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finpull"`
		Table            string        `yaml:"table" default:"rt_candles_1m"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"fintrain.progress"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
		BatchSize    int           `yaml:"batch_size" default:"10"`
		Linger       time.Duration `yaml:"linger" default:"100ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"fintrain"`
		TTL      time.Duration `yaml:"ttl" default:"168h"`
	} `yaml:"redis"`
	Checkpoint struct {
		Enabled  bool   `yaml:"enabled"`
		Driver   string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres"`
		DSN      string `yaml:"dsn" default:"checkpoints.db"`
		LoadName string `yaml:"load_name"`
		SaveName string `yaml:"save_name" default:"linear_w"`
	} `yaml:"checkpoint"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, applies an optional .env file next to the
// working directory, and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATA_SOURCE"); v != "" {
		c.Data.Source = v
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		c.Data.Path = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Data.Symbol = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("DEVICE"); v != "" {
		c.Training.Device = v
	}
	if v := os.Getenv("NUM_EPOCHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("NUM_EPOCHS: %w", err)
		}
		c.Training.NumEpochs = n
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CHECKPOINT_DSN"); v != "" {
		c.Checkpoint.DSN = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks tag rules and the cross-field constraints tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.Data.Source {
	case "csv":
		if c.Data.Path == "" {
			return fmt.Errorf("data.path is required for the csv source")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for the clickhouse source")
		}
		if c.Data.Symbol == "" {
			return fmt.Errorf("data.symbol is required for the clickhouse source")
		}
	}
	if c.Training.SplitFraction+c.Training.TestFraction >= 1 {
		return fmt.Errorf("training.split_fraction + training.test_fraction must be < 1")
	}
	if c.Training.Model == "step_linear" && c.Training.DatasetVariant != "sequence" {
		return fmt.Errorf("training.model step_linear requires dataset_variant sequence")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Checkpoint.Enabled && c.Checkpoint.DSN == "" {
		return fmt.Errorf("checkpoint.dsn is required when checkpoints are enabled")
	}
	return nil
}

// TimeRange parses data.from/data.to. Empty bounds are open.
func (c *Config) TimeRange() (from, to time.Time, err error) {
	if c.Data.From != "" {
		if from, err = time.Parse(time.RFC3339, c.Data.From); err != nil {
			return from, to, fmt.Errorf("data.from: %w", err)
		}
	}
	if c.Data.To != "" {
		if to, err = time.Parse(time.RFC3339, c.Data.To); err != nil {
			return from, to, fmt.Errorf("data.to: %w", err)
		}
	} else {
		to = time.Now().UTC()
	}
	if !from.IsZero() && from.After(to) {
		return from, to, fmt.Errorf("data.from must be <= data.to")
	}
	return from, to, nil
}
