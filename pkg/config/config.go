package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8001"`
		RoutePrefix     string        `yaml:"route_prefix"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Log struct {
		Level            string        `yaml:"level" default:"info"`
		Format           string        `yaml:"format" default:"console"`
		Output           string        `yaml:"output" default:"stdout"`
		CollectTopic     string        `yaml:"collect_topic"`
		CollectInterval  time.Duration `yaml:"collect_interval" default:"30s"`
		CollectThreshold int           `yaml:"collect_threshold" default:"100"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Source struct {
		Type string `yaml:"type" default:"http"`
	} `yaml:"source"`
	SalesAPI struct {
		BaseURL  string        `yaml:"base_url" default:"http://localhost:8000"`
		Path     string        `yaml:"path" default:"/api/sales/"`
		PageSize int           `yaml:"page_size" default:"100"`
		Timeout  time.Duration `yaml:"timeout" default:"10s"`
		RPS      float64       `yaml:"rps" default:"20"`
		MaxPages int           `yaml:"max_pages" default:"10000"`
	} `yaml:"sales_api"`
	Postgres struct {
		URL       string `yaml:"url"`
		Table     string `yaml:"table" default:"sale"`
		BatchSize int    `yaml:"batch_size" default:"1000"`
		MaxConns  int32  `yaml:"max_conns" default:"4"`
	} `yaml:"postgres"`
	Model struct {
		StorePath      string  `yaml:"store_path" default:"./model_store"`
		Grouping       string  `yaml:"grouping" default:"total"`
		NEstimators    int     `yaml:"n_estimators" default:"100"`
		MaxDepth       int     `yaml:"max_depth" default:"10"`
		MinSamplesLeaf int     `yaml:"min_samples_leaf" default:"1"`
		TestSize       float64 `yaml:"test_size" default:"0.2"`
		RandomState    int64   `yaml:"random_state" default:"42"`
		MinDays        int     `yaml:"min_days" default:"30"`
		IntervalWidth  float64 `yaml:"interval_width" default:"0.95"`
		KeepBundles    int     `yaml:"keep_bundles" default:"2"`
	} `yaml:"model"`
	Cache struct {
		ForecastTTL   time.Duration `yaml:"forecast_ttl" default:"10m"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"1000"`
		TrainLockTTL  time.Duration `yaml:"train_lock_ttl" default:"15m"`
	} `yaml:"cache"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"salespulse"`
	} `yaml:"redis"`
	History struct {
		Backend    string `yaml:"backend" default:"sqlite"`
		SQLitePath string `yaml:"sqlite_path" default:"./model_store/history.db"`
	} `yaml:"history"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"salespulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"salespulse.model-events"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	RateLimit struct {
		TrainPerMinute float64 `yaml:"train_per_minute" default:"6"`
		TrainBurst     int     `yaml:"train_burst" default:"2"`
	} `yaml:"rate_limit"`
}

// Default returns a configuration populated only from struct defaults.
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

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML config, and then applies
// environment variable overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(c)

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

// FromEnv builds a configuration from struct defaults, .env and environment
// variables only.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	c, err := Default()
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("SALES_API_URL"); v != "" {
		c.SalesAPI.BaseURL = v
	}
	if v := os.Getenv("SALES_SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("MODEL_STORE_PATH"); v != "" {
		c.Model.StorePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Source.Type {
	case "http":
		if c.SalesAPI.BaseURL == "" {
			return fmt.Errorf("sales_api.base_url is required for source.type 'http'")
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres.url is required for source.type 'postgres'")
		}
	default:
		return fmt.Errorf("source.type must be 'http' or 'postgres', got '%s'", c.Source.Type)
	}
	if c.Model.Grouping != "total" && c.Model.Grouping != "shop" {
		return fmt.Errorf("model.grouping must be 'total' or 'shop', got '%s'", c.Model.Grouping)
	}
	if c.Model.StorePath == "" {
		return fmt.Errorf("model.store_path is required")
	}
	if c.Model.TestSize < 0 || c.Model.TestSize >= 1 {
		return fmt.Errorf("model.test_size must be in [0, 1), got %v", c.Model.TestSize)
	}
	if c.Model.IntervalWidth <= 0 || c.Model.IntervalWidth >= 1 {
		return fmt.Errorf("model.interval_width must be in (0, 1), got %v", c.Model.IntervalWidth)
	}
	if c.Model.KeepBundles < 1 {
		return fmt.Errorf("model.keep_bundles must be >= 1")
	}
	switch c.History.Backend {
	case "sqlite", "clickhouse", "none":
	default:
		return fmt.Errorf("history.backend must be 'sqlite', 'clickhouse' or 'none', got '%s'", c.History.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
