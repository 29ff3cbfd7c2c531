package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	StrategyTransactional = "transactional"
	StrategyCompensating  = "compensating"

	PricingCatalog = "catalog"
	PricingClient  = "client"
)

type Config struct {
	Port      string          `yaml:"port"`
	JWTSecret string          `yaml:"jwt_secret"`
	RedisURL  string          `yaml:"redis_url"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Checkout  CheckoutConfig  `yaml:"checkout"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Logger    LoggerConfig    `yaml:"logger"`
	Alert     AlertConfig     `yaml:"alert"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type CheckoutConfig struct {
	Strategy         string        `yaml:"strategy"`
	Pricing          string        `yaml:"pricing"`
	PlacementTimeout time.Duration `yaml:"placement_timeout"`
	StoreOpTimeout   time.Duration `yaml:"store_op_timeout"`
}

type ReconcileConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	Backoff      time.Duration `yaml:"backoff"`
	Timeout      time.Duration `yaml:"timeout"`
	SweepSpec    string        `yaml:"sweep_spec"`
	SweepWorkers int           `yaml:"sweep_workers"`
}

type LoggerConfig struct {
	Mode     string `yaml:"mode"`
	Filename string `yaml:"filename"`
}

type AlertConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

func (a AlertConfig) Enabled() bool {
	return a.SMTPHost != "" && len(a.To) > 0
}

func Default() *Config {
	return &Config{
		Port: "8080",
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "storefront",
		},
		Checkout: CheckoutConfig{
			Strategy:         StrategyCompensating,
			Pricing:          PricingCatalog,
			PlacementTimeout: 10 * time.Second,
			StoreOpTimeout:   3 * time.Second,
		},
		Reconcile: ReconcileConfig{
			MaxAttempts:  3,
			Backoff:      50 * time.Millisecond,
			Timeout:      15 * time.Second,
			SweepSpec:    "@every 1m",
			SweepWorkers: 4,
		},
		Logger: LoggerConfig{Mode: "development"},
		Alert:  AlertConfig{SMTPPort: 587},
	}
}

// LoadEnv reads a .env file into the process environment if one exists.
func LoadEnv() error {
	return godotenv.Load()
}

func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Load builds the configuration from defaults, the YAML file named by
// STOREFRONT_CONFIG (if any) and finally the environment.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) ApplyEnv() error {
	c.Port = GetEnv("PORT", c.Port)
	c.JWTSecret = GetEnv("JWT_SECRET", c.JWTSecret)
	c.RedisURL = GetEnv("REDIS_URL", c.RedisURL)
	c.Mongo.URI = GetEnv("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = GetEnv("DB_NAME", c.Mongo.Database)
	c.Checkout.Strategy = GetEnv("PLACEMENT_STRATEGY", c.Checkout.Strategy)
	c.Checkout.Pricing = GetEnv("PRICING_POLICY", c.Checkout.Pricing)
	c.Reconcile.SweepSpec = GetEnv("DRIFT_SWEEP_SPEC", c.Reconcile.SweepSpec)
	c.Logger.Mode = GetEnv("LOG_MODE", c.Logger.Mode)
	c.Logger.Filename = GetEnv("LOG_FILE", c.Logger.Filename)
	c.Alert.SMTPHost = GetEnv("ALERT_SMTP_HOST", c.Alert.SMTPHost)
	c.Alert.Username = GetEnv("ALERT_SMTP_USER", c.Alert.Username)
	c.Alert.Password = GetEnv("ALERT_SMTP_PASS", c.Alert.Password)
	c.Alert.From = GetEnv("ALERT_FROM", c.Alert.From)
	if to := GetEnv("ALERT_TO", ""); to != "" {
		c.Alert.To = splitList(to)
	}

	durations := map[string]*time.Duration{
		"PLACEMENT_TIMEOUT":    &c.Checkout.PlacementTimeout,
		"STORE_OP_TIMEOUT":     &c.Checkout.StoreOpTimeout,
		"COMPENSATION_BACKOFF": &c.Reconcile.Backoff,
		"COMPENSATION_TIMEOUT": &c.Reconcile.Timeout,
	}
	for key, dst := range durations {
		v := GetEnv(key, "")
		if v == "" {
			continue
		}
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"COMPENSATION_MAX_ATTEMPTS": &c.Reconcile.MaxAttempts,
		"DRIFT_SWEEP_WORKERS":       &c.Reconcile.SweepWorkers,
		"ALERT_SMTP_PORT":           &c.Alert.SMTPPort,
	}
	for key, dst := range ints {
		v := GetEnv(key, "")
		if v == "" {
			continue
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Checkout.Strategy {
	case StrategyTransactional, StrategyCompensating:
	default:
		return fmt.Errorf("unknown placement strategy %q", c.Checkout.Strategy)
	}
	switch c.Checkout.Pricing {
	case PricingCatalog, PricingClient:
	default:
		return fmt.Errorf("unknown pricing policy %q", c.Checkout.Pricing)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return fmt.Errorf("MONGO_URI or DB_NAME not set")
	}
	if c.Reconcile.MaxAttempts < 1 {
		return fmt.Errorf("compensation max attempts must be at least 1")
	}
	if c.Reconcile.SweepWorkers < 1 {
		c.Reconcile.SweepWorkers = 1
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
