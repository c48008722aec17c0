package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"PORT"`
	Env           string `mapstructure:"ENV"`
	LedgerBackend string `mapstructure:"LEDGER_BACKEND"`
	LedgerPath    string `mapstructure:"LEDGER_PATH"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	AuthSecret    string `mapstructure:"AUTH_SECRET"`
	QueueMaxSize  uint32 `mapstructure:"QUEUE_MAX_SIZE"`
	MetricsOn     bool   `mapstructure:"METRICS_ON"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LEDGER_BACKEND", "leveldb")
	v.SetDefault("LEDGER_PATH", "data/ledger")
	v.SetDefault("QUEUE_MAX_SIZE", 0)
	v.SetDefault("METRICS_ON", true)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LEDGER_BACKEND")
	v.BindEnv("LEDGER_PATH")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("QUEUE_MAX_SIZE")
	v.BindEnv("METRICS_ON")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Production requires
// a real token secret; the postgres backend requires a connection string.
func (c *Config) Validate() error {
	switch c.LedgerBackend {
	case "memory", "leveldb":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when LEDGER_BACKEND is \"postgres\"")
		}
	default:
		return fmt.Errorf("LEDGER_BACKEND must be \"memory\", \"leveldb\", or \"postgres\", got %q", c.LedgerBackend)
	}
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required outside development (ENV=%q)", c.Env)
	}
	return nil
}
