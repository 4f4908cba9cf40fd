// Package config loads portal settings from defaults, an optional config
// file, a .env file and STAFFLOAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcclellann/staffLoan/pkg/logger"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Development defaults. Running with either credential unchanged is logged
// as a warning at startup.
const (
	DefaultSessionSecret = "devsecretkey"
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "adminpass"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      logger.Config  `mapstructure:"log"`
	Report   ReportConfig   `mapstructure:"report"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	// sqlite or postgres
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// AdminConfig is the bootstrap admin created at startup when missing.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type ReportConfig struct {
	LinesPerPage int `mapstructure:"lines_per_page"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":5000")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "instance/atme.db")
	v.SetDefault("session.secret", DefaultSessionSecret)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("admin.email", DefaultAdminEmail)
	v.SetDefault("admin.password", DefaultAdminPassword)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("report.lines_per_page", 38)
	v.SetDefault("metrics.enabled", true)
}

// Load reads the configuration. When path is empty a staffloan.{toml,yaml,json}
// in the working directory is used if present.
func Load(path string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STAFFLOAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("session.secret", "STAFFLOAN_SESSION_SECRET", "SECRET_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("staffloan")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("session.secret is required"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Report.LinesPerPage <= 0 {
		errs = append(errs, errors.New("report.lines_per_page must be positive"))
	}
	return errors.Join(errs...)
}

// InsecureDefaults lists the development credentials still in use.
func (c *Config) InsecureDefaults() []string {
	var out []string
	if c.Session.Secret == DefaultSessionSecret {
		out = append(out, "session.secret")
	}
	if c.Admin.Password == DefaultAdminPassword {
		out = append(out, "admin.password")
	}
	return out
}
