package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Tables    TablesConfig    `mapstructure:"tables"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// TablesConfig names the two record tables. Empty names derive from app.env.
type TablesConfig struct {
	Jobs          string `mapstructure:"jobs"`
	Notifications string `mapstructure:"notifications"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// NATSConfig is optional; an empty URL disables the subscriber and the NATS dispatcher.
type NATSConfig struct {
	URL          string `mapstructure:"url"`
	Subject      string `mapstructure:"subject"`
	Queue        string `mapstructure:"queue"`
	NotifyPrefix string `mapstructure:"notify_prefix"`
}

type StorageConfig struct {
	Root  string   `mapstructure:"root"`
	Watch []string `mapstructure:"watch"`
}

type LifecycleConfig struct {
	Strict bool `mapstructure:"strict"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EVT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("jobs_table", cfg.Tables.Jobs),
		slog.String("notifications_table", cfg.Tables.Notifications),
		slog.Bool("lifecycle_strict", cfg.Lifecycle.Strict),
	)

	return cfg, nil
}

func (c *Config) normalize() error {
	c.App.Env = strings.TrimSpace(c.App.Env)
	if c.App.Env == "" {
		return errors.New("app.env is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if strings.TrimSpace(c.Tables.Jobs) == "" {
		c.Tables.Jobs = c.App.Env + "-processing-jobs"
	}
	if strings.TrimSpace(c.Tables.Notifications) == "" {
		c.Tables.Notifications = c.App.Env + "-notifications"
	}
	if c.Tables.Jobs == c.Tables.Notifications {
		return fmt.Errorf("tables.jobs and tables.notifications must differ, both are %q", c.Tables.Jobs)
	}

	watch := make([]string, 0, len(c.Storage.Watch))
	for _, bucket := range c.Storage.Watch {
		if trimmed := strings.TrimSpace(bucket); trimmed != "" {
			watch = append(watch, trimmed)
		}
	}
	c.Storage.Watch = watch
	return nil
}

// IsPostgres reports whether records live in PostgreSQL rather than SQLite.
func (c DatabaseConfig) IsPostgres() bool {
	return c.Driver == "postgres" || c.Driver == "postgresql"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "eventtrack")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".eventtrack/records.sqlite")
	v.SetDefault("tables.jobs", "")
	v.SetDefault("tables.notifications", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "events.ingest")
	v.SetDefault("nats.queue", "eventtrack")
	v.SetDefault("nats.notify_prefix", "notify")
	v.SetDefault("storage.root", ".eventtrack/objects")
	v.SetDefault("storage.watch", []string{})
	v.SetDefault("lifecycle.strict", true)
}
