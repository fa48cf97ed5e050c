// Package config loads settings from config.yml, TODOTREE_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"todoTree/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const EnvPrefix = "TODOTREE"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
	App        AppConfig        `mapstructure:"app"`
	Hierarchy  HierarchyConfig  `mapstructure:"hierarchy"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	ConnectRetries uint64        `mapstructure:"connect_retries"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

type RepositoryConfig struct {
	Type string `mapstructure:"type"` // inmemory, postgres or sqlite
}

type AppConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type HierarchyConfig struct {
	Orphans string `mapstructure:"orphans"` // drop or promote
}

type WorkerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

type HTTPConfig struct {
	RateLimit      int           `mapstructure:"rate_limit"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

var defaults = map[string]any{
	"server.host":             "0.0.0.0",
	"server.port":             "8080",
	"server.read_timeout":     10 * time.Second,
	"server.write_timeout":    30 * time.Second,
	"server.shutdown_timeout": 15 * time.Second,

	"database.url":             "",
	"database.max_connections": 10,
	"database.min_connections": 2,
	"database.idle_timeout":    5 * time.Minute,
	"database.connect_retries": 5,
	"database.auto_migrate":    true,

	"sqlite.path": "todotree.db",

	"repository.type": "inmemory",

	"logging.development": false,
	"logging.level":       "info",

	"app.timezone": "Local",

	"hierarchy.orphans": "drop",

	"worker.enabled":     true,
	"worker.interval":    15 * time.Minute,
	"worker.concurrency": 4,

	"http.rate_limit":      100,
	"http.cors_origins":    []string{"*"},
	"http.request_timeout": 30 * time.Second,
}

// Loader owns the viper instance so the file can be watched after Load.
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// BindFlags registers flags for the keys most often overridden on the command
// line and binds them to viper.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	fs.String("repository", l.v.GetString("repository.type"), "storage backend: inmemory, postgres or sqlite")
	fs.String("port", l.v.GetString("server.port"), "HTTP port")
	fs.String("log-level", l.v.GetString("logging.level"), "log level")

	binds := map[string]string{
		"repository.type": "repository",
		"server.port":     "port",
		"logging.level":   "log-level",
	}
	for key, flag := range binds {
		if err := l.v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads path if given, otherwise config.yml from the working directory
// or /etc/todotree. A missing default file is not an error.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		l.v.AddConfigPath("/etc/todotree")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// File is the config file in use, empty when running on defaults.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads the file on change and applies logging.level at runtime.
// Other settings take effect on restart; onChange receives the full config.
func (l *Loader) Watch(onChange func(*Config)) {
	if l.File() == "" {
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			logger.Warn("Config: reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := logger.SetLevel(cfg.Logging.Level); err != nil {
			logger.Warn("Config: bad log level", zap.String("level", cfg.Logging.Level), zap.Error(err))
		}
		logger.Info("Config: reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case "inmemory", "postgres", "sqlite":
	default:
		return fmt.Errorf("repository.type: unknown backend %q", c.Repository.Type)
	}
	if c.Repository.Type == "postgres" && c.Database.URL == "" {
		return errors.New("database.url is required for the postgres backend")
	}
	if c.Repository.Type == "sqlite" && c.SQLite.Path == "" {
		return errors.New("sqlite.path is required for the sqlite backend")
	}
	if c.Hierarchy.Orphans != "drop" && c.Hierarchy.Orphans != "promote" {
		return fmt.Errorf("hierarchy.orphans: must be drop or promote, got %q", c.Hierarchy.Orphans)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Worker.Enabled && c.Worker.Interval <= 0 {
		return errors.New("worker.interval must be positive")
	}
	if c.HTTP.RateLimit <= 0 {
		return errors.New("http.rate_limit must be positive")
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
