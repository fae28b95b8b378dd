// Package config resolves haven's settings: built-in defaults, then the
// YAML config file, then .env files, then the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/havenhealth/haven/internal/i18n"
	"github.com/havenhealth/haven/internal/util"
)

const (
	StoreSQLite   = "sqlite"
	StoreSupabase = "supabase"

	VendorOpenAI = "openai"
	VendorDryRun = "dryrun"
)

type Config struct {
	LogLevel int    `yaml:"log_level" env:"HAVEN_LOG_LEVEL"`
	Language string `yaml:"language" env:"HAVEN_LANGUAGE"`

	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	AI        AI        `yaml:"ai"`
	Auth      Auth      `yaml:"auth"`
	Session   Session   `yaml:"session"`
	Dashboard Dashboard `yaml:"dashboard"`
}

type Server struct {
	Address         string        `yaml:"address" env:"HAVEN_ADDRESS"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"HAVEN_ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HAVEN_SHUTDOWN_TIMEOUT"`
}

type Store struct {
	Backend string `yaml:"backend" env:"HAVEN_STORE"`
	// SQLitePath may be ":memory:".
	SQLitePath         string `yaml:"sqlite_path" env:"HAVEN_SQLITE_PATH"`
	SupabaseURL        string `yaml:"supabase_url" env:"SUPABASE_URL"`
	SupabaseServiceKey string `yaml:"-" env:"SUPABASE_SERVICE_ROLE_KEY"`
}

// AI selects the chat vendor. API keys are not read here: vendors read
// them from the environment on first use.
type AI struct {
	Vendor string `yaml:"vendor" env:"HAVEN_AI_VENDOR"`
	Model  string `yaml:"model" env:"HAVEN_MODEL"`
	Stream bool   `yaml:"stream" env:"HAVEN_STREAM"`
}

type Auth struct {
	JWTSecret string `yaml:"-" env:"SUPABASE_JWT_SECRET"`
}

type Session struct {
	TickInterval       time.Duration `yaml:"tick_interval" env:"HAVEN_SESSION_TICK"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval" env:"HAVEN_SESSION_CHECKPOINT"`
	HistoryCapacity    int           `yaml:"history_capacity" env:"HAVEN_SESSION_HISTORY"`
	PersistMessages    int           `yaml:"persist_messages" env:"HAVEN_SESSION_PERSIST_MESSAGES"`
	ReplyContext       int           `yaml:"reply_context" env:"HAVEN_SESSION_REPLY_CONTEXT"`
	InboxCapacity      int           `yaml:"inbox_capacity" env:"HAVEN_INBOX_CAPACITY"`
	MaxTabs            int           `yaml:"max_tabs" env:"HAVEN_SESSION_MAX_TABS"`
}

type Dashboard struct {
	Refresh time.Duration `yaml:"refresh" env:"HAVEN_DASHBOARD_REFRESH"`
}

func Default() *Config {
	return &Config{
		LogLevel: 0,
		Language: "en",
		Server: Server{
			Address:         ":8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{
			Backend:    StoreSQLite,
			SQLitePath: "haven.db",
		},
		AI: AI{
			Vendor: VendorOpenAI,
			Model:  "gpt-4o-mini",
		},
		Session: Session{
			TickInterval:       time.Second,
			CheckpointInterval: 30 * time.Second,
			HistoryCapacity:    500,
			PersistMessages:    50,
			ReplyContext:       20,
			InboxCapacity:      20,
			MaxTabs:            8,
		},
		Dashboard: Dashboard{Refresh: 30 * time.Second},
	}
}

// Load builds the configuration. An empty path falls back to the default
// config file, which may be absent; an explicit path must exist. Missing
// .env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		if path, err = util.GetDefaultConfigPath(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if path, err = util.GetAbsolutePath(path); err != nil {
			return nil, err
		}
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf(i18n.T("config_error_read_file"), path, err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf(i18n.T("config_error_read_file"), path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.AI.Vendor = strings.ToLower(strings.TrimSpace(c.AI.Vendor))

	if !slices.Contains([]string{StoreSQLite, StoreSupabase}, c.Store.Backend) {
		errs = append(errs, fmt.Errorf(i18n.T("config_error_invalid_value"), "store.backend", c.Store.Backend))
	}
	if c.Store.Backend == StoreSQLite && c.Store.SQLitePath == "" {
		errs = append(errs, fmt.Errorf(i18n.T("config_error_invalid_value"), "store.sqlite_path", ""))
	}
	if !slices.Contains([]string{VendorOpenAI, VendorDryRun}, c.AI.Vendor) {
		errs = append(errs, fmt.Errorf(i18n.T("config_error_invalid_value"), "ai.vendor", c.AI.Vendor))
	}
	if c.LogLevel < 0 || c.LogLevel > 4 {
		errs = append(errs, fmt.Errorf(i18n.T("config_error_invalid_value"), "log_level", fmt.Sprint(c.LogLevel)))
	}
	if c.Session.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf(i18n.T("config_error_invalid_value"), "session.tick_interval", c.Session.TickInterval.String()))
	}
	return errors.Join(errs...)
}
