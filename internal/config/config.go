package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

const (
	CheckpointSQLite = "sqlite"
	CheckpointFile   = "file"

	SyncTargetLocal  = "local"
	SyncTargetRemote = "remote"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string
	ConfigFile    string
	LogPrefix     string

	Timer        model.TimerConfig
	TickInterval time.Duration
	Checkpoint   CheckpointConfig
	Sync         SyncConfig
	Surface      SurfaceConfig
}

type CheckpointConfig struct {
	Backend string
	File    string
}

type SyncConfig struct {
	Target      string
	RemoteURL   string
	RemoteToken string
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Interval    time.Duration
	StartOnline bool
}

type SurfaceConfig struct {
	Buffer     int
	RatePerSec float64
	RateBurst  int
}

// Load reads .env (if present), then the optional CONFIG_FILE, then the
// environment. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/focus.db"),
		JWTSecret:     getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:      time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		MigrationsDir: getEnv("MIGRATIONS_DIR", ""),
		ConfigFile:    getEnv("CONFIG_FILE", ""),
		LogPrefix:     getEnv("LOG_PREFIX", "[focus]"),
		Timer:         model.DefaultTimerConfig(),
		TickInterval:  time.Second,
		Checkpoint: CheckpointConfig{
			Backend: CheckpointSQLite,
			File:    "./data/checkpoint.yaml",
		},
		Sync: SyncConfig{
			Target:      SyncTargetLocal,
			MaxRetries:  5,
			BackoffBase: 2 * time.Second,
			BackoffMax:  5 * time.Minute,
			Interval:    30 * time.Second,
			StartOnline: true,
		},
		Surface: SurfaceConfig{
			Buffer:     8,
			RatePerSec: 5,
			RateBurst:  10,
		},
	}

	if cfg.ConfigFile != "" {
		if err := loadFile(cfg.ConfigFile, &cfg); err != nil {
			return cfg, fmt.Errorf("load %s: %w", cfg.ConfigFile, err)
		}
	}

	cfg.TickInterval = getEnvMillis("TICK_INTERVAL_MS", cfg.TickInterval)
	cfg.Checkpoint.Backend = getEnv("CHECKPOINT_BACKEND", cfg.Checkpoint.Backend)
	cfg.Checkpoint.File = getEnv("CHECKPOINT_FILE", cfg.Checkpoint.File)
	cfg.Sync.Target = getEnv("SYNC_TARGET", cfg.Sync.Target)
	cfg.Sync.RemoteURL = getEnv("SYNC_REMOTE_URL", cfg.Sync.RemoteURL)
	cfg.Sync.RemoteToken = getEnv("SYNC_REMOTE_TOKEN", cfg.Sync.RemoteToken)
	cfg.Sync.MaxRetries = getEnvInt("SYNC_MAX_RETRIES", cfg.Sync.MaxRetries)
	cfg.Sync.BackoffBase = getEnvMillis("SYNC_BACKOFF_BASE_MS", cfg.Sync.BackoffBase)
	cfg.Sync.BackoffMax = getEnvMillis("SYNC_BACKOFF_MAX_MS", cfg.Sync.BackoffMax)
	cfg.Sync.Interval = getEnvMillis("SYNC_INTERVAL_MS", cfg.Sync.Interval)
	cfg.Sync.StartOnline = getEnvBool("SYNC_START_ONLINE", cfg.Sync.StartOnline)
	cfg.Surface.Buffer = getEnvInt("SURFACE_BUFFER", cfg.Surface.Buffer)
	cfg.Surface.RatePerSec = getEnvFloat("SURFACE_RATE_PER_SEC", cfg.Surface.RatePerSec)
	cfg.Surface.RateBurst = getEnvInt("SURFACE_RATE_BURST", cfg.Surface.RateBurst)

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := c.Timer.Validate(); err != nil {
		return err
	}
	switch c.Checkpoint.Backend {
	case CheckpointSQLite:
	case CheckpointFile:
		if c.Checkpoint.File == "" {
			return fmt.Errorf("%w: CHECKPOINT_FILE is required for the file backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: CHECKPOINT_BACKEND must be sqlite or file", ErrInvalid)
	}
	switch c.Sync.Target {
	case SyncTargetLocal:
	case SyncTargetRemote:
		if c.Sync.RemoteURL == "" {
			return fmt.Errorf("%w: SYNC_REMOTE_URL is required when SYNC_TARGET=remote", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: SYNC_TARGET must be local or remote", ErrInvalid)
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("%w: SYNC_MAX_RETRIES must not be negative", ErrInvalid)
	}
	if c.Surface.RatePerSec <= 0 || c.Surface.RateBurst <= 0 {
		return fmt.Errorf("%w: surface rate limit must be positive", ErrInvalid)
	}
	return nil
}

type fileConfig struct {
	Timer model.TimerConfig `mapstructure:"timer"`
	Sync  fileSync          `mapstructure:"sync"`
}

type fileSync struct {
	MaxRetries    int   `mapstructure:"max_retries"`
	BackoffBaseMS int64 `mapstructure:"backoff_base_ms"`
	BackoffMaxMS  int64 `mapstructure:"backoff_max_ms"`
	IntervalMS    int64 `mapstructure:"interval_ms"`
	StartOnline   bool  `mapstructure:"start_online"`
}

// loadFile overlays the YAML file on cfg; keys absent from the file keep
// their current values.
func loadFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	fc := fileConfig{
		Timer: cfg.Timer,
		Sync: fileSync{
			MaxRetries:    cfg.Sync.MaxRetries,
			BackoffBaseMS: cfg.Sync.BackoffBase.Milliseconds(),
			BackoffMaxMS:  cfg.Sync.BackoffMax.Milliseconds(),
			IntervalMS:    cfg.Sync.Interval.Milliseconds(),
			StartOnline:   cfg.Sync.StartOnline,
		},
	}
	if err := v.Unmarshal(&fc); err != nil {
		return err
	}

	cfg.Timer = fc.Timer
	cfg.Sync.MaxRetries = fc.Sync.MaxRetries
	cfg.Sync.BackoffBase = time.Duration(fc.Sync.BackoffBaseMS) * time.Millisecond
	cfg.Sync.BackoffMax = time.Duration(fc.Sync.BackoffMaxMS) * time.Millisecond
	cfg.Sync.Interval = time.Duration(fc.Sync.IntervalMS) * time.Millisecond
	cfg.Sync.StartOnline = fc.Sync.StartOnline
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
