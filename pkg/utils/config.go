package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration shared by the binaries under cmd/.
// Every field is read from a SWRF_ prefixed environment variable; a .env
// file in the working directory is loaded first when present.
type Config struct {
	Dev      bool   `env:"SWRF_DEV" envDefault:"false"`
	LogLevel string `env:"SWRF_LOG_LEVEL" envDefault:"info"`

	HTTP    HTTPConfig
	Data    DataConfig
	Prefs   PrefsConfig
	Visitor VisitorConfig
	Submit  SubmitConfig
}

type HTTPConfig struct {
	Addr      string `env:"SWRF_HTTP_ADDR" envDefault:":8080"`
	SyncAddr  string `env:"SWRF_SYNC_ADDR" envDefault:":7070"`
	GRPCAddr  string `env:"SWRF_GRPC_ADDR" envDefault:":9090"`
	PublicDir string `env:"SWRF_PUBLIC_DIR" envDefault:"public"`

	ShutdownTimeout time.Duration `env:"SWRF_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DataConfig locates mods_data.json. URL wins over File when both are set.
type DataConfig struct {
	File string `env:"SWRF_DATA_FILE" envDefault:"public/mods_data.json"`
	URL  string `env:"SWRF_DATA_URL"`
}

type PrefsConfig struct {
	// Backend is "sqlite" or "redis".
	Backend   string `env:"SWRF_PREFS_BACKEND" envDefault:"sqlite"`
	DBPath    string `env:"SWRF_DB_PATH"`
	RedisAddr string `env:"SWRF_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"SWRF_REDIS_DB" envDefault:"0"`
}

// DevVisitorSecret signs visitor tokens in dev mode only.
const DevVisitorSecret = "dev-secret-change-me"

type VisitorConfig struct {
	Secret       string        `env:"SWRF_VISITOR_SECRET" envDefault:"dev-secret-change-me"`
	Issuer       string        `env:"SWRF_VISITOR_ISSUER" envDefault:"swrfmods"`
	TTL          time.Duration `env:"SWRF_VISITOR_TTL" envDefault:"8760h"`
	SecureCookie bool          `env:"SWRF_SECURE_COOKIE" envDefault:"false"`
}

type SubmitConfig struct {
	Upstream string        `env:"SWRF_SUBMIT_UPSTREAM" envDefault:"https://script.google.com/macros/s/AKfycbwXTa5lFois4-Zdj21W0DatrpUH1UdWqoz2dxipkQ0r72Rs4kb0aBscLLy3vaQ8pwzu/exec"`
	Timeout  time.Duration `env:"SWRF_SUBMIT_TIMEOUT" envDefault:"15s"`
}

// LoadConfig reads .env (if any) and the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Sanitize()
}

// LoadConfigFrom parses configuration from the given map only.
func LoadConfigFrom(environment map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Sanitize()
}

// Sanitize normalizes values and rejects combinations the binaries cannot run with.
func (c *Config) Sanitize() error {
	c.Prefs.Backend = strings.ToLower(strings.TrimSpace(c.Prefs.Backend))
	switch c.Prefs.Backend {
	case "", "sqlite":
		c.Prefs.Backend = "sqlite"
	case "redis":
	default:
		return fmt.Errorf("unsupported prefs backend %q", c.Prefs.Backend)
	}

	if c.Visitor.TTL <= 0 {
		c.Visitor.TTL = 365 * 24 * time.Hour
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Submit.Timeout <= 0 {
		c.Submit.Timeout = 15 * time.Second
	}
	if strings.TrimSpace(c.Submit.Upstream) == "" {
		return errors.New("submit upstream must not be empty")
	}
	if !c.Dev {
		if secret := strings.TrimSpace(c.Visitor.Secret); secret == "" || secret == DevVisitorSecret {
			return errors.New("SWRF_VISITOR_SECRET must be set outside dev mode")
		}
	}
	return nil
}
