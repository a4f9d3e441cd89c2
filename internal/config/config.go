package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const Prefix = "DOORKEEPER_"

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":9090"` // empty disables the health server

	// DB
	Env      string `env:"ENV" envDefault:"dev"`      // "dev" | "prod"
	Store    string `env:"STORE" envDefault:"sqlite"` // "sqlite" | "memory"
	DBPath   string `env:"DB_PATH" envDefault:"./data/doorkeeper.db"`
	SeedFile string `env:"SEED_FILE"`

	// Keycard scan handshake
	ScanTimeout   time.Duration `env:"SCAN_TIMEOUT" envDefault:"2m"`
	ScanReadyTTL  time.Duration `env:"SCAN_READY_TTL" envDefault:"15m"`
	ScanRetention time.Duration `env:"SCAN_RETENTION" envDefault:"24h"` // 0 = keep forever
	ReapInterval  time.Duration `env:"REAP_INTERVAL" envDefault:"1m"`

	// Staff auth
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"12h"`

	// Door controllers
	DeviceToken     string `env:"DEVICE_TOKEN"`
	DeviceRateLimit int    `env:"DEVICE_RATE_LIMIT" envDefault:"120"` // per IP per minute, 0 disables

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	NATSURL           string `env:"NATS_URL"`
	NATSToken         string `env:"NATS_TOKEN"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"doorkeeper"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OTELEndpoint    string  `env:"OTEL_ENDPOINT"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// FromEnv loads an optional .env file from the working directory, then
// parses DOORKEEPER_* variables. Variables already set in the process win
// over the file.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{Prefix: Prefix})
}

// Parse reads configuration from the given variables only. Keys carry the
// DOORKEEPER_ prefix.
func Parse(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.GRPCAddr = strings.TrimSpace(c.GRPCAddr)

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) Validate() error {
	var errs []error
	if c.IsProd() && strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New(Prefix+"JWT_SECRET is required in prod"))
	}
	if c.Store != "sqlite" && c.Store != "memory" {
		errs = append(errs, fmt.Errorf(Prefix+"STORE must be sqlite or memory, got %q", c.Store))
	}
	if c.ScanTimeout <= 0 {
		errs = append(errs, errors.New(Prefix+"SCAN_TIMEOUT must be positive"))
	}
	if c.ScanReadyTTL < c.ScanTimeout {
		errs = append(errs, errors.New(Prefix+"SCAN_READY_TTL must not be shorter than SCAN_TIMEOUT"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New(Prefix+"TOKEN_TTL must be positive"))
	}
	if c.DeviceRateLimit < 0 {
		errs = append(errs, errors.New(Prefix+"DEVICE_RATE_LIMIT must not be negative"))
	}
	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		errs = append(errs, errors.New(Prefix+"OTEL_SAMPLE_RATIO must be between 0 and 1"))
	}
	return errors.Join(errs...)
}
