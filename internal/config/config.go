// Package config loads process configuration from flags, falling back to
// environment variables and then to defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// MinTokenSecretLen matches the HMAC-SHA256 key size.
const MinTokenSecretLen = 32

// Config is the process configuration.
type Config struct {
	Addr         string
	Socket       string
	DatabasePath string
	QueueSize    int
	CallTimeout  time.Duration
	ReadPoolSize int
	TokenSecret  string
	PostRate     float64
	PostBurst    int
	LogLevel     slog.Level
	LogFile      string
}

// Load parses args (without the program name). Each flag defaults to its
// environment variable when that is set. It returns pflag.ErrHelp when
// --help was requested.
func Load(args []string) (Config, error) {
	var (
		cfg      Config
		errs     []error
		logLevel string
	)

	envInt := func(key string, def int) int {
		v, err := strconv.Atoi(envOrDefault(key, strconv.Itoa(def)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}
	envFloat := func(key string, def float64) float64 {
		v, err := strconv.ParseFloat(envOrDefault(key, strconv.FormatFloat(def, 'f', -1, 64)), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}
	envDuration := func(key string, def time.Duration) time.Duration {
		v, err := time.ParseDuration(envOrDefault(key, def.String()))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	fs := pflag.NewFlagSet("postwriter", pflag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", addr, "TCP address to listen on (env PORT)")
	fs.StringVar(&cfg.Socket, "socket", os.Getenv("SOCKET_PATH"), "unix socket to listen on instead of TCP (env SOCKET_PATH)")
	fs.StringVar(&cfg.DatabasePath, "db", envOrDefault("DATABASE_PATH", "posts.db"), "database file (env DATABASE_PATH)")
	fs.IntVar(&cfg.QueueSize, "queue-size", envInt("WRITER_QUEUE_SIZE", 1024), "writer queue capacity (env WRITER_QUEUE_SIZE)")
	fs.DurationVar(&cfg.CallTimeout, "call-timeout", envDuration("WRITER_CALL_TIMEOUT", 5*time.Second), "how long a request waits for the writer (env WRITER_CALL_TIMEOUT)")
	fs.IntVar(&cfg.ReadPoolSize, "read-pool", envInt("READ_POOL_SIZE", 4), "read-only connections (env READ_POOL_SIZE)")
	fs.Float64Var(&cfg.PostRate, "post-rate", envFloat("POST_RATE", 0), "posts per second per author, 0 for unlimited (env POST_RATE)")
	fs.IntVar(&cfg.PostBurst, "post-burst", envInt("POST_BURST", 10), "burst of posts per author (env POST_BURST)")
	fs.StringVar(&logLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "debug, info, warn or error (env LOG_LEVEL)")
	fs.StringVar(&cfg.LogFile, "log-file", os.Getenv("LOG_FILE"), "also write JSON logs to this rotated file (env LOG_FILE)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	// Secrets are never taken from the command line.
	cfg.TokenSecret = os.Getenv("TOKEN_SECRET")

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		return Config{}, fmt.Errorf("log level: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout))
	}
	if c.ReadPoolSize < 1 {
		errs = append(errs, fmt.Errorf("read pool size must be at least 1, got %d", c.ReadPoolSize))
	}
	if c.DatabasePath == "" || c.DatabasePath == ":memory:" {
		errs = append(errs, errors.New("database path must name a file shared by the writer and readers"))
	}
	if c.TokenSecret != "" && len(c.TokenSecret) < MinTokenSecretLen {
		errs = append(errs, fmt.Errorf("TOKEN_SECRET must be at least %d bytes", MinTokenSecretLen))
	}
	if c.PostRate < 0 {
		errs = append(errs, fmt.Errorf("post rate must not be negative, got %v", c.PostRate))
	}
	if c.PostRate > 0 && c.PostBurst < 1 {
		errs = append(errs, fmt.Errorf("post burst must be at least 1, got %d", c.PostBurst))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
