package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort          = 3318
	defaultPollDuration  = 7200 * time.Second
	defaultSweepInterval = 5 * time.Minute
)

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	JWTSecret     string
	PollDuration  time.Duration
	SweepInterval time.Duration
	ClientOrigins []string
	LogLevel      slog.Level
}

// ParseFlags reads flags, then environment variables, then defaults. Values
// from the env file never override variables already set in the environment.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var (
		envFile       string
		pollSeconds   int
		sweepInterval time.Duration
		origins       string
		logLevel      string
	)

	fs := flag.NewFlagSet("quickly-rank", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&origins, "origins", "", "Comma separated allowed client origins")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "Token signing secret (prefer env)")

	// Poll lifecycle
	fs.IntVar(&pollSeconds, "poll-duration", 0, "Poll lifetime in seconds")
	fs.DurationVar(&sweepInterval, "sweep-interval", 0, "How often expired polls are deleted")

	fs.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&envFile, "env-file", ".env", "Env file to load if present")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = defaultPort
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}

	if pollSeconds == 0 {
		if s := os.Getenv("POLL_DURATION"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return Config{}, errors.New("invalid POLL_DURATION env variable")
			}
			pollSeconds = n
		}
	}
	cfg.PollDuration = defaultPollDuration
	if pollSeconds != 0 {
		cfg.PollDuration = time.Duration(pollSeconds) * time.Second
	}
	if cfg.PollDuration <= 0 {
		return Config{}, errors.New("poll duration must be positive")
	}

	if sweepInterval == 0 {
		if s := os.Getenv("SWEEP_INTERVAL"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return Config{}, errors.New("invalid SWEEP_INTERVAL env variable")
			}
			sweepInterval = d
		}
	}
	cfg.SweepInterval = defaultSweepInterval
	if sweepInterval != 0 {
		cfg.SweepInterval = sweepInterval
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, errors.New("sweep interval must be positive")
	}

	if origins == "" {
		origins = os.Getenv("CLIENT_ORIGINS")
	}
	cfg.ClientOrigins = splitOrigins(origins)

	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
	}
	if logLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
			return Config{}, fmt.Errorf("invalid log level %q", logLevel)
		}
	}

	return cfg, nil
}

// splitOrigins parses a comma separated list. Empty input allows any origin.
func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
