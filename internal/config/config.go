// Package config loads server configuration from environment variables.
//
// Every setting has a default that works for local development, so the server
// starts with no environment at all. Invalid values are rejected at startup
// rather than silently replaced by the default.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/sakif/code-debugger/internal/executor/local"
)

const (
	envPort             = "PORT"
	envDBPath           = "DB_PATH"
	envScratchDir       = "SCRATCH_DIR"
	envLogLevel         = "LOG_LEVEL"
	envLogFormat        = "LOG_FORMAT"
	envSessionSecret    = "SESSION_SECRET"
	envSessionTTL       = "SESSION_TTL"
	envSessionTimeLimit = "SESSION_TIME_LIMIT"
	envCompileTimeout   = "EXEC_COMPILE_TIMEOUT"
	envRunTimeout       = "EXEC_RUN_TIMEOUT"
	envMaxOutputBytes   = "EXEC_MAX_OUTPUT_BYTES"
	envJavaWrap         = "EXEC_JAVA_WRAP"
	envMaxConcurrent    = "EXEC_MAX_CONCURRENT"
	envRatePerSec       = "EXEC_RATE_PER_SEC"
	envRateBurst        = "EXEC_RATE_BURST"
	envCORSOrigins      = "CORS_ORIGINS"
	envPythonCmd        = "PYTHON_CMD"
	envCCCmd            = "CC_CMD"
	envJavacCmd         = "JAVAC_CMD"
	envJavaCmd          = "JAVA_CMD"
	defaultPort         = 8080
	defaultDBPath       = "data/debugger.db"
	defaultSessionTTL   = 2 * time.Hour
	defaultTimeLimit    = 30 * time.Minute
	defaultMaxConc      = 8
	defaultRatePerSec   = 5.0
	defaultRateBurst    = 10
	generatedSecretSize = 32
)

// Config holds everything cmd/server needs to wire the application.
type Config struct {
	Port      int
	DBPath    string
	LogLevel  slog.Level
	LogFormat string // "text" or "json"

	// SessionSecret signs session tokens. When SESSION_SECRET is unset a
	// random secret is generated, so tokens do not survive a restart.
	SessionSecret          []byte
	SessionSecretGenerated bool
	SessionTTL             time.Duration

	// SessionTimeLimit is how long a quiz lasts. SessionTTL must be at
	// least this long so the final stats stay reachable.
	SessionTimeLimit time.Duration

	Executor local.Config

	// Limits for the execute endpoints.
	MaxConcurrent int
	RatePerSec    float64
	RateBurst     int

	CORSOrigins []string
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:             defaultPort,
		DBPath:           defaultDBPath,
		LogLevel:         slog.LevelInfo,
		LogFormat:        "text",
		SessionTTL:       defaultSessionTTL,
		SessionTimeLimit: defaultTimeLimit,
		Executor:         local.DefaultConfig(),
		MaxConcurrent:    defaultMaxConc,
		RatePerSec:       defaultRatePerSec,
		RateBurst:        defaultRateBurst,
		CORSOrigins:      []string{"*"},
	}

	var err error
	if v := os.Getenv(envPort); v != "" {
		if cfg.Port, err = strconv.Atoi(v); err != nil || cfg.Port <= 0 || cfg.Port > 65535 {
			return Config{}, fmt.Errorf("config: invalid %s %q", envPort, v)
		}
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envScratchDir); v != "" {
		cfg.Executor.ScratchDir = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envLogFormat); v != "" {
		switch f := strings.ToLower(v); f {
		case "text", "json":
			cfg.LogFormat = f
		default:
			return Config{}, fmt.Errorf("config: invalid %s %q (want text or json)", envLogFormat, v)
		}
	}

	if v := os.Getenv(envSessionSecret); v != "" {
		cfg.SessionSecret = []byte(v)
	} else {
		if cfg.SessionSecret, err = randomSecret(); err != nil {
			return Config{}, err
		}
		cfg.SessionSecretGenerated = true
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{envSessionTTL, &cfg.SessionTTL},
		{envSessionTimeLimit, &cfg.SessionTimeLimit},
		{envCompileTimeout, &cfg.Executor.CompileTimeout},
		{envRunTimeout, &cfg.Executor.RunTimeout},
	}
	for _, d := range durations {
		if err := lookupDuration(d.key, d.dst); err != nil {
			return Config{}, err
		}
	}

	if cfg.SessionTTL < cfg.SessionTimeLimit {
		return Config{}, fmt.Errorf("config: %s (%s) is shorter than %s (%s)",
			envSessionTTL, cfg.SessionTTL, envSessionTimeLimit, cfg.SessionTimeLimit)
	}

	if v := os.Getenv(envMaxOutputBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: invalid %s %q", envMaxOutputBytes, v)
		}
		cfg.Executor.MaxOutputBytes = n
	}
	if v := os.Getenv(envJavaWrap); v != "" {
		if cfg.Executor.WrapJava, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("config: invalid %s %q", envJavaWrap, v)
		}
	}
	if v := os.Getenv(envMaxConcurrent); v != "" {
		if cfg.MaxConcurrent, err = strconv.Atoi(v); err != nil || cfg.MaxConcurrent <= 0 {
			return Config{}, fmt.Errorf("config: invalid %s %q", envMaxConcurrent, v)
		}
	}
	if v := os.Getenv(envRatePerSec); v != "" {
		if cfg.RatePerSec, err = strconv.ParseFloat(v, 64); err != nil || cfg.RatePerSec <= 0 {
			return Config{}, fmt.Errorf("config: invalid %s %q", envRatePerSec, v)
		}
	}
	if v := os.Getenv(envRateBurst); v != "" {
		if cfg.RateBurst, err = strconv.Atoi(v); err != nil || cfg.RateBurst <= 0 {
			return Config{}, fmt.Errorf("config: invalid %s %q", envRateBurst, v)
		}
	}
	if v := os.Getenv(envCORSOrigins); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	toolchains := []struct {
		key string
		dst *[]string
	}{
		{envPythonCmd, &cfg.Executor.Toolchains.Python},
		{envCCCmd, &cfg.Executor.Toolchains.CC},
		{envJavacCmd, &cfg.Executor.Toolchains.Javac},
		{envJavaCmd, &cfg.Executor.Toolchains.Java},
	}
	for _, tc := range toolchains {
		if err := lookupCommand(tc.key, tc.dst); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func lookupDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("config: invalid %s %q (want a positive duration like 5s)", key, v)
	}
	*dst = d
	return nil
}

// lookupCommand splits a shell-like command line into an argument vector.
// The result is handed straight to exec; no shell ever sees it.
func lookupCommand(key string, dst *[]string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	args, err := shlex.Split(v)
	if err != nil {
		return fmt.Errorf("config: parsing %s: %w", key, err)
	}
	if len(args) == 0 {
		return fmt.Errorf("config: %s is empty", key)
	}
	*dst = args
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func randomSecret() ([]byte, error) {
	buf := make([]byte, generatedSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("config: generating session secret: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured logger writing to w in the configured format.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
