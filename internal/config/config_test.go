package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	envPort, envDBPath, envScratchDir, envLogLevel, envLogFormat,
	envSessionSecret, envSessionTTL, envSessionTimeLimit, envCompileTimeout, envRunTimeout,
	envMaxOutputBytes, envJavaWrap, envMaxConcurrent, envRatePerSec,
	envRateBurst, envCORSOrigins, envPythonCmd, envCCCmd, envJavacCmd, envJavaCmd,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultDBPath, cfg.DBPath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeLimit)
	assert.True(t, cfg.SessionSecretGenerated)
	assert.Len(t, cfg.SessionSecret, generatedSecretSize*2)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)

	assert.Equal(t, "temp", cfg.Executor.ScratchDir)
	assert.Equal(t, 5*time.Second, cfg.Executor.CompileTimeout)
	assert.Equal(t, 5*time.Second, cfg.Executor.RunTimeout)
	assert.Equal(t, int64(10*1024*1024), cfg.Executor.MaxOutputBytes)
	assert.True(t, cfg.Executor.WrapJava)
	assert.Equal(t, []string{"gcc"}, cfg.Executor.Toolchains.CC)
}

func TestLoadGeneratesDistinctSecrets(t *testing.T) {
	clearEnv(t)

	a, err := Load()
	require.NoError(t, err)
	b, err := Load()
	require.NoError(t, err)

	assert.NotEqual(t, a.SessionSecret, b.SessionSecret)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envPort, "9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envScratchDir, "/tmp/scratch")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envLogFormat, "JSON")
	t.Setenv(envSessionSecret, "s3cret")
	t.Setenv(envSessionTTL, "1h")
	t.Setenv(envSessionTimeLimit, "45m")
	t.Setenv(envCompileTimeout, "20s")
	t.Setenv(envRunTimeout, "2s")
	t.Setenv(envMaxOutputBytes, "4096")
	t.Setenv(envJavaWrap, "false")
	t.Setenv(envMaxConcurrent, "2")
	t.Setenv(envRatePerSec, "0.5")
	t.Setenv(envRateBurst, "3")
	t.Setenv(envCORSOrigins, "http://localhost:3000, https://debugger.example.com,")
	t.Setenv(envPythonCmd, `python3 -X utf8`)
	t.Setenv(envJavaCmd, `"/opt/jdk 21/bin/java" -Xmx256m`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "/tmp/scratch", cfg.Executor.ScratchDir)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []byte("s3cret"), cfg.SessionSecret)
	assert.False(t, cfg.SessionSecretGenerated)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 45*time.Minute, cfg.SessionTimeLimit)
	assert.Equal(t, 20*time.Second, cfg.Executor.CompileTimeout)
	assert.Equal(t, 2*time.Second, cfg.Executor.RunTimeout)
	assert.Equal(t, int64(4096), cfg.Executor.MaxOutputBytes)
	assert.False(t, cfg.Executor.WrapJava)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, 0.5, cfg.RatePerSec)
	assert.Equal(t, 3, cfg.RateBurst)
	assert.Equal(t, []string{"http://localhost:3000", "https://debugger.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"python3", "-X", "utf8"}, cfg.Executor.Toolchains.Python)
	assert.Equal(t, []string{"/opt/jdk 21/bin/java", "-Xmx256m"}, cfg.Executor.Toolchains.Java)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{envPort, "http"},
		{envPort, "70000"},
		{envLogFormat, "xml"},
		{envSessionTTL, "forever"},
		{envSessionTTL, "10m"},
		{envSessionTimeLimit, "5h"},
		{envSessionTimeLimit, "0s"},
		{envRunTimeout, "0s"},
		{envCompileTimeout, "-1s"},
		{envMaxOutputBytes, "lots"},
		{envJavaWrap, "maybe"},
		{envMaxConcurrent, "0"},
		{envRatePerSec, "-2"},
		{envRateBurst, "x"},
		{envCCCmd, `gcc "unterminated`},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.key), "error should name %s: %v", tt.key, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.input), "parseLogLevel(%q)", tt.input)
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "json").Info("test message", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "output: %s", buf.String())
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])

	buf.Reset()
	NewLogger(&buf, slog.LevelInfo, "text").Info("plain message")
	assert.Contains(t, buf.String(), `msg="plain message"`)

	buf.Reset()
	NewLogger(&buf, slog.LevelWarn, "text").Info("filtered")
	assert.Empty(t, buf.String())
}
