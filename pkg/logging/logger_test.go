package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	level := zerolog.GlobalLevel()
	logger := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		log.Logger = logger
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, LevelInfo, cfg.Level)
	assert.False(t, cfg.Pretty)
	assert.NotNil(t, cfg.Output)
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		name    string
		level   LogLevel
		visible []string
		hidden  []string
	}{
		{
			name:    "debug",
			level:   LevelDebug,
			visible: []string{"debug message", "info message", "warn message", "error message"},
		},
		{
			name:    "info",
			level:   LevelInfo,
			visible: []string{"info message", "warn message", "error message"},
			hidden:  []string{"debug message"},
		},
		{
			name:    "warn",
			level:   LevelWarn,
			visible: []string{"warn message", "error message"},
			hidden:  []string{"debug message", "info message"},
		},
		{
			name:    "error",
			level:   LevelError,
			visible: []string{"error message"},
			hidden:  []string{"debug message", "info message", "warn message"},
		},
		{
			name:   "disabled",
			level:  LevelDisabled,
			hidden: []string{"debug message", "info message", "warn message", "error message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreGlobals(t)
			buf := &bytes.Buffer{}

			logger := Setup(Config{Level: tt.level, Output: buf})
			logger.Debug().Msg("debug message")
			logger.Info().Msg("info message")
			logger.Warn().Msg("warn message")
			logger.Error().Msg("error message")

			output := buf.String()
			for _, msg := range tt.visible {
				assert.Contains(t, output, msg)
			}
			for _, msg := range tt.hidden {
				assert.NotContains(t, output, msg)
			}
		})
	}
}

func TestSetup_Pretty(t *testing.T) {
	restoreGlobals(t)
	buf := &bytes.Buffer{}

	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	logger.Info().Str("table", "orders").Msg("pretty message")

	output := buf.String()
	assert.Contains(t, output, "pretty message")
	assert.NotContains(t, output, `"message"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{input: "debug", expected: LevelDebug},
		{input: "INFO", expected: LevelInfo},
		{input: "", expected: LevelInfo},
		{input: "warning", expected: LevelWarn},
		{input: " error ", expected: LevelError},
		{input: "off", expected: LevelDisabled},
		{input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestToZerolog(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, toZerolog(LevelDebug))
	assert.Equal(t, zerolog.WarnLevel, toZerolog(LevelWarn))
	assert.Equal(t, zerolog.Disabled, toZerolog(LevelDisabled))
	assert.Equal(t, zerolog.InfoLevel, toZerolog("invalid"))
}

func TestNewLogger(t *testing.T) {
	restoreGlobals(t)
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("parallel-scan")
	logger.Info().Msg("test message")

	assert.Contains(t, buf.String(), `"component":"parallel-scan"`)
	assert.Contains(t, buf.String(), "test message")
}
