package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		development bool
		want        zapcore.Level
	}{
		{name: "empty defaults to warn", level: "", want: zapcore.WarnLevel},
		{name: "debug", level: "debug", want: zapcore.DebugLevel},
		{name: "error", level: "error", want: zapcore.ErrorLevel},
		{name: "development info", level: "info", development: true, want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.development)
			require.NoError(t, err)
			defer logger.Sync()

			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("verbose", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
