package logger

import (
	"testing"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New(config.LogConfig{Level: "debug", Format: "console", OutputPath: "stdout"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(config.LogConfig{Level: "warn", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = New(config.LogConfig{Level: "loud", Format: "json", OutputPath: "stdout"})
	assert.Error(t, err)
}

func TestMaskedFields(t *testing.T) {
	tests := []struct {
		field zapcore.Field
		want  string
	}{
		{Email("to", "jane.doe@example.com"), "j***@example.com"},
		{Email("to", " Bob@clinic.org "), "B***@clinic.org"},
		{Email("to", "not-an-email"), "***"},
		{Phone("to", "+1 (555) 010-4477"), "***4477"},
		{Phone("to", "123"), "***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.field.String)
	}
}
