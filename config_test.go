package shapekit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rawbytedev/shapekit/pkg/errs"
)

func TestLoadOptions(t *testing.T) {
	opts, err := LoadOptions(strings.NewReader(`
page_size: 4096
max_scan: 256
max_string_length: 64
heap_limit: 1048576
log_level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, Options{
		PageSize:        4096,
		MaxScan:         256,
		MaxStringLength: 64,
		HeapLimit:       1 << 20,
		LogLevel:        "debug",
	}, opts)

	opts, err = LoadOptions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Options{}, opts)

	_, err = LoadOptions(strings.NewReader("page_sise: 12"))
	assert.ErrorIs(t, err, errs.ErrParameters)
}

func TestLoadOptionsEnvironment(t *testing.T) {
	t.Setenv(EnvPageSize, "512")
	t.Setenv(EnvLogLevel, "error")
	opts, err := LoadOptions(strings.NewReader("page_size: 4096\nlog_level: info"))
	require.NoError(t, err)
	assert.Equal(t, uint32(512), opts.PageSize)
	assert.Equal(t, "error", opts.LogLevel)

	t.Setenv(EnvPageSize, "lots")
	_, err = LoadOptions(strings.NewReader(""))
	assert.ErrorIs(t, err, errs.ErrParameters)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvPageSize: "", EnvLogLevel: "warn"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	opts := Options{PageSize: 64}
	require.NoError(t, applyEnv(&opts, lookup))
	assert.Equal(t, uint32(64), opts.PageSize)
	assert.Equal(t, "warn", opts.LogLevel)

	env[EnvPageSize] = "8589934592"
	assert.ErrorIs(t, applyEnv(&opts, lookup), errs.ErrParameters)
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, log.Desugar().Core().Enabled(zap.DebugLevel))

	log, err = NewLogger("error")
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(zap.InfoLevel))

	_, err = NewLogger("chatty")
	assert.ErrorIs(t, err, errs.ErrParameters)
}
