package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := New(Config{Level: "debug", Format: "json", Output: path, Component: "storage"})

	logger.Debug("primary store failed", "op", "find")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"primary store failed"`)
	assert.Contains(t, string(raw), `"component":"storage"`)
	assert.Contains(t, string(raw), `"op":"find"`)
}

func TestNewLevels(t *testing.T) {
	logger := New(Config{Level: "warn"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	logger = New(Config{Level: "bogus"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
