package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUniqueFileName(t *testing.T) {
	now := time.UnixMilli(1717200000123)
	assert.Equal(t, "1717200000123-red_silk_saree.jpg", GenerateUniqueFileName("Red Silk Saree.JPG", now))
	assert.Equal(t, "1717200000123-passwd", GenerateUniqueFileName("../../etc/passwd", now))
}

func TestLocalBlobStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public", "uploads")
	store, err := NewLocalBlobStore(dir, "/uploads")
	require.NoError(t, err)

	path, err := store.Save(context.Background(), []byte("image-bytes"), "1-a.png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/1-a.png", path)

	raw, err := os.ReadFile(filepath.Join(dir, "1-a.png"))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(raw))
}
