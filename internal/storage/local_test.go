package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key, err := s.Save(context.Background(), "documents", "app12_", ".PDF", strings.NewReader("%PDF-1.4"), 1024)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "documents/app12_"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	rc, err := s.Open(key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(b))
}

func TestSaveRejectsOversizedBody(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "documents", "", ".pdf", strings.NewReader("0123456789"), 4)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestKeysCannotEscapeRoot(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../etc/passwd", "/etc/passwd", "..", ""} {
		_, err := s.Open(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
	_, err = s.Open("documents/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete("documents/missing.pdf"))
}
