package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/keepsake/internal/adapters/llm"
	memstore "github.com/PabloGalante/keepsake/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/keepsake/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/keepsake/internal/config"
	"github.com/PabloGalante/keepsake/internal/domain"
)

func TestNewGenerator_Mock(t *testing.T) {
	gen, err := NewGenerator(context.Background(), &config.Config{UseMockLLM: true})
	require.NoError(t, err)
	assert.IsType(t, &llm.MockGenerator{}, gen)
}

func TestNewGenerator_GeminiNeedsKey(t *testing.T) {
	_, err := NewGenerator(context.Background(), &config.Config{})
	require.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestOpenArchive(t *testing.T) {
	store, closeFn, err := OpenArchive(context.Background(), &config.Config{StorageBackend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memstore.KeepsakeStore{}, store)
	require.NoError(t, closeFn())

	path := filepath.Join(t.TempDir(), "archive.db")
	store, closeFn, err = OpenArchive(context.Background(), &config.Config{StorageBackend: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	assert.IsType(t, &sqlitestore.Store{}, store)
	require.NoError(t, closeFn())
}

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, time.Duration(0), janitorInterval(0))
	assert.Equal(t, time.Minute, janitorInterval(2*time.Minute))
	assert.Equal(t, 15*time.Minute, janitorInterval(time.Hour))
}
