package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/token"
)

// mockIndex records index calls
type mockIndex struct {
	mu      sync.Mutex
	records map[string]*FileRecord
}

func newMockIndex() *mockIndex {
	return &mockIndex{records: make(map[string]*FileRecord)}
}

func (m *mockIndex) Save(ctx context.Context, rec *FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Token] = rec
	return nil
}

func (m *mockIndex) Delete(ctx context.Context, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, tok)
	return nil
}

func (m *mockIndex) get(tok string) *FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[tok]
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func newTestStore(t *testing.T, cfg Config) (*FileStore, *mockIndex) {
	t.Helper()
	if cfg.RootDir == "" {
		cfg.RootDir = t.TempDir()
	}
	codec, err := token.NewCodec("storage-test-secret")
	require.NoError(t, err)

	index := newMockIndex()
	store, err := NewFileStore(cfg, codec, index, zap.NewNop())
	require.NoError(t, err)
	return store, index
}

var testOwner = Owner{TenantKey: "tenant", BaseID: "base", UserID: "user"}

func TestFileStore_SaveAndGet(t *testing.T) {
	store, index := newTestStore(t, Config{})
	ctx := context.Background()
	content := []byte("name,age\nann,3\n")

	tok, err := store.SaveFile(ctx, testOwner, "../people list.csv", content)
	require.NoError(t, err)

	item, err := store.GetFile(ctx, tok)
	require.NoError(t, err)

	assert.Equal(t, "people_list.csv", item.Filename)
	assert.Equal(t, md5Hex(content), item.MD5)
	assert.Equal(t, int64(len(content)), item.Size)
	assert.Equal(t, filepath.Join(item.DirPath, "_raw_file", "people_list.csv"), item.FilePath)
	assert.FileExists(t, filepath.Join(item.DirPath, "_meta.json"))

	data, err := os.ReadFile(item.FilePath)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	rec := index.get(tok)
	require.NotNil(t, rec)
	assert.Equal(t, StatusReady, rec.Status)
}

func TestFileStore_Limits(t *testing.T) {
	ctx := context.Background()

	t.Run("quota exceeded performs no write", func(t *testing.T) {
		store, _ := newTestStore(t, Config{UserFileLimit: 2})
		for i := 0; i < 2; i++ {
			_, err := store.SaveFile(ctx, testOwner, "f.csv", []byte("x"))
			require.NoError(t, err)
		}

		_, err := store.SaveFile(ctx, testOwner, "f.csv", []byte("x"))
		assert.ErrorIs(t, err, ErrQuotaExceeded)

		count, err := store.folders.CountFiles(testOwner)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		other := Owner{TenantKey: "tenant", BaseID: "base", UserID: "other"}
		_, err = store.SaveFile(ctx, other, "f.csv", []byte("x"))
		assert.NoError(t, err)
	})

	t.Run("zero limit means unlimited", func(t *testing.T) {
		store, _ := newTestStore(t, Config{UserFileLimit: 0})
		for i := 0; i < 5; i++ {
			_, err := store.SaveFile(ctx, testOwner, "f.csv", []byte("x"))
			require.NoError(t, err)
		}
	})

	t.Run("file too large", func(t *testing.T) {
		store, _ := newTestStore(t, Config{MaxFileSize: 4})
		_, err := store.SaveFile(ctx, testOwner, "f.csv", []byte("12345"))
		assert.ErrorIs(t, err, ErrFileTooLarge)

		_, err = store.StartChunk(ctx, testOwner, "f.csv", md5Hex([]byte("12345")), 5, 1)
		assert.ErrorIs(t, err, ErrFileTooLarge)

		count, err := store.folders.CountFiles(testOwner)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("pending uploads count against quota", func(t *testing.T) {
		store, _ := newTestStore(t, Config{UserFileLimit: 1})
		_, err := store.StartChunk(ctx, testOwner, "f.csv", md5Hex([]byte("x")), 1, 1)
		require.NoError(t, err)

		_, err = store.SaveFile(ctx, testOwner, "g.csv", []byte("x"))
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	})
}

func TestFileStore_ChunkedUpload(t *testing.T) {
	ctx := context.Background()
	chunks := [][]byte{[]byte("first-"), []byte("second-"), []byte("third")}
	full := append(append(append([]byte{}, chunks[0]...), chunks[1]...), chunks[2]...)

	t.Run("out of order chunks assemble in index order", func(t *testing.T) {
		store, index := newTestStore(t, Config{})
		tok, err := store.StartChunk(ctx, testOwner, "big.csv", md5Hex(full), int64(len(full)), 3)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, index.get(tok).Status)

		_, err = store.GetFile(ctx, tok)
		assert.ErrorIs(t, err, ErrUploadPending)

		for _, i := range []int{2, 1, 3} {
			require.NoError(t, store.SaveFileChunk(ctx, tok, i, chunks[i-1]))
		}

		item, err := store.AssembleFileChunks(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, md5Hex(full), item.MD5)
		assert.Equal(t, int64(len(full)), item.Size)

		data, err := os.ReadFile(item.FilePath)
		require.NoError(t, err)
		assert.Equal(t, full, data)

		assert.NoFileExists(t, filepath.Join(item.DirPath, "_chunk_meta.json"))
		assert.NoDirExists(t, filepath.Join(item.DirPath, "_raw_file", "_chunks"))
		assert.Equal(t, StatusReady, index.get(tok).Status)

		err = store.SaveFileChunk(ctx, tok, 1, chunks[0])
		assert.ErrorIs(t, err, ErrNoChunkMeta)
	})

	t.Run("repeated chunk is a no-op", func(t *testing.T) {
		store, _ := newTestStore(t, Config{})
		tok, err := store.StartChunk(ctx, testOwner, "big.csv", md5Hex(full), int64(len(full)), 3)
		require.NoError(t, err)

		require.NoError(t, store.SaveFileChunk(ctx, tok, 1, chunks[0]))
		require.NoError(t, store.SaveFileChunk(ctx, tok, 1, []byte("different")))

		ok, err := store.CheckChunk(ctx, tok, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = store.CheckChunk(ctx, tok, 2)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.SaveFileChunk(ctx, tok, 2, chunks[1]))
		require.NoError(t, store.SaveFileChunk(ctx, tok, 3, chunks[2]))
		item, err := store.AssembleFileChunks(ctx, tok)
		require.NoError(t, err)

		data, err := os.ReadFile(item.FilePath)
		require.NoError(t, err)
		assert.Equal(t, full, data)
	})

	t.Run("missing chunk fails assembly", func(t *testing.T) {
		store, _ := newTestStore(t, Config{})
		tok, err := store.StartChunk(ctx, testOwner, "big.csv", md5Hex(full), int64(len(full)), 3)
		require.NoError(t, err)
		require.NoError(t, store.SaveFileChunk(ctx, tok, 1, chunks[0]))
		require.NoError(t, store.SaveFileChunk(ctx, tok, 3, chunks[2]))

		_, err = store.AssembleFileChunks(ctx, tok)
		assert.ErrorIs(t, err, ErrChunkNotFound)
	})

	t.Run("altered chunk rolls back", func(t *testing.T) {
		store, index := newTestStore(t, Config{})
		tok, err := store.StartChunk(ctx, testOwner, "big.csv", md5Hex(full), int64(len(full)), 3)
		require.NoError(t, err)
		require.NoError(t, store.SaveFileChunk(ctx, tok, 1, chunks[0]))
		require.NoError(t, store.SaveFileChunk(ctx, tok, 2, []byte("tampered")))
		require.NoError(t, store.SaveFileChunk(ctx, tok, 3, chunks[2]))

		meta, err := store.codec.DecodeFile(tok)
		require.NoError(t, err)
		dir := store.dirOf(meta)

		_, err = store.AssembleFileChunks(ctx, tok)
		assert.ErrorIs(t, err, ErrIntegrityMismatch)
		assert.NoDirExists(t, dir)
		assert.Nil(t, index.get(tok))

		_, err = store.GetFile(ctx, tok)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("chunk index out of range", func(t *testing.T) {
		store, _ := newTestStore(t, Config{})
		tok, err := store.StartChunk(ctx, testOwner, "big.csv", md5Hex(full), int64(len(full)), 3)
		require.NoError(t, err)

		assert.ErrorIs(t, store.SaveFileChunk(ctx, tok, 0, chunks[0]), ErrInvalidChunk)
		assert.ErrorIs(t, store.SaveFileChunk(ctx, tok, 4, chunks[0]), ErrInvalidChunk)
	})

	t.Run("chunk on whole upload has no chunk meta", func(t *testing.T) {
		store, _ := newTestStore(t, Config{})
		tok, err := store.SaveFile(ctx, testOwner, "f.csv", full)
		require.NoError(t, err)

		assert.ErrorIs(t, store.SaveFileChunk(ctx, tok, 1, chunks[0]), ErrNoChunkMeta)
		_, err = store.AssembleFileChunks(ctx, tok)
		assert.ErrorIs(t, err, ErrNoChunkMeta)
	})

	t.Run("start rejects bad input", func(t *testing.T) {
		store, _ := newTestStore(t, Config{})
		_, err := store.StartChunk(ctx, testOwner, "f.csv", "not-an-md5", 10, 2)
		assert.Error(t, err)
		_, err = store.StartChunk(ctx, testOwner, "f.csv", md5Hex(full), 10, 0)
		assert.ErrorIs(t, err, ErrInvalidChunk)
	})
}

func TestFileStore_Delete(t *testing.T) {
	store, index := newTestStore(t, Config{})
	ctx := context.Background()
	store.now = func() time.Time { return time.UnixMilli(1700000000000) }

	tok, err := store.SaveFile(ctx, testOwner, "f.csv", []byte("a,b\n"))
	require.NoError(t, err)
	item, err := store.GetFile(ctx, tok)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(item.DirPath, "cache"), 0755))

	require.NoError(t, store.DeleteFile(ctx, tok))
	assert.NoDirExists(t, item.DirPath)
	assert.Nil(t, index.get(tok))

	err = store.DeleteFile(ctx, tok)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_ExternallyRemoved(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	tok, err := store.SaveFile(ctx, testOwner, "f.csv", []byte("a"))
	require.NoError(t, err)
	item, err := store.GetFile(ctx, tok)
	require.NoError(t, err)

	require.NoError(t, os.Remove(item.FilePath))
	_, err = store.GetFile(ctx, tok)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_BadToken(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	_, err := store.GetFile(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, token.ErrDecode)
}
