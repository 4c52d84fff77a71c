package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/repository"
	"github.com/garyjia/sheet-import/internal/storage"
	"github.com/garyjia/sheet-import/internal/token"
	"github.com/garyjia/sheet-import/pkg/database"
)

// mockIndex serves a fixed list of expired records
type mockIndex struct {
	mu      sync.Mutex
	records []*storage.FileRecord
	deleted []string
	listErr error
	cutoffs []time.Time
}

func (m *mockIndex) ListExpired(ctx context.Context, before time.Time, limit int) ([]*storage.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, before)
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.records) > limit {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func (m *mockIndex) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, token)
	return nil
}

// mockDeleter fails for tokens listed in errs
type mockDeleter struct {
	mu      sync.Mutex
	deleted []string
	errs    map[string]error
}

func (m *mockDeleter) DeleteFile(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[token]; ok {
		return err
	}
	m.deleted = append(m.deleted, token)
	return nil
}

func TestExpirySweeper_Sweep(t *testing.T) {
	index := &mockIndex{records: []*storage.FileRecord{
		{Token: "ok"},
		{Token: "gone"},
		{Token: "broken"},
	}}
	files := &mockDeleter{errs: map[string]error{
		"gone":   storage.ErrNotFound,
		"broken": errors.New("disk error"),
	}}

	s := NewExpirySweeper(index, files, SweeperConfig{TTL: time.Hour}, zap.NewNop())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	removed := s.Sweep(context.Background())
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"ok"}, files.deleted)
	assert.Equal(t, []string{"gone"}, index.deleted)
	require.Len(t, index.cutoffs, 1)
	assert.Equal(t, now.Add(-time.Hour), index.cutoffs[0])
}

func TestExpirySweeper_ListError(t *testing.T) {
	index := &mockIndex{listErr: errors.New("db closed")}
	s := NewExpirySweeper(index, &mockDeleter{}, SweeperConfig{}, zap.NewNop())
	assert.Equal(t, 0, s.Sweep(context.Background()))
}

func TestExpirySweeper_Defaults(t *testing.T) {
	s := NewExpirySweeper(&mockIndex{}, &mockDeleter{}, SweeperConfig{}, zap.NewNop())
	assert.Equal(t, 24*time.Hour, s.config.TTL)
	assert.Equal(t, 10*time.Minute, s.config.Interval)
	assert.Equal(t, 200, s.config.BatchSize)
	assert.Equal(t, "ExpirySweeper", s.Name())
}

func TestExpirySweeper_StartStop(t *testing.T) {
	index := &mockIndex{records: []*storage.FileRecord{{Token: "ok"}}}
	files := &mockDeleter{}
	s := NewExpirySweeper(index, files, SweeperConfig{Interval: time.Hour}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	// the first sweep runs on start
	assert.Eventually(t, func() bool {
		files.mu.Lock()
		defer files.mu.Unlock()
		return len(files.deleted) == 1
	}, time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestExpirySweeper_WithStoreAndIndex(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "files.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run(ctx))
	repo := repository.NewFileRepository(db.DB, logger)

	codec, err := token.NewCodec("sweeper-test-secret")
	require.NoError(t, err)
	store, err := storage.NewFileStore(storage.Config{RootDir: t.TempDir()}, codec, repo, logger)
	require.NoError(t, err)

	owner := storage.Owner{TenantKey: "t", BaseID: "b", UserID: "u"}
	tok, err := store.SaveFile(ctx, owner, "data.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)

	s := NewExpirySweeper(repo, store, SweeperConfig{TTL: time.Hour}, logger)
	assert.Equal(t, 0, s.Sweep(ctx))

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 1, s.Sweep(ctx))

	_, err = store.GetFile(ctx, tok)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	rec, err := repo.GetByToken(ctx, tok)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
