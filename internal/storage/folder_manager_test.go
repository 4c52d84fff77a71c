package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFolderManager_Layout(t *testing.T) {
	fm := NewFolderManager("/data", zap.NewNop())
	owner := Owner{TenantKey: "t1", BaseID: "b1", UserID: "u1"}

	dir := fm.FileDir(owner, 1700000000000, "6A3847A3-14F5-4C7E-A5D1-26C7FB0BF6EF")

	assert.Equal(t, filepath.Join("/data", "t1", "u1", "b1", "1700000000000", "6A3847A3-14F5-4C7E-A5D1-26C7FB0BF6EF"), dir)
	assert.Equal(t, filepath.Join(dir, "_raw_file", "a.csv"), fm.RawFilePath(dir, "a.csv"))
	assert.Equal(t, filepath.Join(dir, "_meta.json"), fm.MetaPath(dir))
	assert.Equal(t, filepath.Join(dir, "_chunk_meta.json"), fm.ChunkMetaPath(dir))
	assert.Equal(t, filepath.Join(dir, "_raw_file", "_chunks", "2"), fm.ChunkPath(dir, 2))
}

func TestFolderManager_CountFiles(t *testing.T) {
	tempDir := t.TempDir()
	fm := NewFolderManager(tempDir, zap.NewNop())
	owner := Owner{TenantKey: "t", BaseID: "b", UserID: "u"}
	other := Owner{TenantKey: "t", BaseID: "b", UserID: "someone-else"}

	for i, o := range []Owner{owner, owner, other} {
		dir := fm.FileDir(o, int64(i), "uuid")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(fm.MetaPath(dir), []byte("{}"), 0644))
	}

	count, err := fm.CountFiles(owner)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = fm.CountFiles(Owner{TenantKey: "nobody", BaseID: "b", UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFolderManager_SanitizeFolderName(t *testing.T) {
	fm := NewFolderManager(t.TempDir(), zap.NewNop())

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "keeps valid characters", input: "ABC123-XYZ", expected: "ABC123-XYZ"},
		{name: "removes path separators", input: "../../../etc/passwd", expected: "etcpasswd"},
		{name: "removes special characters", input: "test<>:\"|?*file", expected: "testfile"},
		{name: "preserves underscores and hyphens", input: "test_file-name", expected: "test_file-name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, fm.SanitizeFolderName(tt.input))
		})
	}
}

func TestFolderManager_PathTraversalPrevention(t *testing.T) {
	tempDir := t.TempDir()
	fm := NewFolderManager(tempDir, zap.NewNop())

	dir := fm.OwnerDir(Owner{TenantKey: "../../..", BaseID: "/etc", UserID: "passwd"})

	assert.True(t, filepath.HasPrefix(dir, tempDir))
	assert.NotContains(t, dir, "..")
}
