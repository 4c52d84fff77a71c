package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/cellvalue"
	"github.com/garyjia/sheet-import/internal/parser"
	"github.com/garyjia/sheet-import/internal/storage"
)

// fakeTables serves a fixed destination schema and one peer table
type fakeTables struct {
	fields []*cellvalue.Field
	loads  int
}

func (f *fakeTables) ListFields(ctx context.Context, appToken, tableID string) ([]*cellvalue.Field, error) {
	if tableID != "tblDest" {
		return nil, fmt.Errorf("unknown table %s", tableID)
	}
	return f.fields, nil
}

func (f *fakeTables) LoadLinkTable(ctx context.Context, r *cellvalue.Registry, s *cellvalue.Session, appToken, tableID, primaryField string) (*cellvalue.IndexedTable, error) {
	f.loads++
	if primaryField == "" {
		primaryField = "fPK"
	}
	primary := &cellvalue.Field{ID: "fPK", Name: "name", Type: cellvalue.FieldTypeText}
	text := func(v string) []any { return []any{map[string]any{"type": "text", "text": v}} }
	table := cellvalue.NewIndexedTable(r, s, tableID, []*cellvalue.Field{primary}, []cellvalue.Record{
		{ID: "rec1", Fields: map[string]any{"fPK": text("alice")}},
		{ID: "rec2", Fields: map[string]any{"fPK": text("bob")}},
		{ID: "rec3", Fields: map[string]any{"fPK": text("alice")}},
	}, primaryField)
	s.AddTable(table)
	return table, nil
}

func destFields() []*cellvalue.Field {
	return []*cellvalue.Field{
		{ID: "fName", Name: "Name", Type: cellvalue.FieldTypeText},
		{ID: "fAge", Name: "Age", Type: cellvalue.FieldTypeNumber},
		{ID: "fOwner", Name: "Owner", Type: cellvalue.FieldTypeSingleLink,
			Property: cellvalue.Property{Link: &cellvalue.LinkConfig{TableID: "tblPeer"}}},
		{ID: "fBuddy", Name: "Buddy", Type: cellvalue.FieldTypeDuplexLink,
			Property: cellvalue.Property{Link: &cellvalue.LinkConfig{TableID: "tblPeer"}}},
		{ID: "fCreated", Name: "Created", Type: cellvalue.FieldTypeCreatedTime},
		{ID: "fFiles", Name: "Files", Type: cellvalue.FieldTypeAttachment},
	}
}

type fakeUploader struct {
	mu    sync.Mutex
	names []string
}

func (u *fakeUploader) UploadFile(ctx context.Context, name string, size int64, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names = append(u.names, name)
	return fmt.Sprintf("ft-%d", len(u.names)), nil
}

func newTestService(t *testing.T, tables TableSource, uploader UploaderFactory, client *http.Client) *Service {
	t.Helper()
	artifacts := storage.NewLocalFileStorage(t.TempDir(), zap.NewNop())
	p := parser.New(parser.Config{ImageWorkers: 1}, artifacts, zap.NewNop())
	return NewService(p, cellvalue.DefaultRegistry(), tables, uploader, client, zap.NewNop())
}

func writeCSV(t *testing.T, content string) parser.Source {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return parser.Source{Path: path, Dir: dir, Token: "tok"}
}

const rowsCSV = "Name,Age,Owner,Buddy,Created,Files,Extra\n" +
	"ann,3,alice,bob,2024-01-02,https://files.invalid/a.png,x\n" +
	"bob,oops,carol,,,,y\n" +
	"cat,5,bob,,,,z\n"

func TestTranslate(t *testing.T) {
	tables := &fakeTables{fields: destFields()}
	svc := newTestService(t, tables, nil, nil)

	result, err := svc.Translate(context.Background(), parser.FileTypeCSV, writeCSV(t, rowsCSV), Request{
		AppToken: "app",
		TableID:  "tblDest",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, tables.loads)
	assert.Equal(t, 3, result.Rows)
	assert.False(t, result.HasMore)
	assert.Equal(t, []string{"Name", "Age", "Owner", "Buddy", "Files"}, result.Fields)
	assert.Equal(t, []string{"Created"}, result.Skipped)
	assert.Equal(t, []string{"Extra"}, result.Unmatched)

	require.Len(t, result.Records, 3)
	assert.Equal(t, map[string]any{
		"Name":  "ann",
		"Age":   float64(3),
		"Owner": []string{"rec1", "rec3"},
		"Buddy": []string{"rec2"},
	}, result.Records[0])
	assert.Equal(t, map[string]any{"Name": "bob"}, result.Records[1])
	assert.Equal(t, []string{"rec2"}, result.Records[2]["Owner"])

	// no uploader configured
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Errors[0].Row)
	assert.Equal(t, "Files", result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Message, cellvalue.ErrNoUploader.Error())
}

func TestTranslate_OffsetAndLimit(t *testing.T) {
	svc := newTestService(t, &fakeTables{fields: destFields()}, nil, nil)
	src := writeCSV(t, rowsCSV)
	ctx := context.Background()

	result, err := svc.Translate(ctx, parser.FileTypeCSV, src, Request{AppToken: "app", TableID: "tblDest", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.True(t, result.HasMore)

	result, err = svc.Translate(ctx, parser.FileTypeCSV, src, Request{AppToken: "app", TableID: "tblDest", Offset: 2})
	require.NoError(t, err)
	require.Equal(t, 1, result.Rows)
	assert.Equal(t, "cat", result.Records[0]["Name"])
	assert.False(t, result.HasMore)

	_, err = svc.Translate(ctx, parser.FileTypeCSV, src, Request{AppToken: "app", TableID: "tblDest", Limit: MaxLimit + 1})
	assert.ErrorIs(t, err, parser.ErrInvalidConfig)

	_, err = svc.Translate(ctx, parser.FileTypeCSV, src, Request{AppToken: "app", TableID: "tblDest", Offset: -1})
	assert.ErrorIs(t, err, parser.ErrInvalidConfig)
}

func TestTranslate_UploadsAttachmentsOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	fields := []*cellvalue.Field{
		{ID: "fName", Name: "Name", Type: cellvalue.FieldTypeText},
		{ID: "fFiles", Name: "Files", Type: cellvalue.FieldTypeAttachment},
	}
	uploader := &fakeUploader{}
	svc := newTestService(t, &fakeTables{fields: fields}, func(appToken string) cellvalue.Uploader {
		assert.Equal(t, "app", appToken)
		return uploader
	}, server.Client())

	link := server.URL + "/shared.png"
	csv := "Name,Files\nann," + link + "\nbob," + link + "\n"
	result, err := svc.Translate(context.Background(), parser.FileTypeCSV, writeCSV(t, csv), Request{AppToken: "app", TableID: "tblDest"})
	require.NoError(t, err)

	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Attachments)
	assert.Equal(t, []string{"shared.png"}, uploader.names)
	want := []map[string]any{{"file_token": "ft-1"}}
	assert.Equal(t, want, result.Records[0]["Files"])
	assert.Equal(t, want, result.Records[1]["Files"])
}

func TestTranslate_SchemaError(t *testing.T) {
	svc := newTestService(t, &fakeTables{}, nil, nil)
	_, err := svc.Translate(context.Background(), parser.FileTypeCSV, writeCSV(t, rowsCSV), Request{AppToken: "app", TableID: "other"})
	assert.Error(t, err)
}

func TestMatchColumns(t *testing.T) {
	columns, result := matchColumns([]string{" Name ", "Age", "Note"}, []*cellvalue.Field{
		{ID: "f1", Name: "Name"},
		{ID: "f2", Name: "Age "},
	})
	assert.Len(t, columns, 2)
	assert.Equal(t, "f1", columns[" Name "].ID)
	assert.Equal(t, []string{" Name ", "Age"}, result.Fields)
	assert.Equal(t, []string{"Note"}, result.Unmatched)
}

func TestTranslate_ErrorsFollowHeaderOrder(t *testing.T) {
	fields := []*cellvalue.Field{
		{ID: "fA", Name: "Avatar", Type: cellvalue.FieldTypeAttachment},
		{ID: "fB", Name: "Badge", Type: cellvalue.FieldTypeAttachment},
		{ID: "fC", Name: "Cover", Type: cellvalue.FieldTypeAttachment},
	}
	svc := newTestService(t, &fakeTables{fields: fields}, nil, nil)
	src := writeCSV(t, "Cover,Avatar,Badge\n"+
		"https://files.invalid/c.png,https://files.invalid/a.png,https://files.invalid/b.png\n")

	for i := 0; i < 10; i++ {
		result, err := svc.Translate(context.Background(), parser.FileTypeCSV, src, Request{
			AppToken: "app",
			TableID:  "tblDest",
		})
		require.NoError(t, err)
		require.Len(t, result.Errors, 3)

		var order []string
		for _, e := range result.Errors {
			order = append(order, e.Field)
		}
		assert.Equal(t, []string{"Cover", "Avatar", "Badge"}, order)
	}
}
