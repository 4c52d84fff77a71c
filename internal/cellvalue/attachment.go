package cellvalue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/garyjia/sheet-import/internal/parser"
)

// AttachmentSizeLimit is the largest file the remote store accepts
const AttachmentSizeLimit = 20 * 1024 * 1024

// attachmentTranslator normalizes attachments to session cached references
// and uploads each one at most once when writing
type attachmentTranslator struct{}

func (attachmentTranslator) Types() []FieldType { return []FieldType{FieldTypeAttachment} }

func (attachmentTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected attachment value %T", v)
	}

	out := make([]*Attachment, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := &Attachment{Type: AttachmentURL}
		a.Name, _ = obj["name"].(string)
		a.FileToken, _ = obj["file_token"].(string)
		a.Path, _ = obj["url"].(string)
		if size, ok := numberOf(obj["size"]); ok {
			a.Size = int64(size)
		}
		out = append(out, a)
	}
	return out, nil
}

func (attachmentTranslator) ParseData(_ *Registry, s *Session, f *Field, v any) (any, error) {
	var refs []Attachment
	collect := func(item any) {
		switch val := item.(type) {
		case string:
			for _, u := range splitList(val, f.separator()) {
				if isHTTPURL(u) {
					refs = append(refs, Attachment{Type: AttachmentURL, Path: u})
				}
			}
		case parser.URLValue:
			if isHTTPURL(val.URL) {
				refs = append(refs, Attachment{Type: AttachmentURL, Path: val.URL, Name: val.Text})
			}
		case parser.FileValue:
			if val.Path != "" {
				refs = append(refs, Attachment{Type: AttachmentFile, Path: val.Path, Name: val.Name, Size: val.Size})
			}
		case map[string]any:
			if u, ok := val["url"].(string); ok && isHTTPURL(u) {
				refs = append(refs, Attachment{Type: AttachmentURL, Path: u})
			}
		}
	}

	if list, ok := v.([]any); ok {
		for _, item := range list {
			collect(item)
		}
	} else {
		collect(v)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	if len(refs) > AttachmentsInCellLimit {
		refs = refs[:AttachmentsInCellLimit]
	}

	out := make([]*Attachment, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if seen[ref.Path] {
			continue
		}
		seen[ref.Path] = true
		out = append(out, s.attachment(ref))
	}
	return out, nil
}

func (attachmentTranslator) ToWrite(ctx context.Context, _ *Registry, s *Session, _ *Field, v any) (any, error) {
	attachments, ok := v.([]*Attachment)
	if !ok || len(attachments) == 0 {
		return nil, nil
	}

	out := make([]map[string]any, 0, len(attachments))
	for _, a := range attachments {
		token, err := s.upload(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{"file_token": token})
	}
	return out, nil
}

// upload sends a to the remote store unless it already has a token
func (s *Session) upload(ctx context.Context, a *Attachment) (string, error) {
	if s == nil {
		if a.FileToken != "" {
			return a.FileToken, nil
		}
		return "", ErrNoUploader
	}
	s.mu.Lock()
	token := a.FileToken
	s.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if s.uploader == nil {
		return "", ErrNoUploader
	}

	var (
		body io.ReadCloser
		size int64
		name = a.Name
		err  error
	)
	switch a.Type {
	case AttachmentFile:
		body, size, err = openLocal(a.Path)
		if name == "" {
			name = filepath.Base(a.Path)
		}
	default:
		body, size, err = s.download(ctx, a.Path)
		if name == "" {
			name = urlFileName(a.Path)
		}
	}
	if err != nil {
		return "", err
	}
	defer body.Close()

	token, err = s.uploader.UploadFile(ctx, name, size, body)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment %s: %w", name, err)
	}

	s.mu.Lock()
	a.FileToken, a.Size = token, size
	if a.Name == "" {
		a.Name = name
	}
	s.mu.Unlock()
	return token, nil
}

func openLocal(p string) (io.ReadCloser, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open attachment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.Size() > AttachmentSizeLimit {
		f.Close()
		return nil, 0, fmt.Errorf("attachment %s exceeds %d bytes", filepath.Base(p), AttachmentSizeLimit)
	}
	return f, info.Size(), nil
}

// download buffers a remote attachment since uploads need the size up front
func (s *Session) download(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("failed to download attachment: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, AttachmentSizeLimit+1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read attachment: %w", err)
	}
	if len(data) > AttachmentSizeLimit {
		return nil, 0, fmt.Errorf("attachment %s exceeds %d bytes", rawURL, AttachmentSizeLimit)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func urlFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "attachment"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}
