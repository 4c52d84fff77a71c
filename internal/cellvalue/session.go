package cellvalue

import (
	"context"
	"io"
	"net/http"
	"sync"
)

// Uploader stores attachment bytes in the remote store and returns its file token
type Uploader interface {
	UploadFile(ctx context.Context, name string, size int64, r io.Reader) (string, error)
}

// Attachment kinds
const (
	AttachmentURL  = "url"
	AttachmentFile = "file"
)

// Attachment is one attachment reference. Path is a URL for url attachments
// and a local path for file attachments. FileToken is set once uploaded.
type Attachment struct {
	Name      string `json:"name,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Type      string `json:"type"`
	Path      string `json:"path"`
	FileToken string `json:"file_token,omitempty"`
}

// Session carries the state of one ingestion run: the attachments seen so
// far (uploaded at most once each) and the peer tables link fields resolve
// against.
type Session struct {
	ID       string
	uploader Uploader
	client   *http.Client

	mu          sync.Mutex
	attachments map[string]*Attachment
	tables      map[string]LinkTable
}

// NewSession creates an empty session. uploader may be nil when nothing
// is written.
func NewSession(id string, uploader Uploader, client *http.Client) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{
		ID:          id,
		uploader:    uploader,
		client:      client,
		attachments: make(map[string]*Attachment),
		tables:      make(map[string]LinkTable),
	}
}

// Refresh forgets cached attachments, e.g. between import batches
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = make(map[string]*Attachment)
}

// AddTable registers a peer table for link resolution
func (s *Session) AddTable(t LinkTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.ID()] = t
}

// Table returns a registered peer table
func (s *Session) Table(id string) (LinkTable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	return t, ok
}

// attachment returns the cached reference for path, creating it from a
// when it is new. A nil session caches nothing.
func (s *Session) attachment(a Attachment) *Attachment {
	if s == nil {
		return &a
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.attachments[a.Path]; ok {
		return cached
	}
	s.attachments[a.Path] = &a
	return &a
}

// Attachments returns how many distinct attachments were seen
func (s *Session) Attachments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attachments)
}
