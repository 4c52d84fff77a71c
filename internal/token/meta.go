package token

import "fmt"

// FileType marks a token as addressing a stored file
const FileType = "file"

// FileMeta is the plaintext behind a file token.
// Fields stay in alphabetical JSON-key order.
type FileMeta struct {
	BaseID      string `json:"base_id"`
	CreatedTime int64  `json:"created_time"`
	Filename    string `json:"filename"`
	TenantKey   string `json:"tenant_key"`
	Type        string `json:"type"`
	UserID      string `json:"user_id"`
	UUID        string `json:"uuid"`
}

// UserMeta is the plaintext behind a user session token.
type UserMeta struct {
	BaseID    string `json:"base_id"`
	Product   string `json:"product"`
	TenantKey string `json:"tenant_key"`
	UserID    string `json:"user_id"`
}

// EncodeFile issues a file token
func (c *Codec) EncodeFile(meta FileMeta) (string, error) {
	if meta.Type == "" {
		meta.Type = FileType
	}
	return c.Encode(meta)
}

// DecodeFile resolves a file token
func (c *Codec) DecodeFile(token string) (*FileMeta, error) {
	var meta FileMeta
	if err := c.Decode(token, &meta); err != nil {
		return nil, err
	}
	if meta.Type != FileType || meta.UUID == "" {
		return nil, fmt.Errorf("%w: not a file token", ErrDecode)
	}
	return &meta, nil
}

// EncodeUser issues a user session token
func (c *Codec) EncodeUser(meta UserMeta) (string, error) {
	return c.Encode(meta)
}

// DecodeUser resolves a user session token
func (c *Codec) DecodeUser(token string) (*UserMeta, error) {
	var meta UserMeta
	if err := c.Decode(token, &meta); err != nil {
		return nil, err
	}
	if meta.TenantKey == "" || meta.UserID == "" {
		return nil, fmt.Errorf("%w: incomplete user token", ErrDecode)
	}
	return &meta, nil
}
