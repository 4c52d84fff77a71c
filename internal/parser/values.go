package parser

import (
	"encoding/json"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cell value type markers
const (
	ValueTypeURL  = "url"
	ValueTypeFile = "file"
)

// URLValue is a hyperlinked cell
type URLValue struct {
	URL  string `json:"url"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// NewURLValue builds a hyperlink cell value
func NewURLValue(link, text string) URLValue {
	return URLValue{URL: link, Text: text, Type: ValueTypeURL}
}

// FileValue is an image extracted from a worksheet cell
type FileValue struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Size        int64   `json:"size"`
	MD5         string  `json:"md5"`
	Token       *string `json:"token"`
	ParentToken string  `json:"parent_token"`
	Path        string  `json:"-"`
}

const attachmentsDir = "attachments"

// attachmentPath is where extracted images of a file live
func attachmentPath(dir, name string) string {
	return filepath.Join(dir, attachmentsDir, name)
}

// numberValue narrows integral floats to int64
func numberValue(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

var (
	leadingZeroRegex = regexp.MustCompile(`^-?0\d`)
	monthStampRegex  = regexp.MustCompile(`^\d{4}\.\d{2}$`)
	xlsLinkRegex     = regexp.MustCompile(`(?s)^(.*)\(((?:https?|mailto|ftp):[^()]*)\)$`)
)

// inferString converts text from formats that only expose strings
// into typed cell values
func inferString(s string) any {
	if s == "" {
		return nil
	}

	if m := xlsLinkRegex.FindStringSubmatch(s); m != nil {
		text := m[1]
		if text == "" {
			text = m[2]
		}
		return NewURLValue(m[2], text)
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli()
	}
	if monthStampRegex.MatchString(s) {
		if t, err := time.Parse("2006.01", s); err == nil {
			return t.UnixMilli()
		}
	}

	trimmed := strings.TrimSpace(s)
	if trimmed != s || leadingZeroRegex.MatchString(s) {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return numberValue(f)
	}
	return s
}

// rehydrate restores typed cell values from a decoded JSON document
func rehydrate(v any, dir string) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		switch val["type"] {
		case ValueTypeURL:
			return NewURLValue(stringOf(val["url"]), stringOf(val["text"]))
		case ValueTypeFile:
			fv := FileValue{
				Name:        stringOf(val["name"]),
				Type:        ValueTypeFile,
				MD5:         stringOf(val["md5"]),
				ParentToken: stringOf(val["parent_token"]),
			}
			if n, ok := val["size"].(json.Number); ok {
				fv.Size, _ = n.Int64()
			}
			if tok, ok := val["token"].(string); ok {
				fv.Token = &tok
			}
			if dir != "" {
				fv.Path = attachmentPath(dir, fv.Name)
			}
			return fv
		}
		return val
	default:
		return v
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

// blankRow reports whether every cell is empty
func blankRow(row []any) bool {
	for _, v := range row {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}
