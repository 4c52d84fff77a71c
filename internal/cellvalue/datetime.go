package cellvalue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultDateFormats are tried when a column configures none
var DefaultDateFormats = []string{
	"2006/01/02",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02 15:04",
	time.RFC3339,
}

// ParseDateTime parses text with the first matching layout into epoch ms (UTC)
func ParseDateTime(s string, layouts []string) (int64, bool) {
	s = strings.TrimSpace(s)
	if len(layouts) == 0 {
		layouts = DefaultDateFormats
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func millisOf(v any) (any, error) {
	v = first(v)
	if v == nil {
		return nil, nil
	}
	if f, ok := numberOf(v); ok {
		return int64(f), nil
	}
	return nil, fmt.Errorf("unexpected timestamp value %T", v)
}

func parseDateData(f *Field, v any) any {
	if _, isBool := v.(bool); isBool {
		return nil
	}
	if n, ok := numberOf(v); ok {
		return int64(n)
	}
	text, ok := textOf(v)
	if !ok {
		return nil
	}
	var layouts []string
	if f != nil {
		layouts = f.Property.DateFormats
	}
	if ms, ok := ParseDateTime(text, layouts); ok {
		return ms
	}
	return nil
}

type dateTimeTranslator struct{}

func (dateTimeTranslator) Types() []FieldType { return []FieldType{FieldTypeDateTime} }

func (dateTimeTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return millisOf(v)
}

func (dateTimeTranslator) ParseData(_ *Registry, _ *Session, f *Field, v any) (any, error) {
	return parseDateData(f, v), nil
}

func (dateTimeTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return v, nil
}
