package cellvalue

import (
	"context"
	"fmt"
	"strings"
)

// textTranslator handles rich text stored as a list of segments
type textTranslator struct{}

func (textTranslator) Types() []FieldType { return []FieldType{FieldTypeText} }

func (textTranslator) ParseBase(_ *Registry, _ *Session, f *Field, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	case []any:
		if len(val) == 0 {
			return nil, nil
		}
		if f != nil && f.UIType == UITypeEmail {
			seg, _ := val[0].(map[string]any)
			text, _ := seg["text"].(string)
			return text, nil
		}
		var b strings.Builder
		for _, item := range val {
			if seg, ok := item.(map[string]any); ok {
				text, _ := seg["text"].(string)
				b.WriteString(text)
			}
		}
		return b.String(), nil
	}
	return nil, fmt.Errorf("unexpected text value %T", v)
}

func (textTranslator) ParseData(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	text, ok := textOf(v)
	if !ok || text == "" {
		return nil, nil
	}
	return truncateRunes(text, TextLengthLimit), nil
}

func (textTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return v, nil
}
