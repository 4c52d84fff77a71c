package cellvalue

import (
	"context"
	"fmt"

	"github.com/garyjia/sheet-import/internal/parser"
)

// Link is the normalized value of a Url field
type Link struct {
	Text string `json:"text"`
	Link string `json:"link"`
}

type urlTranslator struct{}

func (urlTranslator) Types() []FieldType { return []FieldType{FieldTypeURL} }

func (urlTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	switch val := first(v).(type) {
	case nil:
		return nil, nil
	case map[string]any:
		link, _ := val["link"].(string)
		text, _ := val["text"].(string)
		return Link{Text: text, Link: link}, nil
	}
	return nil, fmt.Errorf("unexpected url value %T", v)
}

func (urlTranslator) ParseData(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	switch val := v.(type) {
	case nil, []any:
		return nil, nil
	case parser.URLValue:
		return Link{Text: val.Text, Link: val.URL}, nil
	case map[string]any:
		link, _ := val["url"].(string)
		text, _ := val["text"].(string)
		return Link{Text: text, Link: link}, nil
	}
	text, ok := textOf(v)
	if !ok || text == "" {
		return nil, nil
	}
	return Link{Text: text, Link: text}, nil
}

func (urlTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	link, ok := v.(Link)
	if !ok {
		return nil, nil
	}
	return map[string]any{"text": link.Text, "link": link.Link}, nil
}
