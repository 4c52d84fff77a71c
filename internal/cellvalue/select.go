package cellvalue

import (
	"context"
	"fmt"
)

type singleSelectTranslator struct{}

func (singleSelectTranslator) Types() []FieldType { return []FieldType{FieldTypeSingleSelect} }

func (singleSelectTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	switch val := first(v).(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	}
	return nil, fmt.Errorf("unexpected option value %T", v)
}

func (singleSelectTranslator) ParseData(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	text, ok := textOf(v)
	if !ok || text == "" {
		return nil, nil
	}
	return text, nil
}

func (singleSelectTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return v, nil
}

// multiSelectTranslator normalizes options to a sorted set
type multiSelectTranslator struct{}

func (multiSelectTranslator) Types() []FieldType { return []FieldType{FieldTypeMultiSelect} }

func (multiSelectTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []any:
		options := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				options = append(options, s)
			}
		}
		return uniqueSorted(options, OptionsInCellLimit), nil
	}
	return nil, fmt.Errorf("unexpected options value %T", v)
}

func (multiSelectTranslator) ParseData(_ *Registry, _ *Session, f *Field, v any) (any, error) {
	text, ok := textOf(v)
	if !ok {
		return nil, nil
	}
	if _, isText := v.(string); !isText {
		return []string{text}, nil
	}
	options := uniqueSorted(splitList(text, f.separator()), OptionsInCellLimit)
	if len(options) == 0 {
		return nil, nil
	}
	return options, nil
}

func (multiSelectTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	options, ok := v.([]string)
	if !ok || len(options) == 0 {
		return nil, nil
	}
	return uniqueSorted(options, OptionsInCellLimit), nil
}
