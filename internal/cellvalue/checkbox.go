package cellvalue

import (
	"context"
	"fmt"
	"slices"
)

type checkboxTranslator struct{}

func (checkboxTranslator) Types() []FieldType { return []FieldType{FieldTypeCheckbox} }

func (checkboxTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return false, nil
	case bool:
		return val, nil
	}
	return nil, fmt.Errorf("unexpected checkbox value %T", v)
}

func (checkboxTranslator) ParseData(_ *Registry, _ *Session, f *Field, v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}

	literals := DefaultBoolValues
	if f != nil && f.Property.BoolValues != nil {
		literals = *f.Property.BoolValues
	}

	text := ""
	if v != nil {
		var ok bool
		if text, ok = textOf(v); !ok {
			return nil, nil
		}
	}
	switch {
	case slices.Contains(literals.True, text):
		return true, nil
	case slices.Contains(literals.False, text):
		return false, nil
	}
	return nil, nil
}

func (checkboxTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return v, nil
}
