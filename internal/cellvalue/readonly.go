package cellvalue

import (
	"context"
	"fmt"
)

func notWritable(f *Field) error {
	return fmt.Errorf("%w: %s is computed by the store", ErrNotWritable, f)
}

// formulaTranslator renders formula and lookup results as text
type formulaTranslator struct{}

func (formulaTranslator) Types() []FieldType {
	return []FieldType{FieldTypeFormula, FieldTypeLookup}
}

func (formulaTranslator) ParseBase(r *Registry, s *Session, _ *Field, v any) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return nil, nil
	}
	typ, ok := numberOf(obj["type"])
	if !ok {
		return nil, fmt.Errorf("formula result has no type")
	}
	inner, err := r.ParseBaseValue(s, FieldType(typ), nil, obj["value"])
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, nil
	}
	if text, ok := textOf(inner); ok {
		return text, nil
	}
	return fmt.Sprint(inner), nil
}

func (formulaTranslator) ParseData(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	text, ok := textOf(v)
	if !ok || text == "" {
		return nil, nil
	}
	return text, nil
}

func (formulaTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, f *Field, _ any) (any, error) {
	return nil, notWritable(f)
}

// autoTimeTranslator handles created and modified timestamps
type autoTimeTranslator struct{}

func (autoTimeTranslator) Types() []FieldType {
	return []FieldType{FieldTypeCreatedTime, FieldTypeModifiedTime}
}

func (autoTimeTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return millisOf(v)
}

func (autoTimeTranslator) ParseData(_ *Registry, _ *Session, f *Field, v any) (any, error) {
	return parseDateData(f, v), nil
}

func (autoTimeTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, f *Field, _ any) (any, error) {
	return nil, notWritable(f)
}

// autoUserTranslator handles created-by and modified-by users
type autoUserTranslator struct{}

func (autoUserTranslator) Types() []FieldType {
	return []FieldType{FieldTypeCreatedUser, FieldTypeModifiedUser}
}

func (autoUserTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	ids := idsOf(v)
	if len(ids) == 0 {
		return nil, nil
	}
	return uniqueSorted(ids, UsersInCellLimit), nil
}

func (autoUserTranslator) ParseData(_ *Registry, _ *Session, f *Field, v any) (any, error) {
	return parseIDList(f, v, UsersInCellLimit), nil
}

func (autoUserTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, f *Field, _ any) (any, error) {
	return nil, notWritable(f)
}

type autoNumberTranslator struct{}

func (autoNumberTranslator) Types() []FieldType { return []FieldType{FieldTypeAutoNumber} }

func (autoNumberTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	text, ok := textOf(first(v))
	if !ok {
		return nil, fmt.Errorf("unexpected auto number value %T", v)
	}
	return text, nil
}

func (autoNumberTranslator) ParseData(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	text, ok := textOf(v)
	if !ok || text == "" {
		return nil, nil
	}
	return text, nil
}

func (autoNumberTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, f *Field, _ any) (any, error) {
	return nil, notWritable(f)
}
