package cellvalue

import (
	"context"
	"fmt"
)

// Translator converts the values of one or more field types.
//
// ParseBase normalizes a value read from the remote store, ParseData
// normalizes a value read from an imported file and ToWrite turns a
// normalized value into the remote store's write shape. Normalized values
// of both parse directions are comparable with each other.
type Translator interface {
	Types() []FieldType
	ParseBase(r *Registry, s *Session, f *Field, v any) (any, error)
	ParseData(r *Registry, s *Session, f *Field, v any) (any, error)
	ToWrite(ctx context.Context, r *Registry, s *Session, f *Field, v any) (any, error)
}

// Registry dispatches translations by field type
type Registry struct {
	translators map[FieldType]Translator
}

// NewRegistry builds a registry; later translators win on type conflicts
func NewRegistry(translators ...Translator) *Registry {
	r := &Registry{translators: make(map[FieldType]Translator)}
	for _, t := range translators {
		r.Register(t)
	}
	return r
}

// DefaultRegistry knows every built in field type
func DefaultRegistry() *Registry {
	return NewRegistry(
		textTranslator{},
		numberTranslator{},
		singleSelectTranslator{},
		multiSelectTranslator{},
		dateTimeTranslator{},
		checkboxTranslator{},
		userTranslator{},
		phoneTranslator{},
		urlTranslator{},
		attachmentTranslator{},
		linkTranslator{},
		formulaTranslator{},
		autoTimeTranslator{},
		autoUserTranslator{},
		autoNumberTranslator{},
		locationTranslator{},
		groupChatTranslator{},
	)
}

// Register adds t for every type it declares
func (r *Registry) Register(t Translator) {
	for _, typ := range t.Types() {
		r.translators[typ] = t
	}
}

// Supports reports whether typ has a translator
func (r *Registry) Supports(typ FieldType) bool {
	_, ok := r.translators[typ]
	return ok
}

func (r *Registry) lookup(typ FieldType, f *Field) (Translator, error) {
	t, ok := r.translators[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s for %s", ErrUnsupportedFieldType, typ, f)
	}
	return t, nil
}

// ParseBaseValue normalizes a remote store value of type typ. f may be nil
// when the value is nested inside another field, e.g. a formula result.
func (r *Registry) ParseBaseValue(s *Session, typ FieldType, f *Field, v any) (any, error) {
	t, err := r.lookup(typ, f)
	if err != nil {
		return nil, err
	}
	out, err := t.ParseBase(r, s, f, v)
	if err != nil {
		return nil, &ParseValueError{Field: f, Value: v, Err: err}
	}
	return out, nil
}

// ParseDataValue normalizes an imported cell for field f
func (r *Registry) ParseDataValue(s *Session, f *Field, v any) (any, error) {
	t, err := r.lookup(f.Type, f)
	if err != nil {
		return nil, err
	}
	out, err := t.ParseData(r, s, f, v)
	if err != nil {
		return nil, &ParseValueError{Field: f, Value: v, Err: err}
	}
	return out, nil
}

// ToWriteValue converts a normalized value into the write shape of field f
func (r *Registry) ToWriteValue(ctx context.Context, s *Session, f *Field, v any) (any, error) {
	t, err := r.lookup(f.Type, f)
	if err != nil {
		return nil, err
	}
	out, err := t.ToWrite(ctx, r, s, f, v)
	if err != nil {
		return nil, &ParseValueError{Field: f, Value: v, Err: err}
	}
	return out, nil
}
