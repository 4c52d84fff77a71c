package cellvalue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var phoneRegex = regexp.MustCompile(`^\+?\d*`)

// ParsePhone keeps a leading + and the digits that follow, up to 64 characters
func ParsePhone(s string) string {
	phone := phoneRegex.FindString(strings.TrimSpace(s))
	if len(phone) > PhoneLengthLimit {
		phone = phone[:PhoneLengthLimit]
	}
	return phone
}

type phoneTranslator struct{}

func (phoneTranslator) Types() []FieldType { return []FieldType{FieldTypePhone} }

func (phoneTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	switch val := first(v).(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	}
	return nil, fmt.Errorf("unexpected phone value %T", v)
}

func (phoneTranslator) ParseData(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	if _, isBool := v.(bool); isBool {
		return nil, nil
	}
	text, ok := textOf(v)
	if !ok {
		return nil, nil
	}
	if phone := ParsePhone(text); phone != "" {
		return phone, nil
	}
	return nil, nil
}

func (phoneTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return v, nil
}
