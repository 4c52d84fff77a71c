package cellvalue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// coordinatesRegex matches "longitude,latitude"
var coordinatesRegex = regexp.MustCompile(`^\s*-?\d+(\.\d+)?\s*,\s*-?\d+(\.\d+)?\s*$`)

// locationTranslator compares locations by their coordinates
type locationTranslator struct{}

func (locationTranslator) Types() []FieldType { return []FieldType{FieldTypeLocation} }

func (locationTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	switch val := first(v).(type) {
	case nil:
		return nil, nil
	case map[string]any:
		location, _ := val["location"].(string)
		if location == "" {
			return nil, nil
		}
		return location, nil
	}
	return nil, fmt.Errorf("unexpected location value %T", v)
}

func (locationTranslator) ParseData(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	text, ok := v.(string)
	if !ok || !coordinatesRegex.MatchString(text) {
		return nil, nil
	}
	return strings.Join(strings.Fields(text), ""), nil
}

func (locationTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return v, nil
}
