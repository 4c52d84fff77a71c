package cellvalue

import (
	"context"
	"fmt"
)

func parseIDList(f *Field, v any, limit int) any {
	text, ok := textOf(v)
	if !ok {
		return nil
	}
	if _, isText := v.(string); !isText {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	ids := uniqueSorted(splitList(text, f.separator()), limit)
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func writeIDList(v any) any {
	ids, ok := v.([]string)
	if !ok || len(ids) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"id": id})
	}
	return out
}

// userTranslator normalizes people to sorted user ids
type userTranslator struct{}

func (userTranslator) Types() []FieldType { return []FieldType{FieldTypeUser} }

func (userTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.([]any); !ok {
		return nil, fmt.Errorf("unexpected user value %T", v)
	}
	return uniqueSorted(idsOf(v), UsersInCellLimit), nil
}

func (userTranslator) ParseData(_ *Registry, _ *Session, f *Field, v any) (any, error) {
	return parseIDList(f, v, UsersInCellLimit), nil
}

func (userTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return writeIDList(v), nil
}

// groupChatTranslator normalizes chats to sorted chat ids
type groupChatTranslator struct{}

func (groupChatTranslator) Types() []FieldType { return []FieldType{FieldTypeGroupChat} }

func (groupChatTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.([]any); !ok {
		return nil, fmt.Errorf("unexpected group chat value %T", v)
	}
	return uniqueSorted(idsOf(v), UsersInCellLimit), nil
}

func (groupChatTranslator) ParseData(_ *Registry, _ *Session, f *Field, v any) (any, error) {
	return parseIDList(f, v, UsersInCellLimit), nil
}

func (groupChatTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return writeIDList(v), nil
}
