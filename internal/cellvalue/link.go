package cellvalue

import (
	"context"
	"fmt"
)

// linkTranslator resolves imported values to record ids of a peer table by
// matching the configured primary field. Unmatched values become nil.
type linkTranslator struct{}

func (linkTranslator) Types() []FieldType {
	return []FieldType{FieldTypeSingleLink, FieldTypeDuplexLink}
}

func (linkTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	switch val := first(v).(type) {
	case nil:
		return nil, nil
	case map[string]any:
		raw, _ := val["link_record_ids"].([]any)
		ids := make([]string, 0, len(raw))
		for _, id := range raw {
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
		return uniqueSorted(ids, LinksInCellLimit), nil
	}
	return nil, fmt.Errorf("unexpected link value %T", v)
}

func (linkTranslator) ParseData(r *Registry, s *Session, f *Field, v any) (any, error) {
	cfg := f.Property.Link
	if cfg == nil || cfg.TableID == "" || cfg.PrimaryField == "" || s == nil {
		return nil, nil
	}
	table, ok := s.Table(cfg.TableID)
	if !ok {
		return nil, nil
	}
	primary, ok := table.Field(cfg.PrimaryField)
	if !ok {
		return nil, nil
	}

	key, err := r.ParseDataValue(s, primary, v)
	if err != nil {
		return nil, err
	}
	ids := table.Search(primary.ID, key)
	if len(ids) == 0 {
		return nil, nil
	}
	return uniqueSorted(ids, LinksInCellLimit), nil
}

func (linkTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	ids, ok := v.([]string)
	if !ok || len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}
