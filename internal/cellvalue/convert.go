package cellvalue

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/garyjia/sheet-import/internal/parser"
)

// first unwraps single element lists the remote store uses for scalars
func first(v any) any {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}

func numberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// textOf renders scalar cell values as text; hyperlinks yield their text
func textOf(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case parser.URLValue:
		return val.Text, true
	case map[string]any:
		if val["type"] == parser.ValueTypeURL {
			text, ok := val["text"].(string)
			return text, ok
		}
		return "", false
	}
	if f, ok := numberOf(v); ok {
		return formatNumber(f), true
	}
	return "", false
}

// splitList splits on sep, trims items and drops empty ones
func splitList(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// uniqueSorted dedupes and sorts, keeping at most limit items
func uniqueSorted(items []string, limit int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// idsOf collects the "id" of every object in a list
func idsOf(v any) []string {
	var items []any
	switch val := v.(type) {
	case []any:
		items = val
	case map[string]any:
		items = []any{val}
	default:
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := obj["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
