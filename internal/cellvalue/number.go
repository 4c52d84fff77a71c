package cellvalue

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var numberRegex = regexp.MustCompile(`-?\d+\.?\d*%?`)

// ParseNumber extracts the first number from text. Thousands separators and
// spaces are ignored and a trailing % divides by 100, so "1,234" is 1234
// and "123.45%" is 1.2345.
func ParseNumber(s string) (float64, bool) {
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	m := numberRegex.FindString(s)
	if m == "" {
		return 0, false
	}
	if pct, ok := strings.CutSuffix(m, "%"); ok {
		m = shiftDecimal(pct, 2)
	}
	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}

// shiftDecimal moves the decimal point of a plain decimal string n places
// left so percentages divide exactly
func shiftDecimal(s string, n int) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) <= n {
		intPart = strings.Repeat("0", n-len(intPart)+1) + intPart
	}
	cut := len(intPart) - n
	out := intPart[:cut] + "." + intPart[cut:] + frac
	if neg {
		out = "-" + out
	}
	return out
}

type numberTranslator struct{}

func (numberTranslator) Types() []FieldType { return []FieldType{FieldTypeNumber} }

func (numberTranslator) ParseBase(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	v = first(v)
	if v == nil {
		return nil, nil
	}
	if f, ok := numberOf(v); ok {
		return f, nil
	}
	if s, ok := v.(string); ok {
		if f, ok := ParseNumber(s); ok {
			return f, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected number value %T", v)
}

func (numberTranslator) ParseData(_ *Registry, _ *Session, _ *Field, v any) (any, error) {
	if f, ok := numberOf(v); ok {
		return f, nil
	}
	if text, ok := textOf(v); ok {
		if _, isBool := v.(bool); isBool {
			return nil, nil
		}
		if f, ok := ParseNumber(text); ok {
			return f, nil
		}
	}
	return nil, nil
}

func (numberTranslator) ToWrite(_ context.Context, _ *Registry, _ *Session, _ *Field, v any) (any, error) {
	return v, nil
}
