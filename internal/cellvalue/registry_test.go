package cellvalue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/sheet-import/internal/parser"
)

func field(typ FieldType) *Field {
	return &Field{ID: "fld", Name: "col", Type: typ}
}

func TestRegistry_UnsupportedType(t *testing.T) {
	r := DefaultRegistry()
	s := NewSession("s", nil, nil)

	_, err := r.ParseDataValue(s, field(FieldType(999)), "x")
	assert.ErrorIs(t, err, ErrUnsupportedFieldType)

	_, err = r.ParseBaseValue(s, FieldType(999), nil, "x")
	assert.ErrorIs(t, err, ErrUnsupportedFieldType)

	assert.True(t, r.Supports(FieldTypeText))
	assert.False(t, r.Supports(FieldType(999)))
}

func TestRegistry_WrapsTranslatorErrors(t *testing.T) {
	r := DefaultRegistry()
	f := field(FieldTypeNumber)

	_, err := r.ParseBaseValue(nil, FieldTypeNumber, f, true)
	require.Error(t, err)

	var pve *ParseValueError
	require.True(t, errors.As(err, &pve))
	assert.Equal(t, f, pve.Field)
	assert.Equal(t, true, pve.Value)
}

func TestRegistry_ReadOnlyTypes(t *testing.T) {
	r := DefaultRegistry()
	types := []FieldType{
		FieldTypeFormula, FieldTypeLookup, FieldTypeAutoNumber,
		FieldTypeCreatedTime, FieldTypeModifiedTime,
		FieldTypeCreatedUser, FieldTypeModifiedUser,
	}

	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			_, err := r.ToWriteValue(context.Background(), nil, field(typ), "v")
			assert.ErrorIs(t, err, ErrNotWritable)

			var pve *ParseValueError
			assert.True(t, errors.As(err, &pve))
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"123.45%", 1.2345, true},
		{"1.23", 1.23, true},
		{"-1.23%", -0.0123, true},
		{"5%", 0.05, true},
		{"1,234", 1234, true},
		{"1,234.56", 1234.56, true},
		{"1.23g", 1.23, true},
		{" - 12 ", -12, true},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumberTranslator(t *testing.T) {
	r := DefaultRegistry()
	f := field(FieldTypeNumber)

	v, err := r.ParseDataValue(nil, f, "123.45%")
	require.NoError(t, err)
	assert.Equal(t, 1.2345, v)

	v, err = r.ParseDataValue(nil, f, int64(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = r.ParseDataValue(nil, f, true)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = r.ParseBaseValue(nil, FieldTypeNumber, f, []any{2.5})
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
}

func TestCheckboxTranslator(t *testing.T) {
	r := DefaultRegistry()
	f := field(FieldTypeCheckbox)

	tests := []struct {
		in   any
		want any
	}{
		{"是", true},
		{"TRUE", true},
		{int64(1), true},
		{"否", false},
		{"0", false},
		{nil, false},
		{true, true},
		{"maybe", nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			v, err := r.ParseDataValue(nil, f, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	custom := field(FieldTypeCheckbox)
	custom.Property.BoolValues = &BoolValues{True: []string{"yes"}, False: []string{"no"}}
	v, err := r.ParseDataValue(nil, custom, "yes")
	require.NoError(t, err)
	assert.Equal(t, true, v)
	v, err = r.ParseDataValue(nil, custom, "是")
	require.NoError(t, err)
	assert.Nil(t, v)

	w, err := r.ToWriteValue(context.Background(), nil, f, true)
	require.NoError(t, err)
	assert.Equal(t, true, w)
}

func TestMultiSelectTranslator(t *testing.T) {
	r := DefaultRegistry()
	f := field(FieldTypeMultiSelect)

	v, err := r.ParseDataValue(nil, f, "b, a,b,,c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, v)

	f.Property.Separator = ";"
	v, err = r.ParseDataValue(nil, f, "x;y")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, v)

	many := make([]string, 1500)
	for i := range many {
		many[i] = fmt.Sprintf("opt%04d", i)
	}
	v, err = r.ParseDataValue(nil, f, strings.Join(many, ";"))
	require.NoError(t, err)
	assert.Len(t, v, OptionsInCellLimit)

	w, err := r.ToWriteValue(context.Background(), nil, f, []string{"b", "a", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, w)

	base, err := r.ParseBaseValue(nil, FieldTypeMultiSelect, f, []any{"z", "y", "z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, base)
}

func TestPhoneTranslator(t *testing.T) {
	r := DefaultRegistry()
	f := field(FieldTypePhone)

	v, err := r.ParseDataValue(nil, f, "+8613800138000 ext")
	require.NoError(t, err)
	assert.Equal(t, "+8613800138000", v)

	v, err = r.ParseDataValue(nil, f, int64(13800138000))
	require.NoError(t, err)
	assert.Equal(t, "13800138000", v)

	v, err = r.ParseDataValue(nil, f, strings.Repeat("1", 100))
	require.NoError(t, err)
	assert.Len(t, v, PhoneLengthLimit)

	v, err = r.ParseDataValue(nil, f, "call me")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDateTimeTranslator(t *testing.T) {
	r := DefaultRegistry()
	f := field(FieldTypeDateTime)
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli()

	v, err := r.ParseDataValue(nil, f, "2024/01/02")
	require.NoError(t, err)
	assert.Equal(t, want, v)

	v, err = r.ParseDataValue(nil, f, want)
	require.NoError(t, err)
	assert.Equal(t, want, v)

	f.Property.DateFormats = []string{"02.01.2006"}
	v, err = r.ParseDataValue(nil, f, "02.01.2024")
	require.NoError(t, err)
	assert.Equal(t, want, v)

	v, err = r.ParseDataValue(nil, f, "not a date")
	require.NoError(t, err)
	assert.Nil(t, v)

	base, err := r.ParseBaseValue(nil, FieldTypeDateTime, f, float64(want))
	require.NoError(t, err)
	assert.Equal(t, want, base)
}

func TestTextAndURLTranslators(t *testing.T) {
	r := DefaultRegistry()

	text, err := r.ParseBaseValue(nil, FieldTypeText, field(FieldTypeText), []any{
		map[string]any{"type": "text", "text": "hello "},
		map[string]any{"type": "url", "text": "world", "link": "https://w"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	email := field(FieldTypeText)
	email.UIType = UITypeEmail
	text, err = r.ParseBaseValue(nil, FieldTypeText, email, []any{map[string]any{"text": "a@b.c"}})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", text)

	text, err = r.ParseDataValue(nil, field(FieldTypeText), parser.NewURLValue("https://x", "X"))
	require.NoError(t, err)
	assert.Equal(t, "X", text)

	u := field(FieldTypeURL)
	link, err := r.ParseDataValue(nil, u, parser.NewURLValue("https://x", "X"))
	require.NoError(t, err)
	assert.Equal(t, Link{Text: "X", Link: "https://x"}, link)

	w, err := r.ToWriteValue(context.Background(), nil, u, link)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "X", "link": "https://x"}, w)

	base, err := r.ParseBaseValue(nil, FieldTypeURL, u, map[string]any{"text": "X", "link": "https://x"})
	require.NoError(t, err)
	assert.Equal(t, link, base)
}

func TestUserTranslator(t *testing.T) {
	r := DefaultRegistry()
	f := field(FieldTypeUser)

	v, err := r.ParseDataValue(nil, f, "ou_2,ou_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ou_1", "ou_2"}, v)

	w, err := r.ToWriteValue(context.Background(), nil, f, v)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": "ou_1"}, {"id": "ou_2"}}, w)

	base, err := r.ParseBaseValue(nil, FieldTypeUser, f, []any{
		map[string]any{"id": "ou_2", "name": "B"},
		map[string]any{"id": "ou_1", "name": "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, v, base)
}

func TestFormulaTranslator(t *testing.T) {
	r := DefaultRegistry()
	f := field(FieldTypeFormula)

	v, err := r.ParseBaseValue(nil, FieldTypeFormula, f, map[string]any{
		"type":  float64(FieldTypeNumber),
		"value": []any{3.5},
	})
	require.NoError(t, err)
	assert.Equal(t, "3.5", v)

	v, err = r.ParseDataValue(nil, f, int64(7))
	require.NoError(t, err)
	assert.Equal(t, "7", v)
}

func TestLocationTranslator(t *testing.T) {
	r := DefaultRegistry()
	f := field(FieldTypeLocation)

	v, err := r.ParseDataValue(nil, f, "116.397, 39.909")
	require.NoError(t, err)
	assert.Equal(t, "116.397,39.909", v)

	v, err = r.ParseDataValue(nil, f, "Beijing")
	require.NoError(t, err)
	assert.Nil(t, v)

	base, err := r.ParseBaseValue(nil, FieldTypeLocation, f, map[string]any{"location": "116.397,39.909"})
	require.NoError(t, err)
	assert.Equal(t, "116.397,39.909", base)
}

// Write values of every writable type must have the store's shape
func TestWriteRoundTrip(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()

	tests := []struct {
		typ  FieldType
		raw  any
		want any
	}{
		{FieldTypeText, "hi", "hi"},
		{FieldTypeNumber, "50%", 0.5},
		{FieldTypeSingleSelect, int64(3), "3"},
		{FieldTypeMultiSelect, "b,a,a", []string{"a", "b"}},
		{FieldTypeDateTime, "2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli()},
		{FieldTypeCheckbox, "是", true},
		{FieldTypePhone, "+1 555", "+1"},
		{FieldTypeGroupChat, "oc_1", []map[string]any{{"id": "oc_1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			f := field(tt.typ)
			parsed, err := r.ParseDataValue(nil, f, tt.raw)
			require.NoError(t, err)
			w, err := r.ToWriteValue(ctx, nil, f, parsed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, w)
		})
	}
}
