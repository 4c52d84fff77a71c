// Package cellvalue converts cell values between three shapes: values read
// from the remote table store ("base" values), values read from an imported
// file ("data" values) and values ready to be written back ("write" values).
package cellvalue

import "fmt"

// FieldType is the remote store's column type
type FieldType int

const (
	FieldTypeText         FieldType = 1
	FieldTypeNumber       FieldType = 2
	FieldTypeSingleSelect FieldType = 3
	FieldTypeMultiSelect  FieldType = 4
	FieldTypeDateTime     FieldType = 5
	FieldTypeCheckbox     FieldType = 7
	FieldTypeUser         FieldType = 11
	FieldTypePhone        FieldType = 13
	FieldTypeURL          FieldType = 15
	FieldTypeAttachment   FieldType = 17
	FieldTypeSingleLink   FieldType = 18
	FieldTypeLookup       FieldType = 19
	FieldTypeFormula      FieldType = 20
	FieldTypeDuplexLink   FieldType = 21
	FieldTypeLocation     FieldType = 22
	FieldTypeGroupChat    FieldType = 23
	FieldTypeCreatedTime  FieldType = 1001
	FieldTypeModifiedTime FieldType = 1002
	FieldTypeCreatedUser  FieldType = 1003
	FieldTypeModifiedUser FieldType = 1004
	FieldTypeAutoNumber   FieldType = 1005
)

var fieldTypeNames = map[FieldType]string{
	FieldTypeText:         "Text",
	FieldTypeNumber:       "Number",
	FieldTypeSingleSelect: "SingleSelect",
	FieldTypeMultiSelect:  "MultiSelect",
	FieldTypeDateTime:     "DateTime",
	FieldTypeCheckbox:     "Checkbox",
	FieldTypeUser:         "User",
	FieldTypePhone:        "Phone",
	FieldTypeURL:          "Url",
	FieldTypeAttachment:   "Attachment",
	FieldTypeSingleLink:   "SingleLink",
	FieldTypeLookup:       "Lookup",
	FieldTypeFormula:      "Formula",
	FieldTypeDuplexLink:   "DuplexLink",
	FieldTypeLocation:     "Location",
	FieldTypeGroupChat:    "GroupChat",
	FieldTypeCreatedTime:  "CreatedTime",
	FieldTypeModifiedTime: "ModifiedTime",
	FieldTypeCreatedUser:  "CreatedUser",
	FieldTypeModifiedUser: "ModifiedUser",
	FieldTypeAutoNumber:   "AutoNumber",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// UIType refines how a Text field is displayed
const UITypeEmail = "Email"

// Separator used by multi value fields when none is configured
const DefaultSeparator = ","

// Cell limits of the remote store
const (
	OptionsInCellLimit     = 1000
	UsersInCellLimit       = 1000
	LinksInCellLimit       = 500
	AttachmentsInCellLimit = 100
	PhoneLengthLimit       = 64
	TextLengthLimit        = 100000
)

// BoolValues lists the literals a checkbox column accepts
type BoolValues struct {
	True  []string `json:"true"`
	False []string `json:"false"`
}

// DefaultBoolValues recognizes English and Chinese yes/no spellings
var DefaultBoolValues = BoolValues{
	True:  []string{"是", "True", "true", "TRUE", "1", "☑️"},
	False: []string{"否", "False", "false", "FALSE", "0", ""},
}

// LinkConfig points a link column at its peer table
type LinkConfig struct {
	TableID      string `json:"table_id"`
	PrimaryField string `json:"primary_field"` // field id matched against imported values
}

// Property is the per-column translation config
type Property struct {
	Separator   string      `json:"separator,omitempty"`
	DateFormats []string    `json:"date_formats,omitempty"` // Go time layouts
	BoolValues  *BoolValues `json:"bool_values,omitempty"`
	Link        *LinkConfig `json:"link,omitempty"`
}

// Field describes one destination column
type Field struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	UIType   string    `json:"ui_type,omitempty"`
	Property Property  `json:"property"`
}

func (f *Field) String() string {
	if f == nil {
		return "<nil field>"
	}
	return fmt.Sprintf("%s(%s, %s)", f.Name, f.ID, f.Type)
}

func (f *Field) separator() string {
	if f == nil || f.Property.Separator == "" {
		return DefaultSeparator
	}
	return f.Property.Separator
}
