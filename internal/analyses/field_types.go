package analyses

import "strings"

// FieldType identifies how a field's values are meant to be entered and displayed.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeDecimal FieldType = "decimal"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeSelect  FieldType = "select"
	FieldTypeRating  FieldType = "rating"
	FieldTypePrice   FieldType = "price"
	FieldTypeDate    FieldType = "date"
)

// FieldTypeOption pairs a field type with its display label.
type FieldTypeOption struct {
	Type  FieldType `json:"type"`
	Label string    `json:"label"`
}

var allFieldTypes = []FieldTypeOption{
	{Type: FieldTypeText, Label: "Text"},
	{Type: FieldTypeNumber, Label: "Number"},
	{Type: FieldTypeDecimal, Label: "Decimal"},
	{Type: FieldTypeBoolean, Label: "Yes/No"},
	{Type: FieldTypeSelect, Label: "Dropdown"},
	{Type: FieldTypeRating, Label: "Rating (1-5)"},
	{Type: FieldTypePrice, Label: "Price"},
	{Type: FieldTypeDate, Label: "Date"},
}

// TypeSet is the set of field types a service accepts. The zero value accepts nothing;
// use DefaultTypeSet or NewTypeSet.
type TypeSet struct {
	options []FieldTypeOption
}

// DefaultTypeSet recognizes every built-in field type.
func DefaultTypeSet() TypeSet {
	opts := make([]FieldTypeOption, len(allFieldTypes))
	copy(opts, allFieldTypes)
	return TypeSet{options: opts}
}

// NewTypeSet restricts the built-in types to the given names. Unknown names are ignored
// and an empty selection yields the default set.
func NewTypeSet(names []string) TypeSet {
	if len(names) == 0 {
		return DefaultTypeSet()
	}
	wanted := make(map[FieldType]struct{}, len(names))
	for _, n := range names {
		if t := FieldType(strings.ToLower(strings.TrimSpace(n))); t != "" {
			wanted[t] = struct{}{}
		}
	}
	var opts []FieldTypeOption
	for _, opt := range allFieldTypes {
		if _, ok := wanted[opt.Type]; ok {
			opts = append(opts, opt)
		}
	}
	if len(opts) == 0 {
		return DefaultTypeSet()
	}
	return TypeSet{options: opts}
}

// Contains reports whether t is recognized.
func (s TypeSet) Contains(t FieldType) bool {
	for _, opt := range s.options {
		if opt.Type == t {
			return true
		}
	}
	return false
}

// Options lists the recognized types in their canonical order.
func (s TypeSet) Options() []FieldTypeOption {
	out := make([]FieldTypeOption, len(s.options))
	copy(out, s.options)
	return out
}
