package marc

import (
	"strings"

	"github.com/dhl-metadata/unlibmd/internal/model"
)

// Value is the extraction result of one FieldSpec applied to one record.
// Exactly one of Fields and Texts is populated, depending on whether the
// spec selected whole datafields or a single subfield code. Both are nil
// when the record has no matching field.
type Value struct {
	// Fields holds whole-datafield extractions: one element per matching
	// datafield occurrence, each carrying that field's subfields in
	// document order.
	Fields [][]Subfield

	// Texts holds subfield extractions: the text of every matching
	// subfield across all matching datafields, in document order.
	Texts []string
}

// IsEmpty reports whether the spec matched nothing on the record.
func (v Value) IsEmpty() bool {
	return len(v.Fields) == 0 && len(v.Texts) == 0
}

// Flatten reduces the value to plain strings. Subfield extractions are
// returned as-is; whole-field extractions become one string per field
// occurrence, the field's subfield values joined with spaces.
func (v Value) Flatten() []string {
	if v.Texts != nil {
		return v.Texts
	}
	var out []string
	for _, field := range v.Fields {
		parts := make([]string, 0, len(field))
		for _, sub := range field {
			parts = append(parts, sub.Value)
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

// Pick returns the values of a single subfield code from a whole-field
// extraction, one entry per occurrence across all matched fields. For
// subfield extractions (where the code was already chosen by the spec)
// it returns Texts unchanged.
func (v Value) Pick(code string) []string {
	if v.Texts != nil {
		return v.Texts
	}
	var out []string
	for _, field := range v.Fields {
		for _, sub := range field {
			if sub.Code == code {
				out = append(out, sub.Value)
			}
		}
	}
	return out
}

// Join renders the value as a single string with multiple occurrences
// separated by sep. Empty values render as the empty string.
func (v Value) Join(sep string) string {
	return strings.Join(v.Flatten(), sep)
}

// RecordValues is the full extraction result for one record: the record
// identifier from controlfield 001 plus one Value per spec name.
type RecordValues struct {
	// ControlNumber is the UNDL record ID (controlfield 001). Empty when
	// the record carries no 001, which UNDL records never do in practice.
	ControlNumber string

	// Values maps spec names to their extraction results. Every spec
	// name is present, with an empty Value for specs that matched
	// nothing; export code relies on this to emit aligned columns.
	Values map[string]Value
}

// Extract applies every spec to the record. Specs are assumed valid
// (model.ValidateFieldSpecs has run at the CLI boundary).
func Extract(record *Record, specs []model.FieldSpec) RecordValues {
	result := RecordValues{
		ControlNumber: record.ControlNumber(),
		Values:        make(map[string]Value, len(specs)),
	}

	for i := range specs {
		spec := &specs[i]
		fields := record.Fields(spec.Tag, spec.Ind1)

		var value Value
		if spec.WholeField() {
			for _, field := range fields {
				value.Fields = append(value.Fields, field.Subfields)
			}
		} else {
			for _, field := range fields {
				value.Texts = append(value.Texts, field.SubfieldValues(spec.Code)...)
			}
		}
		result.Values[spec.Name] = value
	}

	return result
}
