package export

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dhl-metadata/unlibmd/internal/marc"
	"github.com/dhl-metadata/unlibmd/internal/model"
)

// DefaultSeparator joins multiple values of one column in CSV/TSV
// output. "|" keeps the values splittable downstream, unlike a comma,
// which collides with CSV quoting.
const DefaultSeparator = "|"

// TransformDHL names the per-field transform that reduces 035 values to
// the bare Dag Hammarskjöld Library identifier: the first value with a
// "(DHL)" prefix, prefix stripped, whitespace trimmed.
const TransformDHL = "dhl_id"

// FieldRule is one mapping entry: a MARC extraction spec plus an
// optional rendering transform.
type FieldRule struct {
	model.FieldSpec `yaml:",inline"`

	// Transform names an optional per-field transform. Supported:
	// "dhl_id". Empty means plain rendering.
	Transform string `yaml:"transform,omitempty"`
}

// LinkRule declares a computed column whose value is a URL template
// concatenated with another column's rendered value.
type LinkRule struct {
	// Name is the output column name.
	Name string `yaml:"name"`

	// Template is the URL prefix, e.g.
	// "https://digitallibrary.un.org/record/".
	Template string `yaml:"template"`

	// Source is the column supplying the suffix. Empty means the
	// record identifier column (undl_id).
	Source string `yaml:"source,omitempty"`
}

// Mapping is a full export definition: extraction rules, computed link
// columns, and rendering options.
type Mapping struct {
	// Fields lists the extraction rules. Column order in the output
	// follows this order, after the leading undl_id column.
	Fields []FieldRule `yaml:"fields"`

	// Links lists computed link columns, appended after the field
	// columns.
	Links []LinkRule `yaml:"links,omitempty"`

	// Separator joins multiple values within one column. Empty means
	// DefaultSeparator.
	Separator string `yaml:"separator,omitempty"`
}

// LoadMapping reads and validates a mapping YAML file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidQuery,
			fmt.Sprintf("reading field mapping %s", path), err)
	}

	var mapping Mapping
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidQuery,
			fmt.Sprintf("parsing field mapping %s", path), err)
	}

	if err := mapping.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidQuery,
			fmt.Sprintf("invalid field mapping %s", path), err)
	}
	return &mapping, nil
}

// Validate checks the extraction specs, transform names, and column
// name uniqueness across fields and links.
func (m *Mapping) Validate() error {
	if len(m.Fields) == 0 {
		return fmt.Errorf("mapping declares no fields")
	}

	specs := make([]model.FieldSpec, len(m.Fields))
	for i := range m.Fields {
		specs[i] = m.Fields[i].FieldSpec
	}
	if err := model.ValidateFieldSpecs(specs); err != nil {
		return err
	}

	names := make(map[string]bool, len(m.Fields)+len(m.Links))
	for i := range m.Fields {
		switch m.Fields[i].Transform {
		case "", TransformDHL:
		default:
			return fmt.Errorf("field %q: unknown transform %q", m.Fields[i].Name, m.Fields[i].Transform)
		}
		names[m.Fields[i].Name] = true
	}

	for i := range m.Links {
		link := &m.Links[i]
		if link.Name == "" {
			return fmt.Errorf("link column missing a name")
		}
		if link.Name == model.ControlNumberColumn || names[link.Name] {
			return fmt.Errorf("link column %q collides with another column", link.Name)
		}
		if link.Template == "" {
			return fmt.Errorf("link column %q missing a template", link.Name)
		}
		if link.Source != "" && link.Source != model.ControlNumberColumn && !names[link.Source] {
			return fmt.Errorf("link column %q references unknown column %q", link.Name, link.Source)
		}
		names[link.Name] = true
	}
	return nil
}

// Specs returns the bare extraction specs for marc.Extract.
func (m *Mapping) Specs() []model.FieldSpec {
	specs := make([]model.FieldSpec, len(m.Fields))
	for i := range m.Fields {
		specs[i] = m.Fields[i].FieldSpec
	}
	return specs
}

// Columns returns the output header: undl_id first, then the field
// columns in mapping order, then the link columns.
func (m *Mapping) Columns() []string {
	columns := make([]string, 0, 1+len(m.Fields)+len(m.Links))
	columns = append(columns, model.ControlNumberColumn)
	for i := range m.Fields {
		columns = append(columns, m.Fields[i].Name)
	}
	for i := range m.Links {
		columns = append(columns, m.Links[i].Name)
	}
	return columns
}

// separator returns the configured multi-value separator.
func (m *Mapping) separator() string {
	if m.Separator == "" {
		return DefaultSeparator
	}
	return m.Separator
}

// Row renders one record's extraction results into output cells aligned
// with Columns().
func (m *Mapping) Row(values marc.RecordValues) []string {
	row := make([]string, 0, 1+len(m.Fields)+len(m.Links))
	row = append(row, values.ControlNumber)

	rendered := make(map[string]string, len(m.Fields))
	for i := range m.Fields {
		rule := &m.Fields[i]
		cell := m.renderField(rule, values.Values[rule.Name])
		rendered[rule.Name] = cell
		row = append(row, cell)
	}

	for i := range m.Links {
		link := &m.Links[i]
		source := values.ControlNumber
		if link.Source != "" && link.Source != model.ControlNumberColumn {
			source = rendered[link.Source]
		}
		row = append(row, Link(source, link.Template))
	}
	return row
}

// renderField applies the rule's transform and joins multiple values
// with the mapping separator.
func (m *Mapping) renderField(rule *FieldRule, value marc.Value) string {
	flat := value.Flatten()
	if rule.Transform == TransformDHL {
		if id, ok := NormalizeDHL(flat); ok {
			return id
		}
		return ""
	}
	return joinValues(flat, m.separator())
}
