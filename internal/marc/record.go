package marc

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Namespace is the MARC21 slim XML namespace. Emitted on marshaled
// collections; ignored on input because element matching uses local
// names only.
const Namespace = "http://www.loc.gov/MARC21/slim"

// ControlNumberTag is the MARC controlfield holding the record
// identifier. In UNDL responses this is the digital library record ID.
const ControlNumberTag = "001"

// Collection is a set of MARC records, the top-level element of both
// API response bodies and harvested output files.
type Collection struct {
	XMLName xml.Name `xml:"collection"`

	// Xmlns carries the MARC21 slim namespace declaration on output.
	// Populated by NewCollection; left empty by Unmarshal (the attr is
	// consumed by the xml.Name match instead).
	Xmlns string `xml:"xmlns,attr,omitempty"`

	Records []Record `xml:"record"`
}

// NewCollection wraps records in a Collection carrying the MARC21 slim
// namespace declaration, ready for marshaling.
func NewCollection(records []Record) *Collection {
	return &Collection{Xmlns: Namespace, Records: records}
}

// Record is a single MARC21 bibliographic record.
type Record struct {
	XMLName xml.Name `xml:"record" json:"-"`

	// Leader is the fixed-length record header. UNDL responses include
	// it but nothing in the harvester interprets it.
	Leader string `xml:"leader,omitempty" json:"leader,omitempty"`

	ControlFields []ControlField `xml:"controlfield" json:"controlfields"`
	DataFields    []DataField    `xml:"datafield" json:"datafields"`
}

// ControlField is a MARC controlfield: a tag and a bare value, no
// indicators or subfields. Tags 001-009.
type ControlField struct {
	Tag   string `xml:"tag,attr" json:"tag"`
	Value string `xml:",chardata" json:"value"`
}

// DataField is a MARC datafield: a three-digit tag, two indicator
// characters, and one or more subfields.
type DataField struct {
	Tag       string     `xml:"tag,attr" json:"tag"`
	Ind1      string     `xml:"ind1,attr" json:"ind1,omitempty"`
	Ind2      string     `xml:"ind2,attr" json:"ind2,omitempty"`
	Subfields []Subfield `xml:"subfield" json:"subfields"`
}

// Subfield is a single coded value within a datafield.
type Subfield struct {
	Code  string `xml:"code,attr" json:"code"`
	Value string `xml:",chardata" json:"value"`
}

// ControlNumber returns the value of controlfield 001, the UNDL record
// identifier. Returns the empty string when the record has no 001.
func (r *Record) ControlNumber() string {
	return r.Control(ControlNumberTag)
}

// Control returns the value of the first controlfield with the given
// tag, or the empty string when absent.
func (r *Record) Control(tag string) string {
	for i := range r.ControlFields {
		if r.ControlFields[i].Tag == tag {
			return strings.TrimSpace(r.ControlFields[i].Value)
		}
	}
	return ""
}

// Fields returns all datafields matching the given tag, optionally
// filtered by first indicator. An empty ind1 matches any indicator.
// MARC tags repeat freely (e.g. one 650 per subject heading), so the
// result is a slice even for tags that are usually singular.
func (r *Record) Fields(tag, ind1 string) []DataField {
	var matched []DataField
	for i := range r.DataFields {
		if r.DataFields[i].Tag != tag {
			continue
		}
		if ind1 != "" && r.DataFields[i].Ind1 != ind1 {
			continue
		}
		matched = append(matched, r.DataFields[i])
	}
	return matched
}

// SubfieldValues returns the text of every subfield with the given code,
// in document order. Subfield codes repeat within a field (e.g. multiple
// $a in a 991 voting field), so the result is a slice.
func (f *DataField) SubfieldValues(code string) []string {
	var values []string
	for i := range f.Subfields {
		if f.Subfields[i].Code == code {
			values = append(values, f.Subfields[i].Value)
		}
	}
	return values
}

// ParseCollection decodes a MARC XML collection from r. It accepts both
// namespaced and namespace-free documents.
func ParseCollection(r io.Reader) (*Collection, error) {
	var collection Collection
	if err := xml.NewDecoder(r).Decode(&collection); err != nil {
		return nil, fmt.Errorf("decoding MARC collection: %w", err)
	}
	return &collection, nil
}

// WriteCollection encodes records as an indented MARC XML collection,
// prefixed with the standard XML declaration.
func WriteCollection(w io.Writer, records []Record) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("writing XML header: %w", err)
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(NewCollection(records)); err != nil {
		return fmt.Errorf("encoding MARC collection: %w", err)
	}
	// Encoder buffers internally; Close flushes the trailing newline state.
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("flushing MARC collection: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
