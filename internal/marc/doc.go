// Package marc models MARC21 slim bibliographic records as returned by
// the UN Digital Library search API.
//
// The package covers two concerns:
//   - Schema types (Collection, Record, ControlField, DataField, Subfield)
//     with encoding/xml struct tags for decoding API responses and
//     re-encoding harvested collections.
//   - Field extraction: selecting datafields by tag and first indicator,
//     and subfields by code, driven by model.FieldSpec rules. This is the
//     declarative replacement for hand-written XPath queries against
//     MARC XML.
//
// Element matching is namespace-agnostic: struct tags carry bare local
// names, so records parse identically with or without the MARC21/slim
// xmlns declaration.
package marc
