// Package export turns harvested MARC records into tabular output.
//
// A Mapping, loaded from a YAML file, declares which MARC fields to
// extract, what to call the resulting columns, and how to render
// multi-valued fields. On top of the raw extraction the mapping can
// request per-field transforms (Dag Hammarskjöld Library identifier
// normalization from 035 values) and computed link columns built from a
// URL template plus the record identifier.
//
// Rows stream to a RowWriter (CSV, TSV, or JSON rows) as records arrive
// from the harvester; extraction runs on a small worker pool with the
// output order preserved.
package export
