package model

import (
	"fmt"
	"strings"
)

// DefaultPageSize is the number of records requested per search API call
// when the query does not specify one. The UNDL API caps rg at 200.
const DefaultPageSize = 100

// MaxPageSize is the largest rg value the UNDL search API accepts.
const MaxPageSize = 200

// SearchQuery holds the parameters forwarded to the UNDL search API.
// Field names mirror the API's query string keys: Pattern is "p",
// Collection is "c", Sort is "sort", PageSize is "rg".
type SearchQuery struct {
	// Pattern is the free-text search expression. Supports the full
	// Invenio query syntax used by digitallibrary.un.org (field prefixes,
	// boolean operators, quoted phrases).
	Pattern string `json:"pattern,omitempty"`

	// Collection restricts the search to a named UNDL collection,
	// e.g. "Voting Data" or "Resolutions and Decisions".
	Collection string `json:"collection,omitempty"`

	// Sort is the API sort order (e.g. "latest first"). Empty means the
	// API default (relevance).
	Sort string `json:"sort,omitempty"`

	// PageSize is the number of records per API request (the "rg"
	// parameter). Zero means DefaultPageSize.
	PageSize int `json:"pageSize,omitempty"`

	// MaxRecords caps the total number of records harvested across all
	// pages. Zero means no cap: harvest until the cursor is exhausted.
	MaxRecords int `json:"maxRecords,omitempty"`
}

// Validate checks that the query is well formed enough to send to the API.
// An empty query would match the entire digital library, which is never
// what a harvest run intends, so at least a pattern or a collection is
// required.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Pattern) == "" && strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("search query must set a pattern or a collection")
	}
	if q.PageSize < 0 || q.PageSize > MaxPageSize {
		return fmt.Errorf("page size %d out of range (1-%d)", q.PageSize, MaxPageSize)
	}
	if q.MaxRecords < 0 {
		return fmt.Errorf("max records must not be negative, got %d", q.MaxRecords)
	}
	return nil
}

// EffectivePageSize returns PageSize, or DefaultPageSize when unset.
func (q *SearchQuery) EffectivePageSize() int {
	if q.PageSize == 0 {
		return DefaultPageSize
	}
	return q.PageSize
}

// FieldSpec is a single MARC extraction rule: which datafield to read and
// what to call the result. A spec with a subfield code selects subfield
// text; a spec without one selects whole fields as code→value pairs.
type FieldSpec struct {
	// Tag is the three-digit MARC datafield tag, e.g. "245" or "035".
	Tag string `json:"tag" yaml:"tag"`

	// Ind1 optionally restricts matches to datafields with this first
	// indicator value. Empty matches any indicator.
	Ind1 string `json:"ind1,omitempty" yaml:"ind1,omitempty"`

	// Code optionally selects a single subfield code ("a", "b", ...).
	// When empty the whole datafield is extracted, subfield codes and
	// values together, one entry per occurrence.
	Code string `json:"code,omitempty" yaml:"code,omitempty"`

	// Name is the output column name for this rule. Must be unique
	// within a mapping and must not collide with the reserved "undl_id"
	// column, which always carries controlfield 001.
	Name string `json:"name" yaml:"name"`
}

// ControlNumberColumn is the reserved output column holding controlfield
// 001 (the UNDL record identifier). It is always emitted first.
const ControlNumberColumn = "undl_id"

// WholeField reports whether the spec extracts entire datafields rather
// than a single subfield.
func (s *FieldSpec) WholeField() bool {
	return s.Code == ""
}

// Validate checks the spec against the MARC21 tag and code grammar.
func (s *FieldSpec) Validate() error {
	if len(s.Tag) != 3 {
		return fmt.Errorf("field spec %q: tag must be three characters, got %q", s.Name, s.Tag)
	}
	for _, r := range s.Tag {
		if r < '0' || r > '9' {
			return fmt.Errorf("field spec %q: tag %q must be numeric", s.Name, s.Tag)
		}
	}
	if len(s.Ind1) > 1 {
		return fmt.Errorf("field spec %q: indicator %q must be a single character", s.Name, s.Ind1)
	}
	if len(s.Code) > 1 {
		return fmt.Errorf("field spec %q: subfield code %q must be a single character", s.Name, s.Code)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("field spec for tag %s: name must not be empty", s.Tag)
	}
	if s.Name == ControlNumberColumn {
		return fmt.Errorf("field spec name %q is reserved for controlfield 001", ControlNumberColumn)
	}
	return nil
}

// ValidateFieldSpecs checks a slice of specs for individual validity and
// cross-spec name uniqueness. Duplicate names would silently overwrite
// each other's columns in the export output.
func ValidateFieldSpecs(specs []FieldSpec) error {
	seen := make(map[string]string, len(specs))
	for i := range specs {
		if err := specs[i].Validate(); err != nil {
			return err
		}
		if prior, dup := seen[specs[i].Name]; dup {
			return fmt.Errorf("field specs for tags %s and %s both use name %q",
				prior, specs[i].Tag, specs[i].Name)
		}
		seen[specs[i].Name] = specs[i].Tag
	}
	return nil
}

// ExitCode defines the CLI exit code contract. These codes let scripts
// and CI jobs distinguish failure classes without parsing stderr.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitNoCredentials indicates no API key could be resolved from the
	// flag, environment, .env file, or keys.json, or the key was rejected
	// by the API (HTTP 401/403).
	ExitNoCredentials ExitCode = 2

	// ExitAPIUnreachable indicates the UNDL API could not be reached
	// (DNS, connect, or timeout failures).
	ExitAPIUnreachable ExitCode = 3

	// ExitRateLimited indicates the API kept answering 429 after the
	// retry budget was exhausted.
	ExitRateLimited ExitCode = 4

	// ExitInvalidQuery indicates the search query or field mapping was
	// rejected before any request was made.
	ExitInvalidQuery ExitCode = 5

	// ExitParseError indicates the API answered with a payload that
	// could not be decoded as a MARC XML response envelope.
	ExitParseError ExitCode = 6
)

// CLIError is an error that carries an exit code. The CLI layer
// translates domain errors into CLIError so that Execute can map them
// onto process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
