// Package model defines the domain types shared across the unlibmd CLI.
//
// The types here describe the two declarative inputs of a harvest run,
// a search query against the UN Digital Library API and a set of MARC
// field extraction rules, plus the error and exit-code contract used
// by the CLI layer. All types are plain data with validation methods;
// network and parsing behavior lives in internal/undl and internal/marc.
package model
