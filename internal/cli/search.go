// Package cli: search.go implements the "unlibmd search" command.
//
// The search command harvests every record matching a query and writes
// the full records out, either as a MARC XML collection (the format the
// API itself speaks) or as a JSON document. Pagination, throttling, and
// retries are handled by the undl client.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dhl-metadata/unlibmd/internal/marc"
	"github.com/dhl-metadata/unlibmd/internal/model"
	"github.com/dhl-metadata/unlibmd/internal/undl"
)

// searchFlags holds the flag values for the search command.
type searchFlags struct {
	queryFlags

	// format selects the output document type: "xml" or "json".
	format string

	// output is the destination path. Empty or "-" writes to stdout.
	output string
}

// queryFlags holds the search parameters shared by the search, export,
// and count commands.
type queryFlags struct {
	query      string
	collection string
	sort       string
	pageSize   int
	maxRecords int
}

// register binds the shared query flags onto a command.
func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Search pattern (Invenio query syntax)")
	cmd.Flags().StringVarP(&f.collection, "collection", "c", "", "Restrict to a UNDL collection")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Sort order (e.g. \"latest first\")")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0,
		fmt.Sprintf("Records per API request (default %d, max %d)", model.DefaultPageSize, model.MaxPageSize))
	cmd.Flags().IntVar(&f.maxRecords, "max-records", 0, "Stop after this many records (0 = all)")
}

// searchQuery builds and validates the API query from the flags.
func (f *queryFlags) searchQuery() (*model.SearchQuery, error) {
	query := &model.SearchQuery{
		Pattern:    f.query,
		Collection: f.collection,
		Sort:       f.sort,
		PageSize:   f.pageSize,
		MaxRecords: f.maxRecords,
	}
	if err := query.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidQuery, "invalid search", err)
	}
	return query, nil
}

// NewSearchCommand creates the "search" cobra command.
func NewSearchCommand() *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Harvest matching records as MARC XML or JSON",
		Long: `Harvest every record matching a query from the UN Digital Library,
following the server-side pagination cursor until the result set is
exhausted.

Examples:
  unlibmd search -q "climate change" -o records.xml
  unlibmd search -c "Voting Data" --max-records 500 --format json -o votes.json
  unlibmd search -q 'symbol:"A/RES/*"' --sort "latest first"`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), flags)
		},
	}

	flags.queryFlags.register(cmd)
	cmd.Flags().StringVar(&flags.format, "format", "xml", "Output format: xml, json")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// runSearch is the main logic function for the search command.
func runSearch(ctx context.Context, flags *searchFlags) error {
	if flags.format != "xml" && flags.format != "json" {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid format %q: valid values are xml, json", flags.format))
	}

	query, err := flags.searchQuery()
	if err != nil {
		return err
	}

	client, err := newUNDLClient()
	if err != nil {
		return err
	}

	// Both output documents wrap all records in one container (a
	// <collection> or a JSON array), so the harvest accumulates before
	// writing. Tabular streaming is what the export command is for.
	records, stats, err := client.HarvestAll(ctx, query)
	if err != nil {
		return err
	}

	out, isFile, err := openOutput(flags.output)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	switch flags.format {
	case "xml":
		if err := marc.WriteCollection(out, records); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "writing MARC XML", err)
		}
	case "json":
		if err := writeRecordsJSON(out, records, stats); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "writing JSON", err)
		}
	}

	if err := out.Close(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "closing output", err)
	}
	if isFile {
		printSummary(stats, flags.output)
	}
	return nil
}

// searchDocument is the JSON output shape of the search command: the
// harvest totals plus the full records.
type searchDocument struct {
	Total   int           `json:"total"`
	Fetched int           `json:"fetched"`
	Records []marc.Record `json:"records"`
}

// writeRecordsJSON encodes harvested records as one JSON document. A
// zero-hit harvest emits an empty records array, not null, so consumers
// can index into it unconditionally.
func writeRecordsJSON(out io.Writer, records []marc.Record, stats *undl.HarvestStats) error {
	if records == nil {
		records = []marc.Record{}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(searchDocument{
		Total:   stats.Total,
		Fetched: stats.Fetched,
		Records: records,
	})
}
