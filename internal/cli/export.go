// Package cli: export.go implements the "unlibmd export" command.
//
// The export command harvests matching records and renders them into
// tabular output (CSV, TSV, or JSON rows) driven by a YAML field
// mapping. Rows stream to the destination as pages arrive, so result
// sets larger than memory export fine.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhl-metadata/unlibmd/internal/export"
	"github.com/dhl-metadata/unlibmd/internal/model"
)

// exportFlags holds the flag values for the export command.
type exportFlags struct {
	queryFlags

	// fields is the path to the YAML field mapping. Required.
	fields string

	// format selects the tabular output type: "csv", "tsv", or "json".
	format string

	// output is the destination path. Empty or "-" writes to stdout.
	output string

	// separator overrides the mapping's multi-value separator.
	separator string

	// linkTemplate, when set, appends a "url" column built from this
	// template plus the record identifier.
	linkTemplate string

	// workers is the extraction worker count.
	workers int
}

// NewExportCommand creates the "export" cobra command.
func NewExportCommand() *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Harvest records into CSV, TSV, or JSON rows",
		Long: `Harvest every record matching a query and extract MARC fields into
tabular output, driven by a YAML field mapping.

A mapping lists the datafields to extract and the column names to give
them; the record identifier (controlfield 001) is always the first
column, named undl_id.

Example mapping:
  fields:
    - tag: "245"
      code: a
      name: title
    - tag: "991"
      name: votes
  links:
    - name: url
      template: "https://digitallibrary.un.org/record/"

Examples:
  unlibmd export -q "climate change" --fields fields.yml -o out.csv
  unlibmd export -c "Voting Data" --fields votes.yml --format tsv
  unlibmd export -q resolution --fields f.yml --format json --max-records 100`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), flags)
		},
	}

	flags.queryFlags.register(cmd)
	cmd.Flags().StringVar(&flags.fields, "fields", "", "YAML field mapping file (required)")
	cmd.Flags().StringVar(&flags.format, "format", "csv", "Output format: csv, tsv, json")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&flags.separator, "separator", "", "Multi-value separator (default from mapping, else \"|\")")
	cmd.Flags().StringVar(&flags.linkTemplate, "link-template", "", "Add a \"url\" column from this template plus the record ID")
	cmd.Flags().IntVar(&flags.workers, "workers", export.DefaultWorkers, "Extraction worker count")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}

// runExport is the main logic function for the export command.
func runExport(ctx context.Context, flags *exportFlags) error {
	switch flags.format {
	case "csv", "tsv", "json":
	default:
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid format %q: valid values are csv, tsv, json", flags.format))
	}

	query, err := flags.searchQuery()
	if err != nil {
		return err
	}

	mapping, err := export.LoadMapping(flags.fields)
	if err != nil {
		return err
	}
	if flags.separator != "" {
		mapping.Separator = flags.separator
	}
	if flags.linkTemplate != "" {
		mapping.Links = append(mapping.Links, export.LinkRule{
			Name:     "url",
			Template: flags.linkTemplate,
		})
		if err := mapping.Validate(); err != nil {
			return model.WrapCLIError(model.ExitInvalidQuery, "applying --link-template", err)
		}
	}

	client, err := newUNDLClient()
	if err != nil {
		return err
	}

	out, isFile, err := openOutput(flags.output)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	var writer export.RowWriter
	switch flags.format {
	case "csv":
		writer = export.NewCSVWriter(out, ',')
	case "tsv":
		writer = export.NewCSVWriter(out, '\t')
	case "json":
		writer = export.NewJSONRowsWriter(out)
	}

	stats, err := export.Run(ctx, client, query, mapping, writer, flags.workers)
	if err != nil {
		return err
	}

	if err := out.Close(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "closing output", err)
	}
	if isFile {
		printSummary(stats, flags.output)
	}
	return nil
}
