// Package cli: count.go implements the "unlibmd count" command.
//
// Count reports how many records match a query without harvesting
// them: a single API request for one record, reading the total from the
// response envelope. Useful for sizing a harvest before running it.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCountCommand creates the "count" cobra command.
func NewCountCommand() *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count records matching a query",
		Long: `Count the records matching a query without harvesting them.

Examples:
  unlibmd count -q "climate change"
  unlibmd count -c "Voting Data" --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd.Context(), flags)
		},
	}

	flags.register(cmd)
	return cmd
}

// runCount is the main logic function for the count command.
func runCount(ctx context.Context, flags *queryFlags) error {
	query, err := flags.searchQuery()
	if err != nil {
		return err
	}

	client, err := newUNDLClient()
	if err != nil {
		return err
	}

	total, err := client.Count(ctx, query)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(map[string]interface{}{"total": total})
	} else {
		fmt.Println(total)
	}
	return nil
}
