// Package cli: output.go holds the helpers shared by the search and
// export commands for writing harvested data to a file or stdout and
// for printing run summaries.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dhl-metadata/unlibmd/internal/model"
	"github.com/dhl-metadata/unlibmd/internal/undl"
)

// openOutput returns the destination for harvested data. An empty path
// or "-" means stdout. The second return reports whether the
// destination is a file, in which case the caller prints a summary to
// stdout after the run (data on stdout leaves no room for one).
func openOutput(path string) (io.WriteCloser, bool, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, false, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, false, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("creating output file %s", path), err)
	}
	return f, true, nil
}

// nopCloser wraps stdout so the deferred Close in command handlers does
// not close the process's stdout.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// printSummary reports a finished harvest on stdout, in text or JSON
// depending on the --json flag.
func printSummary(stats *undl.HarvestStats, destination string) {
	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"total":   stats.Total,
			"fetched": stats.Fetched,
			"pages":   stats.Pages,
			"output":  destination,
		})
		return
	}
	fmt.Printf("Harvested %d of %d records (%d pages) to %s\n",
		stats.Fetched, stats.Total, stats.Pages, destination)
}

// printJSON writes an indented JSON document to stdout. Summaries are
// plain maps of scalars, so marshal failures cannot occur in practice.
func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
