// Package cli implements the cobra-based CLI commands for unlibmd.
//
// Each subcommand (search, export, count) is defined in its own file
// within this package. This file defines the root command that serves as
// the parent for all subcommands and handles global flags, credential
// resolution, and error-to-exit-code translation.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dhl-metadata/unlibmd/internal/credential"
	"github.com/dhl-metadata/unlibmd/internal/model"
	"github.com/dhl-metadata/unlibmd/internal/undl"
)

// Global flag variables shared across all subcommands. These are bound
// to cobra persistent flags on the root command, which makes them
// available to every subcommand automatically.
var (
	// jsonOutput controls whether command status output is formatted as
	// JSON. Harvested data has its own --format flag per subcommand;
	// --json only affects summaries and errors.
	jsonOutput bool

	// verbose enables debug logging (harvest progress, retries,
	// credential provenance) on stderr.
	verbose bool

	// apiKeyFlag is an explicit API key, overriding every other
	// credential source.
	apiKeyFlag string

	// keysFileFlag is an explicit keys.json path for the credential
	// fallback chain.
	keysFileFlag string

	// baseURLFlag overrides the UNDL API root, for mirrors and tests.
	baseURLFlag string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// logger is the shared logrus instance. Level follows --verbose; output
// goes to stderr so stdout stays clean for harvested data.
var logger = logrus.New()

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unlibmd",
		Short: "Harvest bibliographic metadata from the UN Digital Library",
		Long: `unlibmd queries the UN Digital Library search API and harvests MARC21
records: full collections as MARC XML or JSON, or tabular exports driven
by a declarative field mapping.

An API key is required. It is resolved from --api-key, the UNDL_API_KEY
environment variable, a .env file in the working directory, or a
keys.json credentials file, in that order.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// PersistentPreRun fires before every subcommand, once flags are
		// parsed, which is the earliest point the log level is known.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging()
		},
	}

	// PersistentFlags are inherited by all subcommands.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output summaries in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "UNDL API key (overrides UNDL_API_KEY, .env, and keys.json)")
	rootCmd.PersistentFlags().StringVar(&keysFileFlag, "keys", "", "Path to a keys.json credentials file")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Override the UNDL API base URL")

	// Register subcommands. Each subcommand is defined in its own file
	// (search.go, export.go, count.go) and returns a *cobra.Command.
	rootCmd.AddCommand(NewSearchCommand())
	rootCmd.AddCommand(NewExportCommand())
	rootCmd.AddCommand(NewCountCommand())

	return rootCmd
}

// configureLogging applies the --verbose flag to the shared logger.
func configureLogging() {
	logger.SetOutput(os.Stderr)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into appropriate OS exit codes. CLIError types carry their own
// exit codes; other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		// Generic error: exit with code 1.
		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode, because stdout is
		// reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their summary format.
func IsJSONOutput() bool {
	return jsonOutput
}

// newUNDLClient resolves the API key through the credential chain and
// builds a client with the shared logger and any base URL override.
func newUNDLClient() (*undl.Client, error) {
	key, err := credential.Resolve(credential.Options{
		Explicit: apiKeyFlag,
		KeysFile: keysFileFlag,
	})
	if err != nil {
		return nil, err
	}
	logger.WithField("source", key.Source).Debug("resolved UNDL API key")

	opts := []undl.Option{undl.WithLogger(logger)}
	if baseURLFlag != "" {
		opts = append(opts, undl.WithBaseURL(baseURLFlag))
	}

	client, err := undl.NewClient(key.Value, opts...)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "creating UNDL client", err)
	}
	return client, nil
}
