// Command odata-export runs configured OData exports.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	_ "time/tzdata"

	"github.com/Sternrassler/odata-export/pkg/config"
	"github.com/Sternrassler/odata-export/pkg/logging"
	"github.com/spf13/cobra"
)

// Build information, set via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	logLevel   string
	pretty     bool
	errorDir   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "odata-export",
		Short:         "Export joined OData collections to CSV or SQLite",
		Long:          "Fetches the endpoints described in a pipeline file, joins them into one table and writes the formatted export.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				printVersionInfo(cmd.OutOrStdout())
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "pipeline.yaml", "Path to pipeline file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "Human-readable console logs")
	rootCmd.PersistentFlags().StringVar(&flags.errorDir, "error-dir", "", "Directory for daily error logs")
	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newValidateCmd(flags),
		newPlanCmd(flags),
	)
	return rootCmd
}

func printVersionInfo(w io.Writer) {
	fmt.Fprintf(w, "odata-export %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// setupLogging installs the global logger; the returned func releases it.
func (f *globalFlags) setupLogging(stderr io.Writer) (func(), error) {
	_, closer, err := logging.Setup(logging.Config{
		Level:    logging.LogLevel(f.logLevel),
		Pretty:   f.pretty,
		Output:   stderr,
		ErrorDir: f.errorDir,
	})
	if err != nil {
		return nil, err
	}
	return func() { closer.Close() }, nil
}

func (f *globalFlags) load() (*config.Pipeline, error) {
	return config.Load(f.configFile)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
