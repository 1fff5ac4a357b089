package cmd

import (
	"github.com/spf13/cobra"

	"github.com/romanasp/campari/cmd/batch"
	"github.com/romanasp/campari/cmd/exposures"
	"github.com/romanasp/campari/cmd/ingest"
	"github.com/romanasp/campari/cmd/lightcurve"
	"github.com/romanasp/campari/cmd/selectsources"
	"github.com/romanasp/campari/cmd/simulate"
	"github.com/romanasp/campari/internal/analysis"
	"github.com/romanasp/campari/internal/conf"
)

// RootCommand creates and returns the root command. settings is filled from
// the configuration file before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "campari",
		Short:         "Forced-photometry light curves for survey transients",
		Version:       settings.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config.yaml (default: search the standard locations)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")

	rootCmd.AddCommand(
		lightcurve.Command(settings),
		exposures.Command(settings),
		simulate.Command(settings),
		batch.Command(settings),
		ingest.Command(settings),
		selectsources.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		// The build version is not part of the file.
		loaded.Version = settings.Version
		*settings = *loaded
		if cmd.Flags().Changed("debug") {
			settings.Debug = debug
		}
		return analysis.Setup(settings)
	}

	return rootCmd
}
