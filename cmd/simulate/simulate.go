package simulate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/romanasp/campari/internal/analysis"
	"github.com/romanasp/campari/internal/conf"
)

// Command creates the simulate command. By default it renders fixture stamps
// for a catalog source; with --standalone it renders the configured test
// scene without a catalog.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		sourceID   int64
		band       string
		standalone bool
		dir        string
		overwrite  bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Render synthetic cutouts as fixture files",
		Long: `Render synthetic cutouts of a host galaxy and transient and store them as
16-bit TIFF stamps with JSON metadata. The fixtures can be measured later
with simulation.source set to fixtures.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if standalone {
				if dir == "" {
					return fmt.Errorf("--dir is required with --standalone")
				}
				res, err := analysis.SimulateScene(settings, band, dir, overwrite)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %d cutouts to %s\n", res.Len(), dir)
				return nil
			}

			if !cmd.Flags().Changed("source") {
				return fmt.Errorf("--source is required unless --standalone is set")
			}
			if dir != "" {
				settings.Simulation.FixtureDir = dir
			}
			env, err := analysis.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			written, err := analysis.SimulateFixtures(cmd.Context(), env, sourceID, band, overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote fixtures to %s\n", written)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&sourceID, "source", "s", 0, "Catalog ID of the source")
	cmd.Flags().StringVarP(&band, "band", "f", "F184", "Filter band")
	cmd.Flags().BoolVar(&standalone, "standalone", false, "Render the configured scene without a catalog")
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default: simulation.fixturedir)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing fixtures")

	return cmd
}
