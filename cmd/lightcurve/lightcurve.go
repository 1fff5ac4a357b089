package lightcurve

import (
	"github.com/spf13/cobra"

	"github.com/romanasp/campari/internal/analysis"
	"github.com/romanasp/campari/internal/conf"
)

type flags struct {
	request       analysis.LightCurveRequest
	maxBackground int
	maxDetection  int
	output        string
	grid          string
	size          int
	overwrite     bool
}

// Command creates the lightcurve command for measuring a single source.
func Command(settings *conf.Settings) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "lightcurve",
		Short: "Measure the light curve of one source",
		Long: `Resolve a source in the catalog, select its background and detection
exposures, run forced photometry on every detection epoch and write the
light curve as an ECSV table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyFlags(cmd, settings, f)
			if err := conf.ValidateSettings(settings); err != nil {
				return err
			}

			env, err := analysis.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			_, err = analysis.LightCurve(cmd.Context(), env, f.request, cmd.OutOrStdout())
			return err
		},
	}

	setupFlags(cmd, f)
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func setupFlags(cmd *cobra.Command, f *flags) {
	cmd.Flags().Int64VarP(&f.request.SourceID, "source", "s", 0, "Catalog ID of the source")
	cmd.Flags().StringVarP(&f.request.Band, "band", "f", "F184", "Filter band")
	cmd.Flags().IntVarP(&f.maxBackground, "max-background", "t", 0, "Maximum background exposures, 0 keeps all")
	cmd.Flags().IntVarP(&f.maxDetection, "max-detection", "d", 0, "Maximum detection exposures, 0 keeps all")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output directory for light curves")
	cmd.Flags().StringVar(&f.grid, "grid", "", "Sampling grid policy: regular, adaptive or contour")
	cmd.Flags().IntVar(&f.size, "size", 0, "Cutout size in pixels")
	cmd.Flags().StringVar(&f.request.Label, "label", "", "Run label used in the output file name")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "Replace an existing light curve")
	cmd.Flags().IntSliceVar(&f.request.Pointings, "pointing", nil, "Only use these pointings")
	cmd.Flags().IntSliceVar(&f.request.Detectors, "detector", nil, "Only use these detectors")
}

// applyFlags overrides settings with the flags given on the command line.
func applyFlags(cmd *cobra.Command, settings *conf.Settings, f *flags) {
	changed := cmd.Flags().Changed
	if changed("max-background") {
		settings.Exposures.MaxBackground = f.maxBackground
	}
	if changed("max-detection") {
		settings.Exposures.MaxDetection = f.maxDetection
	}
	if changed("output") {
		settings.Output.Dir = f.output
	}
	if changed("grid") {
		settings.Grid.Policy = f.grid
	}
	if changed("size") {
		settings.Exposures.StampSize = f.size
	}
	if changed("overwrite") {
		settings.Output.Overwrite = f.overwrite
	}
}
