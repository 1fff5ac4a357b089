package exposures

import (
	"github.com/spf13/cobra"

	"github.com/romanasp/campari/internal/analysis"
	"github.com/romanasp/campari/internal/conf"
)

// Command creates the exposures command, which lists the exposures selected
// for a source without measuring them.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		req           analysis.ExposureRequest
		asJSON        bool
		maxBackground int
		maxDetection  int
	)

	cmd := &cobra.Command{
		Use:   "exposures",
		Short: "List the exposures covering a source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("max-background") {
				settings.Exposures.MaxBackground = maxBackground
			}
			if cmd.Flags().Changed("max-detection") {
				settings.Exposures.MaxDetection = maxDetection
			}

			env, err := analysis.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			_, err = analysis.Exposures(cmd.Context(), env, req, cmd.OutOrStdout(), asJSON)
			return err
		},
	}

	cmd.Flags().Int64VarP(&req.SourceID, "source", "s", 0, "Catalog ID of the source")
	cmd.Flags().StringVarP(&req.Band, "band", "f", "F184", "Filter band")
	cmd.Flags().IntVarP(&maxBackground, "max-background", "t", 0, "Maximum background exposures, 0 keeps all")
	cmd.Flags().IntVarP(&maxDetection, "max-detection", "d", 0, "Maximum detection exposures, 0 keeps all")
	cmd.Flags().IntSliceVar(&req.Pointings, "pointing", nil, "Only use these pointings")
	cmd.Flags().IntSliceVar(&req.Detectors, "detector", nil, "Only use these detectors")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}
