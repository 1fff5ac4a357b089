package batch

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/romanasp/campari/internal/analysis"
	"github.com/romanasp/campari/internal/conf"
	"github.com/romanasp/campari/internal/errors"
)

// Command creates the batch command for processing a list of sources.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		req     analysis.BatchRequest
		workers int
		metrics bool
		listen  string
	)

	cmd := &cobra.Command{
		Use:   "batch [ids.txt]",
		Short: "Measure light curves for every source in a file",
		Long: `Read one source ID per line and measure each light curve concurrently.
A failing source does not stop the others; the command exits non-zero when
any source failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				settings.Batch.Workers = workers
			}
			if cmd.Flags().Changed("metrics") {
				settings.Telemetry.Prometheus.Enabled = metrics
			}
			if cmd.Flags().Changed("listen") {
				settings.Telemetry.Prometheus.Listen = listen
			}
			if err := conf.ValidateSettings(settings); err != nil {
				return err
			}

			ids, err := readIDs(args[0])
			if err != nil {
				return err
			}

			env, err := analysis.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			_, err = analysis.RunBatch(cmd.Context(), env, ids, req, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVarP(&req.Band, "band", "f", "F184", "Filter band")
	cmd.Flags().StringVar(&req.Label, "label", "", "Run label used in the output file names")
	cmd.Flags().IntSliceVar(&req.Pointings, "pointing", nil, "Only use these pointings")
	cmd.Flags().IntSliceVar(&req.Detectors, "detector", nil, "Only use these detectors")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent sources, 0 uses all CPUs")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Serve Prometheus metrics while the batch runs")
	cmd.Flags().StringVar(&listen, "listen", "", "Metrics listen address")

	return cmd
}

func readIDs(path string) ([]int64, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is the user-supplied ID list
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "open-id-list").
			Context("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()
	return analysis.ReadSourceIDs(f)
}
