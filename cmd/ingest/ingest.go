package ingest

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/romanasp/campari/internal/analysis"
	"github.com/romanasp/campari/internal/conf"
)

// Command creates the ingest command, which loads catalog CSV files into the
// SQLite catalog.
func Command(settings *conf.Settings) *cobra.Command {
	var sources, exposures string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load source and exposure tables into the catalog",
		Long: `Load CSV tables into the catalog database. The source table needs the
columns id,ra,dec,class,start,end,peak and may add host_ra,host_dec,shard,
peak_mag.
The exposure table needs pointing,detector,band,mjd,ra,dec,pa and may add
detected,true_flux.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sources == "" && exposures == "" {
				return fmt.Errorf("at least one of --sources or --exposures is required")
			}
			counts, err := analysis.Ingest(cmd.Context(), settings, sources, exposures)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog holds %d sources and %d exposures\n", counts.Sources, counts.Exposures)
			return nil
		},
	}

	cmd.Flags().StringVar(&sources, "sources", "", "Source table CSV")
	cmd.Flags().StringVar(&exposures, "exposures", "", "Exposure table CSV")

	return cmd
}
