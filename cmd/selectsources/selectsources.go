package selectsources

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/romanasp/campari/internal/analysis"
	"github.com/romanasp/campari/internal/conf"
)

// Command creates the select command, which writes the source IDs of one
// catalog shard within peak magnitude limits. The output feeds the batch
// command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		in     analysis.SelectionRequest
		output string
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "List the source IDs of a shard within magnitude limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("shard") {
				return fmt.Errorf("--shard is required")
			}
			if !cmd.Flags().Changed("mag-min") {
				in.MinMag = math.NaN()
			}
			if !cmd.Flags().Changed("mag-max") {
				in.MaxMag = math.NaN()
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := analysis.CreateOutput(conf.ExpandPath(output))
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			ids, err := analysis.SelectSources(cmd.Context(), settings, in, out)
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d source IDs to %s\n", len(ids), output)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&in.Shard, "shard", 0, "Catalog shard to read")
	cmd.Flags().StringVar(&in.Class, "class", "SN", "Object class to keep (SN, star); empty keeps all")
	cmd.Flags().Float64Var(&in.MinMag, "mag-min", 0, "Brightest peak magnitude to keep")
	cmd.Flags().Float64Var(&in.MaxMag, "mag-max", 0, "Faintest peak magnitude to keep")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the IDs to this file instead of stdout")

	return cmd
}
