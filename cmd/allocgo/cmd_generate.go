package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/pkg/log"
	"github.com/YuminosukeSato/allocgo/synth"
)

const (
	defaultRows = 1000
	defaultSeed = 42
)

func (c *cli) newGenerateCmd() *cobra.Command {
	var (
		rows int
		seed uint64
		out  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic household dataset as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rows <= 0 {
				return errors.Newf("--rows must be positive, got %d", rows)
			}
			profiles := synth.New(seed).Generate(rows)

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrapf(err, "create %s", out)
				}
				defer f.Close()
				w = f
			}
			if err := synth.WriteCSV(w, profiles); err != nil {
				return err
			}

			label := synth.Describe(profiles)["fixed_deposit_allocation_percentage"]
			log.GetLoggerWithName("cli").Info("dataset generated",
				log.OperationKey, log.OperationGenerate,
				log.SamplesKey, rows,
				log.RandomSeedKey, seed,
				"label.mean", label.Mean,
				"label.std", label.Std,
				"label.min", label.Min,
				"label.max", label.Max,
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", defaultRows, "number of profiles")
	cmd.Flags().Uint64Var(&seed, "seed", defaultSeed, "random seed")
	cmd.Flags().StringVar(&out, "out", "-", "output CSV file, - for stdout")
	return cmd
}
