package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/allocgo/allocation"
	"github.com/YuminosukeSato/allocgo/metrics"
	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/pkg/log"
	"github.com/YuminosukeSato/allocgo/preprocessing"
	"github.com/YuminosukeSato/allocgo/synth"
)

// evaluation is the evaluate command's output.
type evaluation struct {
	Samples  int             `json:"samples"`
	Failures int             `json:"failures"`
	Metrics  metrics.Report  `json:"metrics"`
	Recorded *metrics.Report `json:"recorded,omitempty"`
	Delta    *metrics.Report `json:"delta,omitempty"`
}

func (c *cli) newEvaluateCmd() *cobra.Command {
	var (
		rows int
		seed uint64
		data string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the artifact against a labelled dataset",
		Long: `evaluate predicts every profile of a labelled dataset and reports MAE, MSE,
RMSE and R² of the raw predictions against the labels, next to the metrics
recorded in the artifact. The dataset is generated from --rows and --seed
unless --data names a CSV written by generate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := c.loadModel()
			if err != nil {
				return err
			}

			var profiles []synth.Profile
			if data != "" {
				f, err := os.Open(data)
				if err != nil {
					return errors.Wrapf(err, "open %s", data)
				}
				defer f.Close()
				if profiles, err = synth.ReadCSV(f); err != nil {
					return err
				}
			} else {
				if rows <= 0 {
					return errors.Newf("--rows must be positive, got %d", rows)
				}
				profiles = synth.New(seed).Generate(rows)
			}

			ev, err := evaluate(m, profiles)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ev)
		},
	}
	cmd.Flags().IntVar(&rows, "rows", defaultRows, "number of generated profiles")
	cmd.Flags().Uint64Var(&seed, "seed", defaultSeed, "random seed of the generated profiles")
	cmd.Flags().StringVar(&data, "data", "", "labelled CSV dataset instead of a generated one")
	return cmd
}

// evaluate scores the profiles that predict successfully; failed records
// are counted and left out of the metrics.
func evaluate(m *allocation.Model, profiles []synth.Profile) (evaluation, error) {
	logger := log.GetLoggerWithName("cli")
	start := time.Now()

	records := make([]preprocessing.Record, len(profiles))
	for i := range profiles {
		records[i] = profiles[i].Record()
	}
	results, errs := m.PredictBatch(records)

	labels := synth.Labels(profiles)
	yTrue := make([]float64, 0, len(profiles))
	yPred := make([]float64, 0, len(profiles))
	failures := 0
	for i, err := range errs {
		if err != nil {
			failures++
			logger.Debug("record skipped", log.ErrAttrKey, err.Error(), "record.index", i)
			continue
		}
		yTrue = append(yTrue, labels[i])
		yPred = append(yPred, results[i].Raw)
	}
	if len(yPred) == 0 {
		return evaluation{}, errors.Wrapf(errors.ErrEmptyData, "all %d records failed", len(profiles))
	}

	report, err := metrics.Evaluate(yTrue, yPred)
	if err != nil {
		return evaluation{}, err
	}
	ev := evaluation{Samples: len(yPred), Failures: failures, Metrics: report}
	if pm := m.PerformanceMetrics(); pm != nil {
		recorded := metrics.Report{MAE: pm.MAE, MSE: pm.MSE, RMSE: pm.RMSE, R2: pm.R2}
		delta := report.Delta(recorded)
		ev.Recorded = &recorded
		ev.Delta = &delta
	}

	logger.Info("evaluation finished",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, ev.Samples,
		log.FailuresKey, failures,
		log.MAEKey, report.MAE,
		log.MSEKey, report.MSE,
		log.RMSEKey, report.RMSE,
		log.R2ScoreKey, report.R2,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return ev, nil
}
