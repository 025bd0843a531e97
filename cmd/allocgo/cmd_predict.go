package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/preprocessing"
)

func (c *cli) newPredictCmd() *cobra.Command {
	var recordPath string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the allocation for one JSON record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := c.loadModel()
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if recordPath != "-" {
				f, err := os.Open(recordPath)
				if err != nil {
					return errors.Wrapf(err, "open record %s", recordPath)
				}
				defer f.Close()
				in = f
			}

			record, err := decodeRecord(in)
			if err != nil {
				return err
			}
			res, err := m.Predict(record)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}
	cmd.Flags().StringVar(&recordPath, "record", "-", "JSON record file, - for stdin")
	return cmd
}

// decodeRecord reads one JSON object. Numbers stay json.Number until the
// schema converts them.
func decodeRecord(r io.Reader) (preprocessing.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var record preprocessing.Record
	if err := dec.Decode(&record); err != nil {
		return nil, errors.Wrap(err, "decode record")
	}
	if record == nil {
		return nil, errors.New("decode record: expected a JSON object")
	}
	return record, nil
}
