package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

const (
	ExportProbabilityColumn = "churn_probability"
	ExportLabelColumn       = "prediction_label"
)

// WriteExport re-emits the uploaded table with the probability and label
// appended to every row. results must be index-aligned with t.Rows.
func WriteExport(w io.Writer, t *Table, results []Result) error {
	if len(results) != len(t.Rows) {
		return fmt.Errorf("export: %d results for %d rows", len(results), len(t.Rows))
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(t.Header)+2)
	header = append(header, t.Header...)
	header = append(header, ExportProbabilityColumn, ExportLabelColumn)
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, row := range t.Rows {
		out := make([]string, 0, len(row)+2)
		out = append(out, row...)
		out = append(out,
			strconv.FormatFloat(results[i].Probability, 'f', -1, 64),
			string(results[i].Label),
		)
		if err := cw.Write(out); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
