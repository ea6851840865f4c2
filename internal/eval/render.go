package eval

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hyperjump/semcache/internal/models"
)

// CSVHeader lists the summary columns in output order.
var CSVHeader = []string{
	"setup", "n", "hit_rate", "calls_avoided", "p50_latency_ms", "p95_latency_ms",
	"mean_latency_ms", "false_reuse_rate", "precision", "recall", "f1",
}

// WriteCSV writes a header and one row per summary. Undefined metrics are empty cells.
func WriteCSV(w io.Writer, summaries []*models.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		row := []string{
			s.Setup,
			strconv.Itoa(s.N),
			formatFloat(s.HitRate),
			strconv.Itoa(s.CallsAvoided),
			strconv.FormatInt(s.P50LatencyMS, 10),
			strconv.FormatInt(s.P95LatencyMS, 10),
			formatFloat(s.MeanLatencyMS),
			formatFloat(s.FalseReuseRate),
			formatOptional(s.Precision),
			formatOptional(s.Recall),
			formatOptional(s.F1),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
