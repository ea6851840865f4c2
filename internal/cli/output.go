// Package cli renders command output for the semcache binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/semcache/internal/eval"
	"github.com/hyperjump/semcache/internal/models"
	"github.com/hyperjump/semcache/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is a human-readable table (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCSV is the summary CSV layout.
	OutputCSV OutputFormat = "csv"
)

// ParseOutputFormat maps a flag value to a format. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON, OutputCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json, csv)", s)
	}
}

// WriteSummaries writes one row per setup in the given format.
func WriteSummaries(w io.Writer, summaries []*models.Summary, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, summaries)
	case OutputCSV:
		return eval.WriteCSV(w, summaries)
	default:
		return writeSummaryTable(w, summaries)
	}
}

func writeSummaryTable(w io.Writer, summaries []*models.Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No records found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(eval.CSVHeader, "\t"))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%d\t%d\t%d\t%.1f\t%.3f\t%s\t%s\t%s\n",
			s.Setup, s.N, s.HitRate, s.CallsAvoided, s.P50LatencyMS, s.P95LatencyMS,
			s.MeanLatencyMS, s.FalseReuseRate,
			optional(s.Precision), optional(s.Recall), optional(s.F1))
	}
	return tw.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

// WriteChatResponse writes a served chat turn.
func WriteChatResponse(w io.Writer, resp *models.ChatResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	source := "generated"
	if resp.CacheHit {
		source = "cache"
	}
	fmt.Fprintf(w, "[%s] %dms", source, resp.LatencyMS)
	if resp.Similarity != nil {
		fmt.Fprintf(w, " similarity=%.4f", *resp.Similarity)
	}
	fmt.Fprintln(w)
	if resp.Context != "" {
		fmt.Fprintf(w, "context: %s\n", utils.Truncate(utils.OneLine(resp.Context), 200))
	}
	_, err := fmt.Fprintf(w, "\n%s\n", resp.Response)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
