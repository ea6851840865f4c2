// Package eval summarizes per-turn records into hit rate, latency percentiles,
// false-reuse rate and precision/recall against duplicate labels.
package eval

import (
	"math"
	"sort"

	"github.com/hyperjump/semcache/internal/models"
	"github.com/hyperjump/semcache/pkg/utils"
	"gonum.org/v1/gonum/stat"
)

// Confusion counts labelled records by (label, hit).
type Confusion struct {
	TP, FP, TN, FN int
}

// Labelled returns how many records carried a label.
func (c Confusion) Labelled() int { return c.TP + c.FP + c.TN + c.FN }

// Count tallies labelled records; unlabelled ones are skipped.
func Count(records []*models.TurnRecord) Confusion {
	var c Confusion
	for _, r := range records {
		if r.SemDuplicateLabel == nil {
			continue
		}
		dup := *r.SemDuplicateLabel
		switch {
		case dup && r.CacheHit:
			c.TP++
		case dup && !r.CacheHit:
			c.FN++
		case !dup && r.CacheHit:
			c.FP++
		default:
			c.TN++
		}
	}
	return c
}

// Summarize aggregates records for one setup. Rates are rounded to three places;
// precision, recall and F1 are nil when undefined.
func Summarize(setup string, records []*models.TurnRecord) *models.Summary {
	s := &models.Summary{Setup: setup, N: len(records)}
	if len(records) == 0 {
		return s
	}

	hits := 0
	latencies := make([]float64, len(records))
	for i, r := range records {
		if r.CacheHit {
			hits++
		}
		latencies[i] = float64(r.LatencyMS)
	}
	sort.Float64s(latencies)

	s.HitRate = utils.RoundTo(utils.Ratio(hits, len(records)), 3)
	s.CallsAvoided = hits
	s.P50LatencyMS = int64(median(latencies))
	s.P95LatencyMS = int64(P95(latencies))
	s.MeanLatencyMS = utils.RoundTo(stat.Mean(latencies, nil), 1)

	c := Count(records)
	s.FalseReuseRate = utils.RoundTo(utils.Ratio(c.FP, hits), 3)

	var precision, recall float64
	if c.TP+c.FP > 0 {
		precision = utils.Ratio(c.TP, c.TP+c.FP)
		s.Precision = round3(precision)
	}
	if c.TP+c.FN > 0 {
		recall = utils.Ratio(c.TP, c.TP+c.FN)
		s.Recall = round3(recall)
	}
	// undefined when either side is zero or missing
	if precision > 0 && recall > 0 {
		s.F1 = round3(2 * precision * recall / (precision + recall))
	}
	return s
}

// median of sorted values; the mean of the two middle values for even counts.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// P95 returns sorted[max(0, floor(0.95n)-1)], a conservative nearest-rank percentile.
func P95(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(0.95*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func round3(v float64) *float64 {
	r := utils.RoundTo(v, 3)
	return &r
}
