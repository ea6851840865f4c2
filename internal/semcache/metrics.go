package semcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semcache_lookups_total",
		Help: "Cache lookups by result (hit, miss, error)",
	}, []string{"result"})

	insertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semcache_inserts_total",
		Help: "Entries inserted into the similarity index",
	})

	lookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "semcache_lookup_duration_seconds",
		Help:    "Lookup latency including the embedding call",
		Buckets: prometheus.DefBuckets,
	})

	indexEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "semcache_index_entries",
		Help: "Entries held by the most recently written index",
	})
)
