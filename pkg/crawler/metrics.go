package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stoneage",
		Subsystem: "crawler",
		Name:      "pages_total",
		Help:      "Pages fetched by the crawler, by feed and result.",
	}, []string{"feed", "result"})

	entriesExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stoneage",
		Subsystem: "crawler",
		Name:      "entries_total",
		Help:      "Unique entries extracted from listing pages, by feed.",
	}, []string{"feed"})

	detailsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stoneage",
		Subsystem: "crawler",
		Name:      "details_total",
		Help:      "Detail pages processed, by feed and result.",
	}, []string{"feed", "result"})
)
