package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	collectionWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "craftbom_collection_writes_total",
		Help: "Whole-collection replacements accepted",
	}, []string{"collection"})

	collectionItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "craftbom_collection_items",
		Help: "Items in a collection after its last replacement",
	}, []string{"collection"})

	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "craftbom_bom_resolve_duration_seconds",
		Help:    "Duration of quest bill-of-materials resolution",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"outcome"})

	unknownMaterialsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "craftbom_bom_unknown_materials_total",
		Help: "Unresolved material ids seen while resolving",
	})
)
