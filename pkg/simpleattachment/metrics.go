package simpleattachment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storageDeleteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simpleattachment_storage_delete_failures_total",
		Help: "Best-effort storage object deletions that failed.",
	})
	eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simpleattachment_events_published_total",
		Help: "Outbound attachment events by trigger and result.",
	}, []string{"trigger", "result"})
	referenceOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simpleattachment_reference_operations_total",
		Help: "Reconciliation add/remove operations by element kind, operation and result.",
	}, []string{"kind", "op", "result"})
	readURLCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simpleattachment_read_url_cache_hits_total",
		Help: "Presigned read URL cache hits.",
	})
	readURLCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simpleattachment_read_url_cache_misses_total",
		Help: "Presigned read URL cache misses.",
	})
)
