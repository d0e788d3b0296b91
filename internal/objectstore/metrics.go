package objectstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// writesTotal counts Put calls.
	// Labels: result (created, dedup)
	writesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deliverable",
			Subsystem: "objectstore",
			Name:      "writes_total",
			Help:      "Total number of object store puts by outcome",
		},
		[]string{"result"},
	)

	// signedResolutions counts signed URL lookups.
	// Labels: result (resolved, expired, unknown, invalid)
	signedResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deliverable",
			Subsystem: "objectstore",
			Name:      "signed_url_resolutions_total",
			Help:      "Total number of signed URL resolutions by outcome",
		},
		[]string{"result"},
	)
)
