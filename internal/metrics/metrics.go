// Package metrics provides Prometheus metrics for the IPFS mount.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Filesystem operation metrics
	fsOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipfs_mount_fs_operations_total",
			Help: "Total number of filesystem operations served",
		},
		[]string{"op", "result"},
	)

	fsOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipfs_mount_fs_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Store RPC metrics
	storeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipfs_mount_store_requests_total",
			Help: "Total number of IPFS RPC requests",
		},
		[]string{"endpoint", "status"},
	)

	storeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipfs_mount_store_request_duration_seconds",
			Help:    "IPFS RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Content transfer metrics
	readBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipfs_mount_read_bytes_total",
			Help: "Total bytes returned by read operations",
		},
		[]string{"source"},
	)

	pinnedSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipfs_mount_pinned_entries_skipped_total",
			Help: "Pinned entries omitted from listings because they could not be resolved",
		},
	)

	// Mount metrics
	mountsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ipfs_mount_mounts_active",
			Help: "Number of active mount sessions",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOperation records a filesystem operation.
func RecordOperation(op string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	fsOperationsTotal.WithLabelValues(op, result).Inc()
	fsOperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordStoreRequest records an RPC round trip. Status 0 means no response was received.
func RecordStoreRequest(endpoint string, status int, duration time.Duration) {
	label := "transport_error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	storeRequestsTotal.WithLabelValues(endpoint, label).Inc()
	storeRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRead records bytes served from "static" or "store".
func RecordRead(source string, bytes int) {
	readBytesTotal.WithLabelValues(source).Add(float64(bytes))
}

// RecordPinnedSkipped records pinned entries dropped from a listing.
func RecordPinnedSkipped(n int) {
	pinnedSkippedTotal.Add(float64(n))
}

// IncMounts increments the active mount gauge.
func IncMounts() {
	mountsActive.Inc()
}

// DecMounts decrements the active mount gauge.
func DecMounts() {
	mountsActive.Dec()
}
