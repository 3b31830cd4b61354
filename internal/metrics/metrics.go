package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// UploadsTotal counts upload finalizations by status (success, failure)
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftbox_uploads_total",
			Help: "Total number of finalized file uploads",
		},
		[]string{"status"},
	)

	// UploadSlotsTotal counts signed upload URL issuances by status
	// (issued, banned, rate_limited, failure)
	UploadSlotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftbox_upload_slots_total",
			Help: "Total number of upload slot requests",
		},
		[]string{"status"},
	)

	// DownloadsTotal counts file downloads by status (success, failure, not_found)
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftbox_downloads_total",
			Help: "Total number of file downloads",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ErrorsTotal counts application errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftbox_errors_total",
			Help: "Total number of application errors",
		},
		[]string{"type"},
	)

	// CleanupDeletionsTotal counts records removed by the sweep, by category
	CleanupDeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftbox_cleanup_deletions_total",
			Help: "Total records removed by cleanup sweeps",
		},
		[]string{"category"},
	)

	// RateLimitBansTotal counts rate-limit ban escalations by kind
	// (temporary, permanent)
	RateLimitBansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftbox_rate_limit_bans_total",
			Help: "Total rate-limit ban escalations",
		},
		[]string{"kind"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftbox_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// UploadSizeBytes tracks distribution of finalized upload sizes
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "driftbox_upload_size_bytes",
			Help: "Distribution of finalized upload sizes in bytes",
			Buckets: []float64{
				1024,      // 1 KB
				10240,     // 10 KB
				102400,    // 100 KB
				1048576,   // 1 MB
				10485760,  // 10 MB
				52428800,  // 50 MB
				104857600, // 100 MB
			},
		},
	)
)
