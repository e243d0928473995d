package models

import "time"

// MediaUpload describes a stored attachment. URI is the stable reference saved on
// content items; URL is a signed download link.
type MediaUpload struct {
	URI         string    `json:"uri"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SignedMediaURL is a fresh download link for a stored attachment.
type SignedMediaURL struct {
	URI       string    `json:"uri"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SystemMetrics is a lightweight view over the Prometheus collectors.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BackendOpCount           uint64    `json:"backend_op_count"`
	AverageBackendOpMs       float64   `json:"average_backend_op_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
