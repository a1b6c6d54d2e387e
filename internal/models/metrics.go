package models

import "time"

// SystemMetrics is an aggregated runtime snapshot for the admin dashboard.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BookingsTotal            uint64    `json:"bookings_total"`
	BookingConflicts         uint64    `json:"booking_conflicts"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
