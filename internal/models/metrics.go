package models

import "time"

// MetricsSnapshot is the JSON summary served next to the Prometheus endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	GenerationSessions       uint64    `json:"generationSessions"`
	ClassesPlaced            uint64    `json:"classesPlaced"`
	ClassesUnscheduled       uint64    `json:"classesUnscheduled"`
	AverageGenerationMs      float64   `json:"averageGenerationMs"`
	PersistenceRetries       uint64    `json:"persistenceRetries"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
