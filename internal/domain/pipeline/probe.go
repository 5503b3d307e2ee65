package pipeline

import (
	"context"
	"time"
)

// ProbeResult is one recorded health probe against a source-system resource.
type ProbeResult struct {
	ID             uint
	Resource       string
	OK             bool
	Status         int
	Message        string
	ResponseTimeMs int64
	CreatedAt      time.Time
}

// StatusColor is the traffic-light health state shown for a probed resource
// or for the pipeline as a whole.
type StatusColor string

const (
	StatusGreen  StatusColor = "GREEN"
	StatusOrange StatusColor = "ORANGE"
	StatusRed    StatusColor = "RED"
)

// ProbeResultRepository persists probe results.
type ProbeResultRepository interface {
	// Record appends one probe result.
	Record(ctx context.Context, result *ProbeResult) error

	// RecentByResource returns the newest probe results for a resource, up to
	// limit, newest first.
	RecentByResource(ctx context.Context, resource string, limit int) ([]ProbeResult, error)
}
