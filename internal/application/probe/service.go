// Package probe runs scheduled health checks against the source API's
// collections and rolls the recorded results into a traffic-light status per
// resource.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/unleashed"
)

// recentWindow is how many stored results feed a status rollup.
const recentWindow = 50

// ResourceProber checks one source collection. A transport failure is
// reported as a not-OK check, never as an error.
type ResourceProber interface {
	FetchResource(ctx context.Context, resource unleashed.Resource) *unleashed.ResourceCheck
}

// Service runs probes and summarizes their history.
type Service struct {
	prober  ResourceProber
	results pipeline.ProbeResultRepository
	logger  *zap.Logger
}

// NewService creates a probe Service.
func NewService(prober ResourceProber, results pipeline.ProbeResultRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		prober:  prober,
		results: results,
		logger:  logger.Named("probe"),
	}
}

// RunProbe checks one resource, records the timed outcome and returns it.
func (s *Service) RunProbe(ctx context.Context, resource unleashed.Resource) (*pipeline.ProbeResult, error) {
	started := time.Now()
	check := s.prober.FetchResource(ctx, resource)

	result := &pipeline.ProbeResult{
		Resource:       string(resource),
		OK:             check.OK,
		Status:         check.Status,
		Message:        check.Message,
		ResponseTimeMs: time.Since(started).Milliseconds(),
	}
	if err := s.results.Record(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to record probe result: %w", err)
	}

	s.logger.Info("probe recorded",
		zap.String("resource", string(resource)),
		zap.Bool("ok", check.OK),
		zap.Int("status", check.Status),
		zap.Int64("responseTimeMs", result.ResponseTimeMs),
	)
	return result, nil
}

// RunSweep probes every known resource. A failing probe is recorded and does
// not stop the sweep.
func (s *Service) RunSweep(ctx context.Context) ([]pipeline.ProbeResult, error) {
	results := make([]pipeline.ProbeResult, 0, len(unleashed.Resources))
	for _, resource := range unleashed.Resources {
		result, err := s.RunProbe(ctx, resource)
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// ResourceStatusSummary is the dashboard view of one probed resource.
type ResourceStatusSummary struct {
	Status         pipeline.StatusColor   `json:"status"`
	LastSuccessAt  *time.Time             `json:"lastSuccessAt"`
	LastRunAt      *time.Time             `json:"lastRunAt"`
	LastStatusCode *int                   `json:"lastStatusCode"`
	ErrorCount24h  int                    `json:"errorCount24h"`
	RecentResults  []pipeline.ProbeResult `json:"recentResults"`
}

// ResourceStatus summarizes the stored probe history for one resource.
func (s *Service) ResourceStatus(ctx context.Context, resource unleashed.Resource) (*ResourceStatusSummary, error) {
	results, err := s.results.RecentByResource(ctx, string(resource), recentWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load probe history: %w", err)
	}
	return DetermineStatus(results, time.Now().UTC()), nil
}

// DetermineStatus rolls probe history (newest first) into a traffic light.
// An auth failure on the latest probe is RED regardless of history; a fresh
// successful probe is GREEN; mixed results inside the hour are ORANGE; a
// stale or absent success is RED.
func DetermineStatus(results []pipeline.ProbeResult, now time.Time) *ResourceStatusSummary {
	since5 := now.Add(-5 * time.Minute)
	since60 := now.Add(-60 * time.Minute)
	since24h := now.Add(-24 * time.Hour)

	summary := &ResourceStatusSummary{
		Status:        pipeline.StatusRed,
		RecentResults: results,
	}

	var last *pipeline.ProbeResult
	if len(results) > 0 {
		last = &results[0]
		summary.LastRunAt = &last.CreatedAt
		summary.LastStatusCode = &last.Status
	}

	var lastSuccess *pipeline.ProbeResult
	var failures60, successes60 int
	for i := range results {
		r := &results[i]
		if r.OK && lastSuccess == nil {
			lastSuccess = r
		}
		if r.CreatedAt.After(since60) {
			if r.OK {
				successes60++
			} else {
				failures60++
			}
		}
		if !r.OK && r.CreatedAt.After(since24h) {
			summary.ErrorCount24h++
		}
	}
	if lastSuccess != nil {
		summary.LastSuccessAt = &lastSuccess.CreatedAt
	}

	switch {
	case last != nil && (last.Status == http.StatusUnauthorized || last.Status == http.StatusForbidden):
		summary.Status = pipeline.StatusRed
	case last != nil && last.OK && last.Status == http.StatusOK && last.CreatedAt.After(since5):
		summary.Status = pipeline.StatusGreen
	case failures60 > 0 && successes60 > 0:
		summary.Status = pipeline.StatusOrange
	}

	return summary
}
