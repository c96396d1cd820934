package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// HealthChecker is an analysis service able to report its own health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Health statuses reported by Prober.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthReport lists which analysis services answered their health probe.
type HealthReport struct {
	Status              string                   `json:"status"`
	ConnectedServices   map[models.Modality]bool `json:"connectedServices"`
	AvailableModalities []models.Modality        `json:"availableModalities"`
}

// Prober probes every analysis service concurrently with a short timeout.
type Prober struct {
	checkers map[models.Modality]HealthChecker
	timeout  time.Duration
	log      *slog.Logger
}

// NewProber creates a Prober. Modalities missing from checkers are reported as disconnected.
func NewProber(checkers map[models.Modality]HealthChecker, timeout time.Duration, log *slog.Logger) *Prober {
	return &Prober{checkers: checkers, timeout: timeout, log: log}
}

// Probe checks every modality and summarizes the result.
func (p *Prober) Probe(ctx context.Context) HealthReport {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		connected = make(map[models.Modality]bool, len(models.Modalities))
	)

	for _, m := range models.Modalities {
		connected[m] = false
	}

	for _, m := range models.Modalities {
		checker, ok := p.checkers[m]
		if !ok || checker == nil {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			err := checker.Health(probeCtx)
			if err != nil {
				p.log.DebugContext(ctx, "Analysis service health probe failed", "modality", m, "error", err)
			}

			mu.Lock()
			connected[m] = err == nil
			mu.Unlock()
		}()
	}
	wg.Wait()

	report := HealthReport{
		ConnectedServices:   connected,
		AvailableModalities: make([]models.Modality, 0, len(models.Modalities)),
	}
	for _, m := range models.Modalities {
		if connected[m] {
			report.AvailableModalities = append(report.AvailableModalities, m)
		}
	}

	switch len(report.AvailableModalities) {
	case len(models.Modalities):
		report.Status = StatusHealthy
	case 0:
		report.Status = StatusUnhealthy
	default:
		report.Status = StatusDegraded
	}

	return report
}
