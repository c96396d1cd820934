package analysis_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/hermes/internal/analysis"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/stretchr/testify/assert"
)

type stubChecker struct {
	err   error
	delay time.Duration
}

func (s stubChecker) Health(ctx context.Context) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func TestProber_Probe(t *testing.T) {
	t.Parallel()

	t.Run("all services healthy", func(t *testing.T) {
		t.Parallel()
		prober := analysis.NewProber(map[models.Modality]analysis.HealthChecker{
			models.ModalityText: stubChecker{}, models.ModalityVoice: stubChecker{}, models.ModalityFace: stubChecker{},
		}, time.Second, slog.Default())

		report := prober.Probe(t.Context())

		assert.Equal(t, analysis.StatusHealthy, report.Status)
		assert.Equal(t, models.Modalities, report.AvailableModalities)
	})

	t.Run("slow and missing services are disconnected", func(t *testing.T) {
		t.Parallel()
		prober := analysis.NewProber(map[models.Modality]analysis.HealthChecker{
			models.ModalityText:  stubChecker{},
			models.ModalityVoice: stubChecker{delay: time.Minute},
		}, 20*time.Millisecond, slog.Default())

		report := prober.Probe(t.Context())

		assert.Equal(t, analysis.StatusDegraded, report.Status)
		assert.Equal(t, []models.Modality{models.ModalityText}, report.AvailableModalities)
		assert.Equal(t, map[models.Modality]bool{
			models.ModalityText: true, models.ModalityVoice: false, models.ModalityFace: false,
		}, report.ConnectedServices)
	})

	t.Run("no service reachable", func(t *testing.T) {
		t.Parallel()
		prober := analysis.NewProber(map[models.Modality]analysis.HealthChecker{
			models.ModalityText: stubChecker{err: assert.AnError},
		}, time.Second, slog.Default())

		report := prober.Probe(t.Context())

		assert.Equal(t, analysis.StatusUnhealthy, report.Status)
		assert.Empty(t, report.AvailableModalities)
	})
}
