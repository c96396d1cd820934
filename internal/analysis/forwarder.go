package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
)

// Analyzer is a single analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
}

// Forwarder relays a request to the analysis service of its modality and never fails:
// any downstream problem turns into a neutral fallback result tagged with the reason.
type Forwarder struct {
	analyzers map[models.Modality]Analyzer
	timeout   time.Duration
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewForwarder creates a Forwarder. Modalities missing from analyzers are reported as not configured.
// timeout must be positive.
func NewForwarder(
	analyzers map[models.Modality]Analyzer,
	timeout time.Duration,
	appMetrics *metrics.Metrics,
	log *slog.Logger,
) *Forwarder {
	return &Forwarder{analyzers: analyzers, timeout: timeout, metrics: appMetrics, log: log}
}

// Forward analyzes req under the configured timeout and returns a live or fallback result.
func (f *Forwarder) Forward(ctx context.Context, req models.AnalysisRequest) models.AnalysisResult {
	analyzer, ok := f.analyzers[req.Modality]
	if !ok || analyzer == nil {
		f.metrics.DownstreamRequests.WithLabelValues(string(req.Modality), string(models.ReasonNotConfigured)).Inc()
		return models.FallbackResult(req.Modality, models.ReasonNotConfigured)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	result, err := analyzer.Analyze(callCtx, req)
	f.metrics.DownstreamSeconds.WithLabelValues(string(req.Modality)).Observe(time.Since(start).Seconds())

	if err == nil {
		f.metrics.DownstreamRequests.WithLabelValues(string(req.Modality), string(models.StateSucceeded)).Inc()
		result.Modality = req.Modality
		result.State = models.StateSucceeded
		return result
	}

	var reason models.FallbackReason
	switch {
	case errors.Is(err, ErrTimeout):
		reason = models.ReasonTimeout
		f.log.WarnContext(ctx, "Analysis service timed out", "modality", req.Modality, "timeout", f.timeout)
	case errors.Is(err, ErrCircuitOpen):
		reason = models.ReasonCircuitOpen
		f.log.DebugContext(ctx, "Analysis service skipped, circuit open", "modality", req.Modality)
	case errors.Is(err, ErrBadStatus):
		reason = models.ReasonBadStatus
		f.log.WarnContext(ctx, "Analysis service rejected request", "modality", req.Modality, "error", err)
	case errors.Is(err, ErrMalformedResponse):
		reason = models.ReasonMalformedResponse
		f.log.WarnContext(ctx, "Analysis service sent malformed response", "modality", req.Modality, "error", err)
	default:
		reason = models.ReasonUnreachable
		f.log.WarnContext(ctx, "Analysis service unreachable", "modality", req.Modality, "error", err)
	}

	f.metrics.DownstreamRequests.WithLabelValues(string(req.Modality), string(reason)).Inc()
	return models.FallbackResult(req.Modality, reason)
}
