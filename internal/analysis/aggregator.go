package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/google/uuid"
)

// Weights are the base fusion weights of each modality.
type Weights map[models.Modality]float64

// DefaultWeights favors text over voice and face.
func DefaultWeights() Weights {
	return Weights{
		models.ModalityText:  0.4,
		models.ModalityVoice: 0.3,
		models.ModalityFace:  0.3,
	}
}

// Aggregator fans a fusion request out to every requested modality and combines the live results.
type Aggregator struct {
	forwarder *Forwarder
	weights   Weights
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// NewAggregator creates an Aggregator over forwarder using the given base weights.
func NewAggregator(forwarder *Forwarder, weights Weights, appMetrics *metrics.Metrics, log *slog.Logger) *Aggregator {
	return &Aggregator{
		forwarder: forwarder,
		weights:   weights,
		metrics:   appMetrics,
		log:       log,
		now:       time.Now,
	}
}

// Fuse analyzes every modality of req concurrently, each under its own timeout, and fuses
// whatever returned live data. Only a malformed request is an error; downstream failures
// degrade the result instead.
func (a *Aggregator) Fuse(ctx context.Context, req models.FusionRequest) (models.FusionResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return models.FusionResult{}, fmt.Errorf("%w: userId is required", models.ErrInvalidArgument)
	}
	if len(req.Requests) == 0 {
		return models.FusionResult{}, fmt.Errorf("%w: at least one modality payload is required", models.ErrInvalidArgument)
	}

	slots := make(map[models.Modality]*models.AnalysisResult, len(req.Requests))
	for _, r := range req.Requests {
		if _, ok := models.ParseModality(string(r.Modality)); !ok {
			return models.FusionResult{}, fmt.Errorf("%w: unknown modality %q", models.ErrInvalidArgument, r.Modality)
		}
		if _, dup := slots[r.Modality]; dup {
			return models.FusionResult{}, fmt.Errorf("%w: modality %q requested twice", models.ErrInvalidArgument, r.Modality)
		}
		slots[r.Modality] = &models.AnalysisResult{}
	}

	var wg sync.WaitGroup
	for _, r := range req.Requests {
		r.UserID = req.UserID
		slot := slots[r.Modality]

		wg.Add(1)
		go func() {
			defer wg.Done()
			*slot = a.forwarder.Forward(ctx, r)
		}()
	}
	wg.Wait()

	results := make(map[models.Modality]models.AnalysisResult, len(slots))
	for m, slot := range slots {
		results[m] = *slot
	}

	fused := Combine(a.weights, results)
	fused.FusionID = uuid.NewString()
	fused.UserID = req.UserID
	fused.CreatedAt = a.now().UTC()

	a.metrics.FusionResults.WithLabelValues(string(fused.State)).Inc()
	a.log.InfoContext(ctx, "Fusion completed",
		"fusion_id", fused.FusionID,
		"state", fused.State,
		"label", fused.Label,
		"excluded", fused.Excluded,
	)

	return fused, nil
}

// Combine fuses per-modality results. Unavailable results are excluded and the base weights
// are renormalized over the live ones, so a single live modality scores exactly its own score.
// Confidence is the share of the total base weight that returned live data.
func Combine(weights Weights, results map[models.Modality]models.AnalysisResult) models.FusionResult {
	fused := models.FusionResult{
		Label:     models.NeutralLabel,
		Breakdown: make([]models.ModalityBreakdown, 0, len(results)),
		Excluded:  make([]models.Modality, 0, len(results)),
	}

	var totalBase, liveBase float64
	live := make([]models.Modality, 0, len(results))
	for _, m := range models.Modalities {
		totalBase += weights[m]
		if res, ok := results[m]; ok && res.Live() {
			live = append(live, m)
			liveBase += weights[m]
		}
	}

	effective := make(map[models.Modality]float64, len(live))
	for _, m := range live {
		switch {
		case liveBase > 0:
			effective[m] = weights[m] / liveBase
		default:
			effective[m] = 1 / float64(len(live))
		}
	}

	bestWeighted := -1.0
	for _, m := range models.Modalities {
		res, requested := results[m]
		if !requested {
			continue
		}

		entry := models.ModalityBreakdown{Modality: m, BaseWeight: weights[m], Result: res}
		if w, ok := effective[m]; ok {
			entry.EffectiveWeight = w
			entry.Contributed = true

			weighted := w * res.Score
			fused.Score += weighted
			if weighted > bestWeighted {
				bestWeighted = weighted
				fused.Label = res.Label
			}
		} else {
			fused.Excluded = append(fused.Excluded, m)
		}
		fused.Breakdown = append(fused.Breakdown, entry)
	}

	switch {
	case len(live) == 0:
		fused.NoData = true
		fused.Label = models.NeutralLabel
		fused.Score = 0
		fused.State = models.StateUnavailable
	case len(live) == len(results):
		fused.State = models.StateSucceeded
	default:
		fused.State = models.StateDegraded
	}

	if len(live) > 0 && totalBase > 0 {
		fused.Confidence = min(liveBase/totalBase, 1)
	}

	fused.Summary = summarize(fused, live)

	return fused
}

func summarize(fused models.FusionResult, live []models.Modality) string {
	if fused.NoData {
		return "No analysis service returned data; reporting neutral."
	}

	names := make([]string, 0, len(live))
	for _, m := range live {
		names = append(names, string(m))
	}

	summary := fmt.Sprintf("Fusion analysis using %s. Overall emotion detected: %s with %.1f%% confidence.",
		strings.Join(names, ", "), fused.Label, fused.Confidence*100)
	if len(fused.Excluded) > 0 {
		excluded := make([]string, 0, len(fused.Excluded))
		for _, m := range fused.Excluded {
			excluded = append(excluded, string(m))
		}
		summary += " Unavailable: " + strings.Join(excluded, ", ") + "."
	}

	return summary
}
