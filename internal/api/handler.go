package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/UnknownOlympus/hermes/internal/analysis"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// NearbyFinder runs proximity lookups.
type NearbyFinder interface {
	FindNearby(ctx context.Context, query models.NearbyQuery) ([]models.ProximityResult, error)
	FindNearbyAddress(ctx context.Context, address string, query models.NearbyQuery) ([]models.ProximityResult, error)
}

// Forwarder relays a single-modality request and always yields a result.
type Forwarder interface {
	Forward(ctx context.Context, req models.AnalysisRequest) models.AnalysisResult
}

// Fuser runs a multi-modality fusion.
type Fuser interface {
	Fuse(ctx context.Context, req models.FusionRequest) (models.FusionResult, error)
}

// HealthProber reports which analysis services are reachable.
type HealthProber interface {
	Probe(ctx context.Context) analysis.HealthReport
}

// Handler serves the public API.
type Handler struct {
	log       *slog.Logger
	nearby    NearbyFinder
	forwarder Forwarder
	fuser     Fuser
	prober    HealthProber
}

// NewHandler creates a new Handler.
func NewHandler(log *slog.Logger, nearby NearbyFinder, forwarder Forwarder, fuser Fuser, prober HealthProber) *Handler {
	return &Handler{log: log, nearby: nearby, forwarder: forwarder, fuser: fuser, prober: prober}
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body exceeds %d bytes", models.ErrInvalidArgument, maxErr.Limit)
		}
		return fmt.Errorf("%w: invalid request body: %w", models.ErrInvalidArgument, err)
	}

	return validateStruct(dst)
}

// Nearby handles POST /nearby.
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	var req NearbyRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	var (
		results []models.ProximityResult
		err     error
	)
	if req.Coordinate != nil {
		results, err = h.nearby.FindNearby(r.Context(), req.query())
	} else {
		results, err = h.nearby.FindNearbyAddress(r.Context(), req.Address, req.query())
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, results)
}

// Analyze handles POST /analyze/{modality}. Downstream failures are reported inside a 200 response.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	modality, ok := models.ParseModality(chi.URLParam(r, "modality"))
	if !ok {
		h.respondError(w, r, fmt.Errorf("%w: unknown modality %q", models.ErrInvalidArgument, chi.URLParam(r, "modality")))
		return
	}

	var body AnalyzeRequest
	if err := decode(r, &body); err != nil {
		h.respondError(w, r, err)
		return
	}

	req, err := toAnalysisRequest(modality, body.UserID, body.Payload)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, h.forwarder.Forward(r.Context(), req))
}

// Fusion handles POST /analyze/fusion.
func (h *Handler) Fusion(w http.ResponseWriter, r *http.Request) {
	var body FusionRequest
	if err := decode(r, &body); err != nil {
		h.respondError(w, r, err)
		return
	}

	req, err := body.toFusionRequest()
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.fuser.Fuse(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, result)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusOK, h.prober.Probe(r.Context()))
}
