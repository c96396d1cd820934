package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

// maxResponseBytes bounds the body read from an analysis service.
const maxResponseBytes = 1 << 20

// BreakerSettings configures the circuit breaker in front of one analysis service.
type BreakerSettings struct {
	MinRequests  uint32        // MinRequests observed in Interval before the breaker may trip.
	FailureRatio float64       // FailureRatio at or above which the breaker opens.
	Interval     time.Duration // Interval after which closed-state counts are reset.
	OpenTimeout  time.Duration // OpenTimeout before an open breaker lets a probe request through.
}

// Client calls one analysis service over HTTP.
type Client struct {
	modality   models.Modality
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[models.AnalysisResult]
	metrics    *metrics.Metrics
	log        *slog.Logger
}

type analyzeResponse struct {
	Label    string         `json:"label"`
	Score    *float64       `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewClient creates a Client for modality rooted at baseURL.
// httpClient should not carry its own timeout; callers bound every call through the context.
func NewClient(
	modality models.Modality,
	baseURL string,
	httpClient *http.Client,
	settings BreakerSettings,
	appMetrics *metrics.Metrics,
	log *slog.Logger,
) *Client {
	client := &Client{
		modality:   modality,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		metrics:    appMetrics,
		log:        log.With("modality", string(modality)),
	}

	name := string(modality)
	appMetrics.BreakerState.WithLabelValues(name).Set(0)

	client.breaker = gobreaker.NewCircuitBreaker[models.AnalysisResult](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			client.log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
			appMetrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
		IsSuccessful: func(err error) bool {
			return !countsAgainstBreaker(err)
		},
	})

	return client
}

// Modality returns the modality served by the client.
func (c *Client) Modality() models.Modality {
	return c.modality
}

// Analyze sends req to the analysis service and decodes a live result.
// Errors wrap one of ErrTimeout, ErrUnreachable, ErrBadStatus, ErrMalformedResponse or ErrCircuitOpen.
func (c *Client) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	result, err := c.breaker.Execute(func() (models.AnalysisResult, error) {
		return c.analyze(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.AnalysisResult{}, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}

	return result, err
}

func (c *Client) analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	body, contentType, err := c.encode(req)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: failed to encode %s request: %w", ErrUnreachable, c.modality, err)
	}

	url := c.baseURL + "/analyze/" + string(c.modality)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: failed to create request: %w", ErrUnreachable, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %w", classifyTransportError(err), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: failed to read response: %w", classifyTransportError(err), err)
	}

	if !isSuccessStatus(resp.StatusCode) {
		return models.AnalysisResult{}, &StatusError{Code: resp.StatusCode}
	}

	var decoded analyzeResponse
	if err = json.Unmarshal(payload, &decoded); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(decoded.Label) == "" {
		return models.AnalysisResult{}, fmt.Errorf("%w: empty label", ErrMalformedResponse)
	}
	if decoded.Score == nil || *decoded.Score < 0 || *decoded.Score > 1 {
		return models.AnalysisResult{}, fmt.Errorf("%w: score missing or outside [0, 1]", ErrMalformedResponse)
	}

	return models.AnalysisResult{
		Modality: c.modality,
		Label:    decoded.Label,
		Score:    *decoded.Score,
		Metadata: decoded.Metadata,
		State:    models.StateSucceeded,
	}, nil
}

// encode builds the request body: JSON for text and face, multipart for voice.
func (c *Client) encode(req models.AnalysisRequest) (io.Reader, string, error) {
	switch c.modality {
	case models.ModalityText:
		buf, err := json.Marshal(map[string]string{"text": req.Text, "user_id": req.UserID})
		return bytes.NewReader(buf), "application/json", err
	case models.ModalityFace:
		buf, err := json.Marshal(map[string]string{
			"image":   base64.StdEncoding.EncodeToString(req.Blob),
			"user_id": req.UserID,
		})
		return bytes.NewReader(buf), "application/json", err
	case models.ModalityVoice:
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		if err := writer.WriteField("user_id", req.UserID); err != nil {
			return nil, "", err
		}
		part, err := writer.CreateFormFile("audio_file", "audio.wav")
		if err != nil {
			return nil, "", err
		}
		if _, err = part.Write(req.Blob); err != nil {
			return nil, "", err
		}
		if err = writer.Close(); err != nil {
			return nil, "", err
		}
		return &buf, writer.FormDataContentType(), nil
	default:
		return nil, "", fmt.Errorf("unknown modality %q", c.modality)
	}
}

// Health reports whether the service answers GET /health with a 2xx status.
// It bypasses the circuit breaker.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", ErrUnreachable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", classifyTransportError(err), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if !isSuccessStatus(resp.StatusCode) {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
