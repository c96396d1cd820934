package geocoding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// NominatimBaseURL is the public OpenStreetMap search endpoint.
const NominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// nominatimUserAgent is required by the Nominatim usage policy.
const nominatimUserAgent = "Hermes-Specialist-Lookup/1.0 (https://github.com/UnknownOlympus/hermes)"

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// The public instance allows one request per second, so every call waits on a limiter.
type NominatimProvider struct {
	client  HTTPClient
	baseURL string
	log     *slog.Logger
	limiter *rate.Limiter
}

type nominatimResponse struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// NewNominatimProvider creates a provider against the public endpoint limited to one request per second.
func NewNominatimProvider(log *slog.Logger) *NominatimProvider {
	const timeout = 10 * time.Second

	return NewNominatimProviderWithClient(
		&http.Client{Timeout: timeout},
		NominatimBaseURL,
		rate.NewLimiter(rate.Every(time.Second), 1),
		log,
	)
}

// NewNominatimProviderWithClient allows injecting a custom HTTP client, endpoint and limiter.
func NewNominatimProviderWithClient(
	client HTTPClient,
	baseURL string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *NominatimProvider {
	return &NominatimProvider{client: client, baseURL: baseURL, log: log, limiter: limiter}
}

// Geocode converts an address to coordinates using the first Nominatim match.
func (np *NominatimProvider) Geocode(ctx context.Context, address string) (*models.Coordinate, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrEmptyAddress
	}

	if err := np.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	query := reqURL.Query()
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")
	reqURL.RawQuery = query.Encode()

	np.log.DebugContext(ctx, "Geocoding using Nominatim", "address", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("nominatim API returned status %d", resp.StatusCode)
	}

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNoResult
	}

	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return nil, ErrInvalidCoords
	}

	coords := &models.Coordinate{Latitude: lat, Longitude: lon}
	if err = coords.Validate(); err != nil {
		return nil, ErrInvalidCoords
	}

	return coords, nil
}
