package geocoding_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestNominatimProvider_Geocode(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()
	unlimited := rate.NewLimiter(rate.Inf, 0)

	t.Run("successful geocoding", func(t *testing.T) {
		client := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, http.MethodGet, req.Method)
				assert.Equal(t, "Bandra West, Mumbai", req.URL.Query().Get("q"))
				assert.Equal(t, "json", req.URL.Query().Get("format"))
				assert.Equal(t, "1", req.URL.Query().Get("limit"))
				assert.Contains(t, req.Header.Get("User-Agent"), "Hermes")
				return jsonResponse(http.StatusOK, `[{"lat":"19.0596","lon":"72.8295"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(client, geocoding.NominatimBaseURL, unlimited, logger)
		coords, err := provider.Geocode(ctx, "Bandra West, Mumbai")

		require.NoError(t, err)
		assert.InEpsilon(t, 19.0596, coords.Latitude, 0.0001)
		assert.InEpsilon(t, 72.8295, coords.Longitude, 0.0001)
	})

	t.Run("empty response", func(t *testing.T) {
		client := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(client, geocoding.NominatimBaseURL, unlimited, logger)
		coords, err := provider.Geocode(ctx, "nowhere")

		assert.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrNoResult)
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		client := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[{"lat":"abc","lon":"72.8"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(client, geocoding.NominatimBaseURL, unlimited, logger)
		_, err := provider.Geocode(ctx, "somewhere")

		require.ErrorIs(t, err, geocoding.ErrInvalidCoords)
	})

	t.Run("out of range coordinates", func(t *testing.T) {
		client := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[{"lat":"123.4","lon":"72.8"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(client, geocoding.NominatimBaseURL, unlimited, logger)
		_, err := provider.Geocode(ctx, "somewhere")

		require.ErrorIs(t, err, geocoding.ErrInvalidCoords)
	})

	t.Run("api error status", func(t *testing.T) {
		client := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, `slow down`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(client, geocoding.NominatimBaseURL, unlimited, logger)
		_, err := provider.Geocode(ctx, "somewhere")

		require.ErrorContains(t, err, "status 429")
	})

	t.Run("transport error", func(t *testing.T) {
		client := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, errors.New("dial tcp: connection refused")
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(client, geocoding.NominatimBaseURL, unlimited, logger)
		_, err := provider.Geocode(ctx, "somewhere")

		require.ErrorContains(t, err, "failed to execute geocoding request")
	})

	t.Run("rate limit exceeded", func(t *testing.T) {
		rateCtx, cancel := context.WithCancel(context.Background())
		cancel()
		client := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("HTTP client should not be called when rate limit blocks")
				return nil, nil
			},
		}

		limiter := rate.NewLimiter(rate.Every(time.Second), 1)
		provider := geocoding.NewNominatimProviderWithClient(client, geocoding.NominatimBaseURL, limiter, logger)
		_, err := provider.Geocode(rateCtx, "somewhere")

		require.ErrorContains(t, err, "rate limit exceeded")
	})

	t.Run("empty address", func(t *testing.T) {
		client := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("HTTP client should not be called for an empty address")
				return nil, nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(client, geocoding.NominatimBaseURL, unlimited, logger)
		_, err := provider.Geocode(ctx, "")

		require.ErrorIs(t, err, geocoding.ErrEmptyAddress)
	})
}
