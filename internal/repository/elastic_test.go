package repository_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/repository"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTransport struct {
	roundTrip func(req *http.Request) (*http.Response, error)
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.roundTrip(req)
}

func esResponse(status int, body string) *http.Response {
	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")

	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func newElasticStore(t *testing.T, fn func(req *http.Request) (*http.Response, error)) *repository.ElasticStore {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: &mockTransport{roundTrip: fn},
	})
	require.NoError(t, err)

	return repository.NewElasticStore(client, "specialists", slog.Default())
}

func TestElasticStore_FindWithin(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	origin := models.Coordinate{Latitude: 19.0760, Longitude: 72.8777}

	t.Run("success - builds geo query and maps hits", func(t *testing.T) {
		t.Parallel()
		store := newElasticStore(t, func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "/specialists/_search", req.URL.Path)

			var query map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&query))
			assert.InDelta(t, 5, query["size"], 0)

			filter := query["query"].(map[string]any)["bool"].(map[string]any)["filter"].(map[string]any)
			geoDistance := filter["geo_distance"].(map[string]any)
			assert.Equal(t, "25000m", geoDistance["distance"])

			sort := query["sort"].([]any)[0].(map[string]any)["_geo_distance"].(map[string]any)
			assert.Equal(t, "asc", sort["order"])
			assert.Equal(t, "arc", sort["distance_type"])

			return esResponse(http.StatusOK, `{"hits":{"hits":[
				{"_id":"doc-1","_source":{"id":"sp-1","name":"Dr. Rao","specialization":"psychologist",
					"address":"Bandra","location":{"lat":19.0596,"lon":72.8295},"rating":4.6,
					"contact":"+91 3","availability":"Mon-Sat"}},
				{"_id":"doc-2","_source":{"name":"Dr. Iyer","location":{"lat":19.1136,"lon":72.8697},"rating":3.9}}
			]}}`), nil
		})

		specialists, err := store.FindWithin(ctx, origin, 25000, 5)

		require.NoError(t, err)
		require.Len(t, specialists, 2)
		assert.Equal(t, "sp-1", specialists[0].ID)
		assert.Equal(t, "psychologist", specialists[0].Specialization)
		assert.InEpsilon(t, 19.0596, specialists[0].Location.Latitude, 0.0001)
		assert.InEpsilon(t, 72.8295, specialists[0].Location.Longitude, 0.0001)
		assert.Equal(t, "doc-2", specialists[1].ID, "falls back to the document id")
	})

	t.Run("success - zero radius sends a positive distance", func(t *testing.T) {
		t.Parallel()
		store := newElasticStore(t, func(req *http.Request) (*http.Response, error) {
			var query map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&query))

			filter := query["query"].(map[string]any)["bool"].(map[string]any)["filter"].(map[string]any)
			distance := filter["geo_distance"].(map[string]any)["distance"]
			if distance == "0m" {
				return esResponse(http.StatusBadRequest,
					`{"error":{"type":"illegal_argument_exception","reason":"distance must be greater than zero"}}`), nil
			}
			assert.Equal(t, "1m", distance)

			return esResponse(http.StatusOK, `{"hits":{"hits":[]}}`), nil
		})

		specialists, err := store.FindWithin(ctx, origin, 0, 5)

		require.NoError(t, err)
		assert.Empty(t, specialists)
	})

	t.Run("error - transport failure is store unavailable", func(t *testing.T) {
		t.Parallel()
		store := newElasticStore(t, func(_ *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		specialists, err := store.FindWithin(ctx, origin, 25000, 5)

		require.Nil(t, specialists)
		require.ErrorIs(t, err, models.ErrStoreUnavailable)
	})

	t.Run("error - server error is store unavailable", func(t *testing.T) {
		t.Parallel()
		store := newElasticStore(t, func(_ *http.Request) (*http.Response, error) {
			return esResponse(http.StatusServiceUnavailable, `{"error":"cluster_block_exception"}`), nil
		})

		_, err := store.FindWithin(ctx, origin, 25000, 5)

		require.ErrorIs(t, err, models.ErrStoreUnavailable)
		assert.ErrorContains(t, err, "503")
	})

	t.Run("error - bad request is not retriable", func(t *testing.T) {
		t.Parallel()
		store := newElasticStore(t, func(_ *http.Request) (*http.Response, error) {
			return esResponse(http.StatusBadRequest, `{"error":"parsing_exception"}`), nil
		})

		_, err := store.FindWithin(ctx, origin, 25000, 5)

		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrStoreUnavailable)
		assert.ErrorContains(t, err, "parsing_exception")
	})

	t.Run("error - undecodable body", func(t *testing.T) {
		t.Parallel()
		store := newElasticStore(t, func(_ *http.Request) (*http.Response, error) {
			return esResponse(http.StatusOK, `{"hits":`), nil
		})

		_, err := store.FindWithin(ctx, origin, 25000, 5)

		require.ErrorContains(t, err, "failed to decode search response")
	})
}

func TestElasticStore_CreateIndex(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("index already exists", func(t *testing.T) {
		t.Parallel()
		calls := 0
		store := newElasticStore(t, func(req *http.Request) (*http.Response, error) {
			calls++
			assert.Equal(t, http.MethodHead, req.Method)
			return esResponse(http.StatusOK, ``), nil
		})

		require.NoError(t, store.CreateIndex(ctx))
		assert.Equal(t, 1, calls)
	})

	t.Run("index is created with mapping", func(t *testing.T) {
		t.Parallel()
		store := newElasticStore(t, func(req *http.Request) (*http.Response, error) {
			if req.Method == http.MethodHead {
				return esResponse(http.StatusNotFound, ``), nil
			}
			assert.Equal(t, http.MethodPut, req.Method)
			body, _ := io.ReadAll(req.Body)
			assert.True(t, strings.Contains(string(body), "geo_point"))
			return esResponse(http.StatusOK, `{"acknowledged":true}`), nil
		})

		require.NoError(t, store.CreateIndex(ctx))
	})

	t.Run("create fails", func(t *testing.T) {
		t.Parallel()
		store := newElasticStore(t, func(req *http.Request) (*http.Response, error) {
			if req.Method == http.MethodHead {
				return esResponse(http.StatusNotFound, ``), nil
			}
			return esResponse(http.StatusBadRequest, `{"error":"resource_already_exists_exception"}`), nil
		})

		err := store.CreateIndex(ctx)

		require.ErrorContains(t, err, "error creating index")
	})
}
