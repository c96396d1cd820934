package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/goccy/go-json"
)

// ElasticStore answers proximity queries from an Elasticsearch index whose "location"
// field is mapped as geo_point.
type ElasticStore struct {
	client *elasticsearch.Client
	index  string
	log    *slog.Logger
}

// IndexMapping is the mapping the specialists index is expected to have.
const IndexMapping = `{
  "mappings": {
    "properties": {
      "id":             {"type": "keyword"},
      "name":           {"type": "text"},
      "specialization": {"type": "keyword"},
      "address":        {"type": "text"},
      "location":       {"type": "geo_point"},
      "rating":         {"type": "float"},
      "contact":        {"type": "keyword"},
      "availability":   {"type": "text"}
    }
  }
}`

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type elasticSpecialist struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Specialization string   `json:"specialization"`
	Address        string   `json:"address"`
	Location       geoPoint `json:"location"`
	Rating         float64  `json:"rating"`
	Contact        string   `json:"contact"`
	Availability   string   `json:"availability"`
}

type elasticSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string            `json:"_id"`
			Source elasticSpecialist `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// NewElasticStore creates a store over the given client and index name.
func NewElasticStore(client *elasticsearch.Client, index string, log *slog.Logger) *ElasticStore {
	return &ElasticStore{client: client, index: index, log: log}
}

// CreateIndex creates the specialists index with IndexMapping if it does not exist yet.
func (es *ElasticStore) CreateIndex(ctx context.Context) error {
	res, err := es.client.Indices.Exists([]string{es.index}, es.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: failed to check index existence: %w", models.ErrStoreUnavailable, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = es.client.Indices.Create(
		es.index,
		es.client.Indices.Create.WithBody(bytes.NewReader([]byte(IndexMapping))),
		es.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to create index: %w", models.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("error creating index: status %d, body: %s", res.StatusCode, string(body))
	}

	return nil
}

const minSearchRadiusMeters = 1

// FindWithin runs a geo_distance filtered search sorted by arc distance from origin.
func (es *ElasticStore) FindWithin(
	ctx context.Context,
	origin models.Coordinate,
	radiusMeters, limit int,
) ([]models.Specialist, error) {
	point := geoPoint{Lat: origin.Latitude, Lon: origin.Longitude}
	// geo_distance rejects a zero distance; callers trim results to the exact radius.
	distance := max(radiusMeters, minSearchRadiusMeters)
	query := map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": map[string]any{
					"geo_distance": map[string]any{
						"distance": fmt.Sprintf("%dm", distance),
						"location": point,
					},
				},
			},
		},
		"sort": []map[string]any{
			{
				"_geo_distance": map[string]any{
					"location":      point,
					"order":         "asc",
					"unit":          "m",
					"distance_type": "arc",
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := es.client.Search(
		es.client.Search.WithContext(ctx),
		es.client.Search.WithIndex(es.index),
		es.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search specialists: %w", models.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: search returned status %d: %s",
				models.ErrStoreUnavailable, res.StatusCode, string(body))
		}
		return nil, fmt.Errorf("error searching specialists: status %d, body: %s", res.StatusCode, string(body))
	}

	var result elasticSearchResponse
	if err = json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	specialists := make([]models.Specialist, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		src := hit.Source
		if src.ID == "" {
			src.ID = hit.ID
		}
		specialists = append(specialists, models.Specialist{
			ID:             src.ID,
			Name:           src.Name,
			Specialization: src.Specialization,
			Address:        src.Address,
			Location:       models.Coordinate{Latitude: src.Location.Lat, Longitude: src.Location.Lon},
			Rating:         src.Rating,
			Contact:        src.Contact,
			Availability:   src.Availability,
		})
	}

	es.log.DebugContext(ctx, "Specialists found in index",
		"index", es.index, "count", len(specialists), "radius_m", radiusMeters)

	return specialists, nil
}

// Ping reports whether the cluster answers.
func (es *ElasticStore) Ping(ctx context.Context) error {
	res, err := es.client.Ping(es.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: failed to ping elasticsearch: %w", models.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: elasticsearch ping returned status %d", models.ErrStoreUnavailable, res.StatusCode)
	}

	return nil
}
