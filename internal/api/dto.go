package api

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NearbyRequest is the body of POST /nearby. Either Coordinate or Address must be set.
type NearbyRequest struct {
	Coordinate        *models.Coordinate `json:"coordinate" validate:"required_without=Address"`
	Address           string             `json:"address" validate:"required_without=Coordinate,max=512"`
	MaxDistanceMeters *int               `json:"maxDistanceMeters"`
	Limit             *int               `json:"limit"`
}

func (r NearbyRequest) query() models.NearbyQuery {
	q := models.NearbyQuery{MaxDistanceMeters: r.MaxDistanceMeters, Limit: r.Limit}
	if r.Coordinate != nil {
		q.Origin = *r.Coordinate
	}

	return q
}

// AnalyzeRequest is the body of POST /analyze/{modality}.
// Payload is plain text for the text modality and base64 for voice and face.
type AnalyzeRequest struct {
	UserID  string `json:"userId" validate:"required,max=128"`
	Payload string `json:"payload" validate:"required"`
}

// FusionRequest is the body of POST /analyze/fusion. At least one payload must be present.
type FusionRequest struct {
	UserID string  `json:"userId" validate:"required,max=128"`
	Text   *string `json:"text" validate:"required_without_all=Voice Face"`
	Voice  *string `json:"voice"`
	Face   *string `json:"face"`
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidArgument, err)
	}

	return nil
}

// toAnalysisRequest converts a modality payload into a request, decoding binary payloads.
func toAnalysisRequest(modality models.Modality, userID, payload string) (models.AnalysisRequest, error) {
	req := models.AnalysisRequest{Modality: modality, UserID: userID}
	if modality == models.ModalityText {
		if strings.TrimSpace(payload) == "" {
			return req, fmt.Errorf("%w: text payload must not be empty", models.ErrInvalidArgument)
		}
		req.Text = payload
		return req, nil
	}

	blob, err := decodeBlob(payload)
	if err != nil {
		return req, fmt.Errorf("%w: %s payload is not valid base64: %w", models.ErrInvalidArgument, modality, err)
	}
	if len(blob) == 0 {
		return req, fmt.Errorf("%w: %s payload must not be empty", models.ErrInvalidArgument, modality)
	}
	req.Blob = blob

	return req, nil
}

// decodeBlob decodes standard base64, accepting a data URL prefix such as "data:image/png;base64,".
func decodeBlob(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, ","); idx >= 0 {
			payload = payload[idx+1:]
		}
	}

	return base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
}

func (r FusionRequest) toFusionRequest() (models.FusionRequest, error) {
	fusion := models.FusionRequest{UserID: r.UserID}
	payloads := map[models.Modality]*string{
		models.ModalityText:  r.Text,
		models.ModalityVoice: r.Voice,
		models.ModalityFace:  r.Face,
	}

	for _, m := range models.Modalities {
		payload := payloads[m]
		if payload == nil {
			continue
		}
		req, err := toAnalysisRequest(m, r.UserID, *payload)
		if err != nil {
			return fusion, err
		}
		fusion.Requests = append(fusion.Requests, req)
	}

	return fusion, nil
}
