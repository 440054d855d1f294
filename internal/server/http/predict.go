package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vagangabrain/Optimised-jess/internal/imaging"
	"github.com/vagangabrain/Optimised-jess/internal/predict"
)

type (
	PredictRequestDTO struct {
		URL string `json:"url" minLength:"1" format:"uri"`
	}

	PredictResponseDTO struct {
		Name       string `json:"name"`
		Confidence string `json:"confidence"`
	}
)

type (
	PredictInput struct {
		Body PredictRequestDTO
	}

	PredictOutput struct {
		Body PredictResponseDTO
	}
)

// PredictHandler handles HTTP requests for the prediction pipeline.
type PredictHandler struct {
	predictor *predict.Predictor
}

// NewPredictHandler creates a new PredictHandler instance.
func NewPredictHandler(api huma.API, predictor *predict.Predictor) *PredictHandler {
	h := &PredictHandler{predictor: predictor}

	huma.Register(api, huma.Operation{
		OperationID:   "predict",
		Method:        "POST",
		Path:          "/predict",
		Summary:       "Classify the image at a URL",
		Tags:          []string{"predict"},
		DefaultStatus: http.StatusOK,
	}, h.handlePredict)

	return h
}

// handlePredict handles the predict operation.
func (h *PredictHandler) handlePredict(ctx context.Context, input *PredictInput) (*PredictOutput, error) {
	name, confidence, err := h.predictor.Predict(ctx, input.Body.URL)
	if err != nil {
		// Expired attachment URLs are routine, not server faults.
		if imaging.IsNotFound(err) {
			return nil, huma.Error404NotFound("image not accessible", err)
		}
		return nil, huma.Error500InternalServerError("prediction failed", err)
	}

	return &PredictOutput{
		Body: PredictResponseDTO{Name: name, Confidence: confidence},
	}, nil
}
