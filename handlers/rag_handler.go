package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/app"
	"github.com/upb/rag-pipeline/middleware"
	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/services"
	"github.com/upb/rag-pipeline/utils"
)

// RAGRequest is the body of POST /rag
type RAGRequest struct {
	Query string `json:"query" validate:"required,notblank"`
	TopK  int    `json:"top_k,omitempty" validate:"gte=0"`
}

// RAGHandler answers a question with retrieval-augmented generation
func RAGHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := deps.Logger.With(zap.String("request_id", middleware.GetRequestID(r.Context())))

		if !deps.Fence.Ready() {
			HandleServiceError(w, services.ErrNotReady, logger)
			return
		}

		var req RAGRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			HandleValidationError(w, err, logger)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, logger)
			return
		}

		resp, err := deps.RAG.Answer(r.Context(), models.Query{Text: req.Query, TopK: req.TopK})
		if err != nil {
			HandleServiceError(w, err, logger)
			return
		}

		if err := utils.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write rag response", zap.Error(err))
		}
	}
}
