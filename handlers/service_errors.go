package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/services"
	"github.com/upb/rag-pipeline/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Client errors carry
// their message; every server-side failure gets a generic message and the
// detail goes to the log only.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var (
		status  int
		message string
		details map[string]interface{}
	)

	// Map error type to HTTP status and response
	switch services.GetErrorType(err) {
	case services.ErrorTypeInvalidArgument:
		status = http.StatusBadRequest
		message = domainMessage(err)
		details = services.GetErrorDetails(err)

	case services.ErrorTypeUnavailable:
		status = http.StatusServiceUnavailable
		message = "Service is temporarily unavailable"
		logger.Warn("service unavailable", zap.Error(err))

	case services.ErrorTypeGenerationTimeout:
		status = http.StatusGatewayTimeout
		message = "Answer generation timed out"
		logger.Warn("generation timed out", zap.Error(err))

	case services.ErrorTypeEmbeddingFailure, services.ErrorTypeGenerationFailure:
		// Model backend failures are mapped to 502 Bad Gateway
		status = http.StatusBadGateway
		message = "A model backend failed to respond"
		logger.Error("model backend failure", zap.Error(err))

	case services.ErrorTypeDimensionMismatch, services.ErrorTypeIndexOutOfRange, services.ErrorTypeInternal:
		// Log internal errors but return generic message
		status = http.StatusInternalServerError
		message = "An internal error occurred"
		logger.Error("internal server error", zap.Error(err))

	default:
		// Unknown error type - log and return internal error
		status = http.StatusInternalServerError
		message = "An unexpected error occurred"
		logger.Error("unhandled error type", zap.Error(err))
	}

	var writeErr error
	if status == http.StatusInternalServerError {
		writeErr = utils.WriteInternalServerError(w, message)
	} else {
		writeErr = utils.WriteError(w, status, message, details)
	}
	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	// Generic validation error
	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

func domainMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
