package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"query": "query is required"}
	require.NoError(t, WriteBadRequest(w, "Validation failed", details))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "bad_request", response.Error)
	assert.Equal(t, "Validation failed", response.Message)
	assert.Equal(t, "query is required", response.Details["query"])
}

func TestWriteNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteNotFound(w, ""))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Resource not found", response.Message)
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteInternalServerError(w, ""))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", response.Error)
	assert.Equal(t, "Internal server error", response.Message)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		status    int
		errorType string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusNotFound, "not_found"},
		{http.StatusMethodNotAllowed, "method_not_allowed"},
		{http.StatusBadGateway, "bad_gateway"},
		{http.StatusServiceUnavailable, "service_unavailable"},
		{http.StatusGatewayTimeout, "gateway_timeout"},
		{http.StatusInternalServerError, "internal_error"},
		{http.StatusTeapot, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteError(w, tt.status, "message", nil))

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.errorType, response.Error)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Query string `json:"query"`
	}

	tests := []struct {
		name    string
		payload string
		want    string
		wantErr string
	}{
		{"valid object", `{"query":"What is clustering?"}`, "What is clustering?", ""},
		{"empty body", ``, "", "empty"},
		{"malformed", `{"query":`, "", "invalid JSON"},
		{"wrong type", `{"query":42}`, "", "invalid JSON"},
		{"trailing object", `{"query":"a"}{"query":"b"}`, "", "single JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/rag", strings.NewReader(tt.payload))
			var got body
			err := DecodeJSON(r, &got)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Query)
		})
	}
}
