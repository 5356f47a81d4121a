package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		payload      any
		expectedBody string
	}{
		{name: "Object payload", status: http.StatusOK, payload: map[string]int{"id": 1}, expectedBody: `{"id":1}`},
		{name: "No content", status: http.StatusNoContent, payload: map[string]int{"id": 1}, expectedBody: ``},
		{name: "Nil payload", status: http.StatusAccepted, payload: nil, expectedBody: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithJSON(w, tt.status, tt.payload)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			if tt.expectedBody == "" {
				assert.Empty(t, w.Body.String())
			} else {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestRespondWithCode(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithCode(w, http.StatusConflict, "AlreadyReleased", "escrow already released")

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, Response{Code: "AlreadyReleased", Message: "escrow already released"}, resp)
}
