package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type Response struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusNoContent || payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("failed to write response", zap.Error(err))
	}
}

func RespondWithError(w http.ResponseWriter, status int, message string) {
	RespondWithJSON(w, status, Response{Message: message})
}

// RespondWithCode is RespondWithError with a machine-readable error code.
func RespondWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondWithJSON(w, status, Response{Code: code, Message: message})
}
