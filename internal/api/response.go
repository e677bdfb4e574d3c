package api

import (
	"encoding/json"
	"net/http"
)

// Response is the body returned by every mutating route
type Response struct {
	Error   bool   `json:"error"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is the body of /status
type StatusResponse struct {
	CurrentMode string `json:"current_mode"`
	TargetMode  string `json:"target_mode"`
	Tripped     bool   `json:"tripped"`
	Arming      bool   `json:"arming"`
	Paused      bool   `json:"paused"`
	ArmingDelay bool   `json:"arming_delay"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // connection may already be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, Response{Error: false})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Error: true, Message: message})
}
