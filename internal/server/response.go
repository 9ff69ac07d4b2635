package server

import (
	"encoding/json"
	"net/http"
)

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Success bool `json:"success"`
	IsReady bool `json:"isReady"`
}

// messageResponse is the generic JSON envelope: a success flag and a
// human-readable message.
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// pairingResponse is the body of GET /api/pairing.
type pairingResponse struct {
	Success   bool   `json:"success"`
	Challenge string `json:"challenge"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeMessage writes the generic envelope.
func writeMessage(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, messageResponse{Success: success, Message: message})
}
