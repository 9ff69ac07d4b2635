package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/msggate/msggate/internal/dispatch"
)

// sendRequest is the body of POST /api/send.
type sendRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

// getStatus reports session readiness. It reads a snapshot from the
// lifecycle manager and never touches the network.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Success: true, IsReady: s.session.IsReady()})
}

// sendMessage validates the request body and hands it to the dispatch
// service, mapping each outcome to its HTTP status.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "request body must be JSON with number and message")
		return
	}

	result := s.sender.Send(r.Context(), req.Number, req.Message)
	writeMessage(w, sendStatusCode(result.Outcome), result.Outcome == dispatch.Delivered, result.Message)
}

// sendStatusCode maps a dispatch outcome to an HTTP status.
func sendStatusCode(outcome dispatch.Outcome) int {
	switch outcome {
	case dispatch.Delivered:
		return http.StatusOK
	case dispatch.InvalidArgument, dispatch.InvalidRecipient:
		return http.StatusBadRequest
	case dispatch.NotReady:
		return http.StatusServiceUnavailable
	case dispatch.RecipientNotRegistered:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// getPairing waits up to the configured window for a pending pairing
// challenge and returns its payload for the caller to render.
func (s *Server) getPairing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.PairingWait)
	defer cancel()

	challenge, err := s.session.WaitForChallenge(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeMessage(w, http.StatusNotFound, false, "no pairing challenge pending")
			return
		}
		writeMessage(w, http.StatusInternalServerError, false, "pairing challenge unavailable")
		return
	}

	writeJSON(w, http.StatusOK, pairingResponse{Success: true, Challenge: challenge})
}

// postReconnect forces a fresh connection attempt. The lifecycle manager
// converges asynchronously; callers watch /api/status or /api/events.
func (s *Server) postReconnect(w http.ResponseWriter, r *http.Request) {
	s.session.Reconnect()
	writeMessage(w, http.StatusAccepted, true, "reconnect requested")
}

// requireAdmin gates administrative endpoints behind the shared secret.
// With no secret configured the endpoints do not exist.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminSecret == "" {
			writeMessage(w, http.StatusNotFound, false, "not found")
			return
		}
		given := r.Header.Get("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(given), []byte(s.config.AdminSecret)) != 1 {
			writeMessage(w, http.StatusUnauthorized, false, "invalid admin secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}
