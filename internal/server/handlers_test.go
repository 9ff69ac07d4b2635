package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msggate/msggate/internal/dispatch"
	"github.com/msggate/msggate/internal/event"
)

type stubSession struct {
	ready      bool
	challenge  string
	reconnects int
}

func (s *stubSession) IsReady() bool { return s.ready }

func (s *stubSession) Reconnect() { s.reconnects++ }

func (s *stubSession) WaitForChallenge(ctx context.Context) (string, error) {
	if s.challenge != "" {
		return s.challenge, nil
	}
	<-ctx.Done()
	return "", ctx.Err()
}

type stubSender struct {
	result        dispatch.Result
	lastRecipient string
	lastMessage   string
	calls         int
}

func (s *stubSender) Send(ctx context.Context, recipientRaw, message string) dispatch.Result {
	s.calls++
	s.lastRecipient = recipientRaw
	s.lastMessage = message
	return s.result
}

func newTestServer(session *stubSession, sender *stubSender, mutate func(*Config)) *Server {
	cfg := DefaultConfig()
	cfg.EnableCORS = false
	cfg.PairingWait = 30 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg, session, sender, event.NewBus())
}

func TestGetStatus(t *testing.T) {
	for _, ready := range []bool{true, false} {
		srv := newTestServer(&stubSession{ready: ready}, &stubSender{}, nil)

		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body statusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, ready, body.IsReady)
	}
}

func TestSendMessage_OutcomeStatusCodes(t *testing.T) {
	tests := []struct {
		outcome dispatch.Outcome
		status  int
		success bool
	}{
		{dispatch.Delivered, http.StatusOK, true},
		{dispatch.InvalidArgument, http.StatusBadRequest, false},
		{dispatch.InvalidRecipient, http.StatusBadRequest, false},
		{dispatch.NotReady, http.StatusServiceUnavailable, false},
		{dispatch.RecipientNotRegistered, http.StatusNotFound, false},
		{dispatch.DeliveryFailed, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			sender := &stubSender{result: dispatch.Result{Outcome: tt.outcome, Message: tt.outcome.String()}}
			srv := newTestServer(&stubSession{ready: true}, sender, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/send",
				strings.NewReader(`{"number":"512345678","message":"hello"}`))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)

			var body messageResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.success, body.Success)
			assert.NotEmpty(t, body.Message)
			assert.Equal(t, "512345678", sender.lastRecipient)
			assert.Equal(t, "hello", sender.lastMessage)
		})
	}
}

func TestSendMessage_MalformedBody(t *testing.T) {
	sender := &stubSender{}
	srv := newTestServer(&stubSession{ready: true}, sender, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, sender.calls, "dispatch called for malformed body")
}

func TestGetPairing_DisabledWithoutSecret(t *testing.T) {
	srv := newTestServer(&stubSession{challenge: "qr"}, &stubSender{}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pairing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPairing_RejectsBadSecret(t *testing.T) {
	srv := newTestServer(&stubSession{challenge: "qr"}, &stubSender{}, func(cfg *Config) {
		cfg.AdminSecret = "hunter2"
	})

	req := httptest.NewRequest(http.MethodGet, "/api/pairing", nil)
	req.Header.Set("X-Admin-Secret", "wrong")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetPairing_ReturnsChallenge(t *testing.T) {
	srv := newTestServer(&stubSession{challenge: "qr-payload"}, &stubSender{}, func(cfg *Config) {
		cfg.AdminSecret = "hunter2"
	})

	req := httptest.NewRequest(http.MethodGet, "/api/pairing", nil)
	req.Header.Set("X-Admin-Secret", "hunter2")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body pairingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "qr-payload", body.Challenge)
}

func TestGetPairing_BoundedWaitWhenNonePending(t *testing.T) {
	srv := newTestServer(&stubSession{}, &stubSender{}, func(cfg *Config) {
		cfg.AdminSecret = "hunter2"
		cfg.PairingWait = 20 * time.Millisecond
	})

	req := httptest.NewRequest(http.MethodGet, "/api/pairing", nil)
	req.Header.Set("X-Admin-Secret", "hunter2")
	rec := httptest.NewRecorder()

	start := time.Now()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Less(t, time.Since(start), time.Second, "pairing wait not bounded")
}

func TestPostReconnect(t *testing.T) {
	session := &stubSession{}
	srv := newTestServer(session, &stubSender{}, func(cfg *Config) {
		cfg.AdminSecret = "hunter2"
	})

	req := httptest.NewRequest(http.MethodPost, "/api/reconnect", nil)
	req.Header.Set("X-Admin-Secret", "hunter2")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, session.reconnects)
}

func TestPostReconnect_RequiresSecret(t *testing.T) {
	session := &stubSession{}
	srv := newTestServer(session, &stubSender{}, func(cfg *Config) {
		cfg.AdminSecret = "hunter2"
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reconnect", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, session.reconnects)
}

func TestStreamEvents_DeliversBusEvents(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	cfg := DefaultConfig()
	cfg.EnableCORS = false
	cfg.AdminSecret = "hunter2"
	srv := New(cfg, &stubSession{ready: true}, &stubSender{}, bus)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	req.Header.Set("X-Admin-Secret", "hunter2")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.Router().ServeHTTP(rec, req)
		close(done)
	}()

	// Give the handler time to subscribe, then publish and disconnect.
	time.Sleep(20 * time.Millisecond)
	bus.PublishSync(event.Event{Type: event.SessionReady, Data: event.StateChangedData{State: "ready"}})
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	body := rec.Body.String()
	assert.Contains(t, body, "event: session.ready")
	assert.Contains(t, body, `"state":"ready"`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestStreamEvents_RequiresSecret(t *testing.T) {
	srv := newTestServer(&stubSession{}, &stubSender{}, func(cfg *Config) {
		cfg.AdminSecret = "hunter2"
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
