package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/msggate/msggate/internal/credential"
	"github.com/msggate/msggate/internal/event"
	"github.com/msggate/msggate/internal/logging"
	"github.com/msggate/msggate/internal/transport"
)

// State is the readiness phase of the logical session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingPairing
	StateReady
)

// String returns a human-readable name for logging and events.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingPairing:
		return "awaiting-pairing"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

// Status is a read-only snapshot of the manager's state.
type Status struct {
	State            State
	Ready            bool
	PendingChallenge bool
	TransportID      string
}

// Presenter receives a pairing challenge to show to the user (terminal QR,
// image generation, push notification). Called from its own goroutine; the
// manager never renders anything itself.
type Presenter func(challenge string)

// Timing defaults. Reconnects after a close start at five seconds;
// establishment errors raised before any event (credential load, dial)
// retry on a slower ten-second schedule.
const (
	DefaultReconnectInterval    = 5 * time.Second
	DefaultReconnectMaxInterval = 80 * time.Second
	DefaultDialRetryInterval    = 10 * time.Second
	DefaultDialRetryMaxInterval = 2 * time.Minute

	// DefaultFailureWarnThreshold is the consecutive-failure count past
	// which the manager escalates its log level. Retrying continues
	// regardless: failures are expected to be transient.
	DefaultFailureWarnThreshold = 12

	challengePollInterval = 250 * time.Millisecond
)

// ErrStopped is returned by waits after the manager has been stopped.
var ErrStopped = errors.New("gateway manager stopped")

// Config holds the manager's collaborators and tuning knobs.
type Config struct {
	// SessionID keys the persisted credential record.
	SessionID string
	// Dialer establishes transport sessions.
	Dialer transport.Dialer
	// Credentials persists authentication material across restarts.
	Credentials *credential.Store
	// Bus receives lifecycle events. Optional; a private bus is created
	// when nil.
	Bus *event.Bus
	// Presenter is invoked with each new pairing challenge. Optional.
	Presenter Presenter
	// Policy maps close reasons to reconnect/terminal. Nil means
	// DefaultClosePolicy.
	Policy ClosePolicy

	// Zero values fall back to the Default* constants above.
	ReconnectInterval    time.Duration
	ReconnectMaxInterval time.Duration
	DialRetryInterval    time.Duration
	DialRetryMaxInterval time.Duration
	FailureWarnThreshold int
}

// Manager owns the single logical gateway session.
type Manager struct {
	cfg    Config
	policy ClosePolicy
	bus    *event.Bus
	log    zerolog.Logger

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	state        State
	challenge    string
	active       transport.Session
	connecting   bool
	failures     int
	closeBackoff backoff.BackOff
	dialBackoff  backoff.BackOff
	timer        *time.Timer
	stopped      bool
	started      bool
}

// New creates a Manager. Start must be called to begin connecting.
func New(cfg Config) (*Manager, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("gateway: session id is required")
	}
	if cfg.Dialer == nil {
		return nil, errors.New("gateway: dialer is required")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("gateway: credential store is required")
	}

	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.ReconnectMaxInterval <= 0 {
		cfg.ReconnectMaxInterval = DefaultReconnectMaxInterval
	}
	if cfg.DialRetryInterval <= 0 {
		cfg.DialRetryInterval = DefaultDialRetryInterval
	}
	if cfg.DialRetryMaxInterval <= 0 {
		cfg.DialRetryMaxInterval = DefaultDialRetryMaxInterval
	}
	if cfg.FailureWarnThreshold <= 0 {
		cfg.FailureWarnThreshold = DefaultFailureWarnThreshold
	}

	policy := cfg.Policy
	if policy == nil {
		policy = DefaultClosePolicy()
	}
	bus := cfg.Bus
	if bus == nil {
		bus = event.NewBus()
	}

	return &Manager{
		cfg:          cfg,
		policy:       policy,
		bus:          bus,
		log:          logging.Component("gateway").With().Str("session", cfg.SessionID).Logger(),
		closeBackoff: newBackoff(cfg.ReconnectInterval, cfg.ReconnectMaxInterval),
		dialBackoff:  newBackoff(cfg.DialRetryInterval, cfg.DialRetryMaxInterval),
	}, nil
}

// newBackoff builds a capped, jittered exponential schedule that never
// gives up on its own.
func newBackoff(initial, max time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return b
}

// Start begins the first connection attempt. The provided context bounds
// the manager's lifetime; Stop also ends it.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("gateway: already started")
	}
	m.started = true
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.log.Info().Msg("starting gateway session")
	m.maybeConnect()
	return nil
}

// Stop tears down the manager: cancels scheduled reconnects, closes the
// active transport, and waits for internal goroutines to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped || !m.started {
		m.stopped = true
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	active := m.active
	m.active = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	m.cancel()
	if active != nil {
		_ = active.Close()
	}
	m.wg.Wait()
	m.log.Info().Msg("gateway session stopped")
}

// Status returns a snapshot of the current lifecycle state. Never blocks on
// network I/O.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:            m.state,
		Ready:            m.state == StateReady,
		PendingChallenge: m.challenge != "",
	}
	if m.active != nil {
		st.TransportID = m.active.ID()
	}
	return st
}

// IsReady reports whether the session is open and usable.
func (m *Manager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReady
}

// ActiveSession returns the current transport session when the manager is
// Ready. The second return is false otherwise.
func (m *Manager) ActiveSession() (transport.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady || m.active == nil {
		return nil, false
	}
	return m.active, true
}

// Challenge returns the pending pairing challenge, if any.
func (m *Manager) Challenge() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.challenge, m.challenge != ""
}

// WaitForChallenge polls until a pairing challenge is pending or the
// context expires. Callers bound the wait with their context (the pairing
// endpoint uses a 20-second window).
func (m *Manager) WaitForChallenge(ctx context.Context) (string, error) {
	ticker := time.NewTicker(challengePollInterval)
	defer ticker.Stop()

	for {
		if challenge, ok := m.Challenge(); ok {
			return challenge, nil
		}
		m.mu.Lock()
		stopped := m.stopped
		m.mu.Unlock()
		if stopped {
			return "", ErrStopped
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// Reconnect forces a fresh connection attempt, superseding any active
// session. This is the explicit re-pairing entry point: after a terminal
// logout the credential record is gone, so the new dial starts a pairing
// exchange.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.stopped || !m.started || m.connecting {
		m.mu.Unlock()
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	old := m.active
	m.active = nil
	m.challenge = ""
	m.state = StateDisconnected
	m.mu.Unlock()

	if old != nil {
		// Old instance events are discarded by the identity guard once
		// active is cleared.
		_ = old.Close()
	}
	m.maybeConnect()
}

// maybeConnect starts a connection-establishment sequence unless one is
// already in flight or a session is already active. Idempotent re-entry
// guard: concurrent reconnect requests converge to a single attempt.
func (m *Manager) maybeConnect() {
	m.mu.Lock()
	if m.stopped || m.connecting || m.active != nil {
		m.mu.Unlock()
		return
	}
	m.connecting = true
	m.state = StateConnecting
	m.publishLocked(event.SessionConnecting, event.StateChangedData{State: m.state.String()})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.establish()
}

// establish loads credentials and dials a new transport session. Runs in
// its own goroutine; failures schedule a retry on the dial backoff.
func (m *Manager) establish() {
	defer m.wg.Done()

	creds, err := m.cfg.Credentials.Load(m.runCtx, m.cfg.SessionID)
	if err != nil {
		m.establishFailed(fmt.Errorf("load credentials: %w", err))
		return
	}
	if creds == nil {
		m.log.Info().Msg("no stored credentials, starting fresh pairing session")
	}

	sess, err := m.cfg.Dialer.Dial(m.runCtx, creds)
	if err != nil {
		m.establishFailed(fmt.Errorf("dial gateway: %w", err))
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = sess.Close()
		return
	}
	m.active = sess
	m.connecting = false
	m.dialBackoff.Reset()
	m.mu.Unlock()

	m.log.Debug().Str("transport", sess.ID()).Msg("transport session established")

	m.wg.Add(1)
	go m.eventLoop(sess)
}

// establishFailed records a pre-event failure and schedules a slower retry.
func (m *Manager) establishFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connecting = false
	m.state = StateDisconnected
	m.publishLocked(event.SessionDisconnected, event.StateChangedData{State: m.state.String(), Reason: err.Error()})
	if m.stopped {
		return
	}

	m.failures++
	delay := m.dialBackoff.NextBackOff()
	m.logFailure(err, delay)
	m.scheduleReconnectLocked(delay)
}

// eventLoop consumes one session's ordered event stream until it closes.
func (m *Manager) eventLoop(sess transport.Session) {
	defer m.wg.Done()
	for ev := range sess.Events() {
		m.handleEvent(sess, ev)
	}
}

// handleEvent applies a single transport event to the state machine.
// Events from a superseded instance are dropped here: the guard compares
// instance identity, not just the readiness flag, so a stale "open" cannot
// mark a new session ready and a stale "close" cannot tear one down.
func (m *Manager) handleEvent(sess transport.Session, ev transport.Event) {
	m.mu.Lock()

	if m.active == nil || m.active.ID() != sess.ID() {
		m.mu.Unlock()
		m.log.Debug().
			Str("transport", sess.ID()).
			Str("event", ev.Kind.String()).
			Msg("ignoring event from superseded transport")
		return
	}

	switch ev.Kind {
	case transport.KindConnecting:
		m.state = StateConnecting
		m.publishLocked(event.SessionConnecting, event.StateChangedData{State: m.state.String(), TransportID: sess.ID()})
		m.mu.Unlock()

	case transport.KindOpen:
		m.state = StateReady
		m.challenge = ""
		m.failures = 0
		m.closeBackoff.Reset()
		m.publishLocked(event.SessionReady, event.StateChangedData{State: m.state.String(), TransportID: sess.ID()})
		m.mu.Unlock()
		m.log.Info().Str("transport", sess.ID()).Msg("gateway session ready")

	case transport.KindPairingChallenge:
		m.state = StateAwaitingPairing
		m.challenge = ev.Challenge
		m.publishLocked(event.SessionPairing, event.PairingData{Challenge: ev.Challenge})
		presenter := m.cfg.Presenter
		m.mu.Unlock()

		m.log.Info().Msg("pairing challenge received, awaiting device authorization")
		if presenter != nil {
			go presenter(ev.Challenge)
		}

	case transport.KindCredentialsChanged:
		blob := ev.Credentials
		m.mu.Unlock()

		// Persisted off the event loop so a slow store cannot stall
		// event handling.
		m.wg.Add(1)
		go m.persistCredentials(blob)

	case transport.KindClosed:
		m.handleClosedLocked(sess, ev.Reason)

	default:
		m.mu.Unlock()
	}
}

// handleClosedLocked applies the close policy. Called with the mutex held;
// releases it.
func (m *Manager) handleClosedLocked(sess transport.Session, reason transport.CloseReason) {
	m.active = nil
	m.state = StateDisconnected
	action := m.policy.Decide(reason)

	if action == ActionTerminal {
		m.challenge = ""
		m.publishLocked(event.SessionTerminated, event.StateChangedData{
			State:       m.state.String(),
			TransportID: sess.ID(),
			Reason:      reason.String(),
		})
		m.mu.Unlock()

		m.log.Warn().
			Str("reason", reason.String()).
			Msg("session terminated by gateway, purging credentials")
		_ = sess.Close()
		m.purgeCredentials()
		return
	}

	m.failures++
	delay := m.closeBackoff.NextBackOff()
	m.publishLocked(event.SessionDisconnected, event.StateChangedData{
		State:       m.state.String(),
		TransportID: sess.ID(),
		Reason:      reason.String(),
	})
	if !m.stopped {
		m.logFailure(fmt.Errorf("session closed: %s", reason), delay)
		m.scheduleReconnectLocked(delay)
	}
	m.mu.Unlock()

	_ = sess.Close()
}

// scheduleReconnectLocked arms the reconnect timer. A timer already armed
// is left alone. Caller holds the mutex.
func (m *Manager) scheduleReconnectLocked(delay time.Duration) {
	if m.stopped || m.timer != nil {
		return
	}
	m.timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.timer = nil
		m.mu.Unlock()
		if m.runCtx.Err() != nil {
			return
		}
		m.maybeConnect()
	})
}

// logFailure reports a connection failure, escalating once the consecutive
// count passes the threshold.
func (m *Manager) logFailure(err error, delay time.Duration) {
	evt := m.log.Warn()
	if m.failures > m.cfg.FailureWarnThreshold {
		evt = m.log.Error()
	}
	evt.Err(err).
		Int("consecutiveFailures", m.failures).
		Dur("retryIn", delay).
		Msg("gateway connection failed, will retry")
}

// persistCredentials writes rotated credential material best-effort. Runs
// detached from the run context so a shutdown does not drop the latest
// material; a failed write is logged, never fatal.
func (m *Manager) persistCredentials(blob []byte) {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.cfg.Credentials.Save(ctx, m.cfg.SessionID, blob)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to persist rotated credentials")
	}
	m.bus.Publish(event.Event{
		Type: event.CredentialsRotated,
		Data: event.CredentialsRotatedData{SessionID: m.cfg.SessionID, Persisted: err == nil},
	})
}

// purgeCredentials deletes the stored record after a terminal close.
func (m *Manager) purgeCredentials() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.cfg.Credentials.Delete(ctx, m.cfg.SessionID); err != nil {
		m.log.Error().Err(err).Msg("failed to delete credentials after logout")
	}
}

// publishLocked emits a lifecycle event. Safe with the mutex held: the bus
// hands events to subscribers on their own goroutines.
func (m *Manager) publishLocked(t event.Type, data any) {
	m.bus.Publish(event.Event{Type: t, Data: data})
}
