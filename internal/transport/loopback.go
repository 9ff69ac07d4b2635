package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/msggate/msggate/internal/address"
)

// loopbackPairingDelay is how long the loopback gateway waits before
// auto-approving a pairing challenge.
const loopbackPairingDelay = 2 * time.Second

func init() {
	Register("loopback", LoopbackDialer{})
}

// LoopbackDialer dials an in-process fake gateway. It exists so the server
// can run end to end without a real protocol implementation: pairing is
// auto-approved after a short delay, every valid recipient is registered,
// and sends succeed immediately.
type LoopbackDialer struct{}

// Dial implements Dialer.
func (LoopbackDialer) Dial(ctx context.Context, creds []byte) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &loopbackSession{
		id:     ulid.Make().String(),
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go s.run(creds)
	return s, nil
}

type loopbackSession struct {
	id     string
	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// run scripts the connection lifecycle: a fresh session goes through a
// pairing exchange and credential issuance, a restored one opens directly.
// Only this goroutine closes the event channel, once Close has signalled
// done, so emit can never race a close.
func (s *loopbackSession) run(creds []byte) {
	defer close(s.events)

	s.emit(Event{Kind: KindConnecting})

	if creds == nil {
		challenge := "loopback-pairing:" + ulid.Make().String()
		s.emit(Event{Kind: KindPairingChallenge, Challenge: challenge})

		select {
		case <-time.After(loopbackPairingDelay):
		case <-s.done:
			return
		}
		s.emit(Event{Kind: KindCredentialsChanged, Credentials: []byte("loopback-device:" + s.id)})
	}

	s.emit(Event{Kind: KindOpen})
	<-s.done
}

// emit delivers an event unless the session has been closed.
func (s *loopbackSession) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *loopbackSession) ID() string { return s.id }

func (s *loopbackSession) Events() <-chan Event { return s.events }

func (s *loopbackSession) IsRegistered(ctx context.Context, jid address.JID) (bool, error) {
	if s.isClosed() {
		return false, errors.New("loopback session closed")
	}
	return true, nil
}

func (s *loopbackSession) SendText(ctx context.Context, jid address.JID, text string) (string, error) {
	if s.isClosed() {
		return "", errors.New("loopback session closed")
	}
	return fmt.Sprintf("loopback-%s", ulid.Make()), nil
}

func (s *loopbackSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

func (s *loopbackSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
