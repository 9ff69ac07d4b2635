// Package transport defines the contract between the gateway manager and a
// concrete messaging-protocol implementation. The wire protocol itself is
// out of scope: implementations live outside this repository, and tests use
// scripted fakes.
package transport

import (
	"context"

	"github.com/msggate/msggate/internal/address"
)

// EventKind identifies a lifecycle event emitted by a Session.
type EventKind int

const (
	// KindConnecting reports that the session has begun its handshake.
	KindConnecting EventKind = iota
	// KindOpen reports that the session is established and usable.
	KindOpen
	// KindClosed reports that the session ended; Reason says why.
	KindClosed
	// KindCredentialsChanged carries rotated authentication material that
	// must be persisted to allow reconnection without re-pairing.
	KindCredentialsChanged
	// KindPairingChallenge carries a short-lived code to present to the
	// user to authorize a new device session.
	KindPairingChallenge
)

// String returns a human-readable name for logging.
func (k EventKind) String() string {
	switch k {
	case KindConnecting:
		return "connecting"
	case KindOpen:
		return "open"
	case KindClosed:
		return "closed"
	case KindCredentialsChanged:
		return "credentials-changed"
	case KindPairingChallenge:
		return "pairing-challenge"
	default:
		return "unknown"
	}
}

// CloseReason classifies why a session closed.
type CloseReason int

const (
	// ReasonUnknown covers closes the implementation could not classify.
	ReasonUnknown CloseReason = iota
	// ReasonLoggedOut means the remote party explicitly terminated the
	// session. Stored credentials are no longer valid.
	ReasonLoggedOut
	// ReasonConnectionLost is a transient network failure.
	ReasonConnectionLost
	// ReasonStreamError is a protocol-level stream failure.
	ReasonStreamError
	// ReasonServerRestart means the gateway asked clients to reconnect.
	ReasonServerRestart
	// ReasonConflict means another client took over the session slot.
	ReasonConflict
)

// String returns a human-readable name for logging.
func (r CloseReason) String() string {
	switch r {
	case ReasonLoggedOut:
		return "logged-out"
	case ReasonConnectionLost:
		return "connection-lost"
	case ReasonStreamError:
		return "stream-error"
	case ReasonServerRestart:
		return "server-restart"
	case ReasonConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Event is a single lifecycle event from a Session. Exactly one payload
// field is meaningful per kind: Reason for KindClosed, Credentials for
// KindCredentialsChanged, Challenge for KindPairingChallenge.
type Event struct {
	Kind        EventKind
	Reason      CloseReason
	Credentials []byte
	Challenge   string
}

// Session is a single live connection to the messaging gateway. Events are
// delivered in the order the transport emits them; the channel is closed
// when the session ends and no further events will follow.
type Session interface {
	// ID uniquely identifies this transport instance. The manager uses it
	// to discard events from superseded instances.
	ID() string

	// Events returns the session's ordered lifecycle event stream.
	Events() <-chan Event

	// IsRegistered reports whether the recipient exists on the gateway.
	IsRegistered(ctx context.Context, jid address.JID) (bool, error)

	// SendText dispatches a text message and returns the gateway-assigned
	// message ID.
	SendText(ctx context.Context, jid address.JID, text string) (string, error)

	// Close tears down the connection. Idempotent.
	Close() error
}

// Dialer establishes new sessions. creds is the opaque persisted
// authentication blob, or nil to start a fresh pairing exchange.
type Dialer interface {
	Dial(ctx context.Context, creds []byte) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, creds []byte) (Session, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, creds []byte) (Session, error) {
	return f(ctx, creds)
}
