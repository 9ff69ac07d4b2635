// Package dispatch validates and submits outbound text messages through the
// active gateway session, translating failures into categorized outcomes.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/msggate/msggate/internal/address"
	"github.com/msggate/msggate/internal/event"
	"github.com/msggate/msggate/internal/logging"
	"github.com/msggate/msggate/internal/transport"
)

// Outcome categorizes the result of a send attempt.
type Outcome int

const (
	// Delivered means the transport accepted the message.
	Delivered Outcome = iota
	// InvalidArgument means the recipient or message was empty.
	InvalidArgument
	// InvalidRecipient means the recipient could not be normalized.
	InvalidRecipient
	// NotReady means the session is not open; no send was attempted.
	NotReady
	// RecipientNotRegistered means the gateway does not know the recipient.
	RecipientNotRegistered
	// DeliveryFailed means the transport rejected or failed the dispatch.
	DeliveryFailed
)

// String returns a stable name for logging.
func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case InvalidArgument:
		return "invalid-argument"
	case InvalidRecipient:
		return "invalid-recipient"
	case NotReady:
		return "not-ready"
	case RecipientNotRegistered:
		return "recipient-not-registered"
	case DeliveryFailed:
		return "delivery-failed"
	default:
		return "unknown"
	}
}

// Result is the typed outcome of a send. Err carries the underlying cause
// for DeliveryFailed; MessageID is set on Delivered.
type Result struct {
	Outcome   Outcome
	Message   string
	MessageID string
	Err       error
}

// SessionSource yields the active transport session when the lifecycle
// manager is Ready. *gateway.Manager satisfies this.
type SessionSource interface {
	ActiveSession() (transport.Session, bool)
}

// DefaultRequestTimeout bounds the existence check plus dispatch so a hung
// gateway call cannot block an HTTP handler indefinitely.
const DefaultRequestTimeout = 40 * time.Second

// Service is the message dispatch service.
type Service struct {
	sessions   SessionSource
	normalizer *address.Normalizer
	bus        *event.Bus
	timeout    time.Duration
	log        zerolog.Logger
}

// NewService creates a dispatch service. bus is optional; timeout <= 0
// falls back to DefaultRequestTimeout.
func NewService(sessions SessionSource, normalizer *address.Normalizer, bus *event.Bus, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Service{
		sessions:   sessions,
		normalizer: normalizer,
		bus:        bus,
		timeout:    timeout,
		log:        logging.Component("dispatch"),
	}
}

// Send validates the recipient and message, confirms readiness and
// recipient registration, and submits the message.
//
// The existence check and the dispatch are not atomic: a recipient can
// deregister between the two calls. That race surfaces as DeliveryFailed
// from the transport and is an accepted limitation.
func (s *Service) Send(ctx context.Context, recipientRaw, message string) Result {
	if recipientRaw == "" || message == "" {
		return Result{Outcome: InvalidArgument, Message: "recipient and message are required"}
	}

	sess, ok := s.sessions.ActiveSession()
	if !ok {
		return Result{Outcome: NotReady, Message: "gateway session is not ready"}
	}

	jid, ok := s.normalizer.Normalize(recipientRaw)
	if !ok {
		return Result{Outcome: InvalidRecipient, Message: "recipient is not a valid phone number"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	registered, err := sess.IsRegistered(ctx, jid)
	if err != nil || !registered {
		if err != nil {
			s.log.Warn().Err(err).Str("recipient", jid.User()).Msg("recipient existence check failed")
		}
		return Result{Outcome: RecipientNotRegistered, Message: "recipient is not registered on the gateway", Err: err}
	}

	msgID, err := sess.SendText(ctx, jid, message)
	if err != nil {
		s.log.Error().Err(err).Str("recipient", jid.User()).Msg("message dispatch failed")
		return Result{Outcome: DeliveryFailed, Message: "failed to deliver message", Err: err}
	}

	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type: event.MessageDelivered,
			Data: event.MessageDeliveredData{Recipient: jid.User(), MessageID: msgID},
		})
	}
	s.log.Debug().Str("recipient", jid.User()).Str("messageId", msgID).Msg("message delivered")

	return Result{Outcome: Delivered, Message: "message sent", MessageID: msgID}
}
