package gateway

import "github.com/msggate/msggate/internal/transport"

// CloseAction is what the manager does after a session closes.
type CloseAction int

const (
	// ActionReconnect schedules a reconnection attempt.
	ActionReconnect CloseAction = iota
	// ActionTerminal stops the session and purges stored credentials.
	// Recovery requires an explicit re-pairing request.
	ActionTerminal
)

// ClosePolicy maps close reasons to actions. Reasons absent from the map
// fall back to ActionReconnect, since unclassified failures are expected to
// be transient.
type ClosePolicy map[transport.CloseReason]CloseAction

// Decide returns the action for a close reason.
func (p ClosePolicy) Decide(reason transport.CloseReason) CloseAction {
	if action, ok := p[reason]; ok {
		return action
	}
	return ActionReconnect
}

// DefaultClosePolicy treats only an explicit logout as terminal. A hard
// conflict from a duplicate session still reconnects; operators who want
// conflicts to be terminal override the entry.
func DefaultClosePolicy() ClosePolicy {
	return ClosePolicy{
		transport.ReasonLoggedOut: ActionTerminal,
	}
}
