package event

// StateChangedData is the payload for session.* lifecycle events.
type StateChangedData struct {
	// State is the readiness phase after the transition.
	State string `json:"state"`
	// TransportID identifies the transport instance the event came from.
	TransportID string `json:"transportId,omitempty"`
	// Reason carries the close reason for disconnected/terminated events.
	Reason string `json:"reason,omitempty"`
}

// PairingData is the payload for session.pairing events.
type PairingData struct {
	// Challenge is the opaque pairing payload to present to the user.
	Challenge string `json:"challenge"`
}

// CredentialsRotatedData is the payload for credentials.rotated events.
// The credential blob itself is not broadcast.
type CredentialsRotatedData struct {
	SessionID string `json:"sessionId"`
	Persisted bool   `json:"persisted"`
}

// MessageDeliveredData is the payload for message.delivered events.
type MessageDeliveredData struct {
	Recipient string `json:"recipient"`
	MessageID string `json:"messageId"`
}
