/*
Package gateway owns the lifecycle of the single logical connection to the
messaging gateway.

The Manager drives a small state machine (Disconnected, Connecting,
AwaitingPairing, Ready) from two inputs: the ordered event stream of the
current transport session and timer-scheduled reconnection callbacks. All
state mutation is serialized behind one mutex, and events carry the identity
of the transport instance that emitted them so a superseded session can
never flip the state of its replacement.

Close handling is policy driven: each close reason maps to either a
scheduled reconnect (the default) or a terminal stop that purges stored
credentials. Reconnect delays come from cenkalti/backoff with a capped,
jittered exponential schedule; errors raised before any event is received
(credential load, dial) retry on a separate, slower schedule.

Credential rotation events are persisted best-effort: a failed write is
logged and the connection keeps running.
*/
package gateway
