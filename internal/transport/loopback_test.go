package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msggate/msggate/internal/address"
)

func collectEvents(t *testing.T, sess Session, n int) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(5 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				t.Fatalf("event stream closed after %d events, wanted %d", len(events), n)
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out after %d events, wanted %d", len(events), n)
		}
	}
	return events
}

func TestLoopback_FreshSessionPairs(t *testing.T) {
	sess, err := LoopbackDialer{}.Dial(context.Background(), nil)
	require.NoError(t, err)
	defer sess.Close()

	events := collectEvents(t, sess, 4)

	assert.Equal(t, KindConnecting, events[0].Kind)
	assert.Equal(t, KindPairingChallenge, events[1].Kind)
	assert.NotEmpty(t, events[1].Challenge)
	assert.Equal(t, KindCredentialsChanged, events[2].Kind)
	assert.NotEmpty(t, events[2].Credentials)
	assert.Equal(t, KindOpen, events[3].Kind)
}

func TestLoopback_RestoredSessionSkipsPairing(t *testing.T) {
	sess, err := LoopbackDialer{}.Dial(context.Background(), []byte("loopback-device:prev"))
	require.NoError(t, err)
	defer sess.Close()

	events := collectEvents(t, sess, 2)

	assert.Equal(t, KindConnecting, events[0].Kind)
	assert.Equal(t, KindOpen, events[1].Kind)
}

func TestLoopback_SendAndCheck(t *testing.T) {
	sess, err := LoopbackDialer{}.Dial(context.Background(), []byte("creds"))
	require.NoError(t, err)
	defer sess.Close()

	jid := address.JID("966512345678@s.whatsapp.net")

	registered, err := sess.IsRegistered(context.Background(), jid)
	require.NoError(t, err)
	assert.True(t, registered)

	msgID, err := sess.SendText(context.Background(), jid, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, msgID)
}

func TestLoopback_CloseEndsStream(t *testing.T) {
	sess, err := LoopbackDialer{}.Dial(context.Background(), []byte("creds"))
	require.NoError(t, err)

	collectEvents(t, sess, 2)
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	select {
	case _, ok := <-sess.Events():
		assert.False(t, ok, "stream still open after close")
	case <-time.After(time.Second):
		t.Fatal("stream did not close")
	}

	_, err = sess.SendText(context.Background(), "966512345678@s.whatsapp.net", "hello")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	d, ok := Lookup("loopback")
	assert.True(t, ok)
	assert.NotNil(t, d)

	_, ok = Lookup("no-such-transport")
	assert.False(t, ok)

	assert.Contains(t, Names(), "loopback")
}

func TestEventKindStrings(t *testing.T) {
	assert.Equal(t, "open", KindOpen.String())
	assert.Equal(t, "closed", KindClosed.String())
	assert.Equal(t, "logged-out", ReasonLoggedOut.String())
	assert.Equal(t, "conflict", ReasonConflict.String())
	assert.Equal(t, "unknown", ReasonUnknown.String())
}
