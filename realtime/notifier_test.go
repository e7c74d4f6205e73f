package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetpoint/models"
)

func receive(t *testing.T, ch <-chan *models.Session) *models.Session {
	t.Helper()
	select {
	case sess := <-ch:
		return sess
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestNotifier_PublishReachesAllSubscribers(t *testing.T) {
	n := NewNotifier(nil)

	ch1, unsub1 := n.Subscribe("AB12CD")
	defer unsub1()
	ch2, unsub2 := n.Subscribe("AB12CD")
	defer unsub2()

	n.Publish(&models.Session{Code: "AB12CD"})

	assert.Equal(t, "AB12CD", receive(t, ch1).Code)
	assert.Equal(t, "AB12CD", receive(t, ch2).Code)
}

func TestNotifier_SnapshotsAreIsolated(t *testing.T) {
	n := NewNotifier(nil)

	ch, unsub := n.Subscribe("AB12CD")
	defer unsub()

	sess := &models.Session{
		Code:         "AB12CD",
		Participants: []*models.Participant{{ID: "p1", Name: "Ana"}},
	}
	n.Publish(sess)

	// Mutating the published session must not reach the snapshot.
	sess.Participants[0].Name = "changed"

	got := receive(t, ch)
	assert.Equal(t, "Ana", got.Participants[0].Name)
}

func TestNotifier_UnsubscribeLeavesOthersAttached(t *testing.T) {
	n := NewNotifier(nil)

	ch1, unsub1 := n.Subscribe("AB12CD")
	ch2, unsub2 := n.Subscribe("AB12CD")
	defer unsub2()

	unsub1()
	// Double unsubscribe is a no-op.
	unsub1()

	n.Publish(&models.Session{Code: "AB12CD"})

	assert.Equal(t, "AB12CD", receive(t, ch2).Code)

	_, open := <-ch1
	assert.False(t, open)
}

func TestNotifier_SlowSubscriberKeepsNewestSnapshot(t *testing.T) {
	n := NewNotifier(nil)

	ch, unsub := n.Subscribe("AB12CD")
	defer unsub()

	// Overflow the buffer; the oldest snapshots are dropped, never the
	// latest one.
	for i := 0; i <= subscriberBuffer+3; i++ {
		n.Publish(&models.Session{Code: "AB12CD", MaxParticipants: i})
	}

	var last *models.Session
	for {
		select {
		case sess := <-ch:
			last = sess
			continue
		default:
		}
		break
	}
	require.NotNil(t, last)
	assert.Equal(t, subscriberBuffer+3, last.MaxParticipants)
}

func TestNotifier_PublishEndedClosesSubscribers(t *testing.T) {
	n := NewNotifier(nil)

	ch, _ := n.Subscribe("AB12CD")
	other, unsubOther := n.Subscribe("ZZ99XX")
	defer unsubOther()

	n.PublishEnded("AB12CD")

	_, open := <-ch
	assert.False(t, open)

	// Subscribers of other sessions are untouched.
	n.Publish(&models.Session{Code: "ZZ99XX"})
	assert.Equal(t, "ZZ99XX", receive(t, other).Code)
}

func TestNotifier_PublishWithNoSubscribers(t *testing.T) {
	n := NewNotifier(nil)

	// Must not panic or block.
	n.Publish(&models.Session{Code: "AB12CD"})
	n.PublishEnded("AB12CD")
}

// recordingTransport captures outbound messages, optionally holding each
// send until released.
type recordingTransport struct {
	release chan struct{}

	mu       sync.Mutex
	messages []map[string]any
}

func (r *recordingTransport) send(_ string, message map[string]any) {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *recordingTransport) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.messages))
	for i, m := range r.messages {
		types[i], _ = m["type"].(string)
	}
	return types
}

func TestNotifier_OutboundKeepsOrderAndEndsLast(t *testing.T) {
	tr := &recordingTransport{}
	n := NewNotifier(nil)
	n.transport = tr

	sess := &models.Session{Code: "AB12CD"}
	n.Publish(sess)
	n.Publish(sess)
	n.PublishEnded("AB12CD")

	require.Eventually(t, func() bool {
		return len(tr.types()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"session_snapshot", "session_snapshot", "session_ended"}, tr.types())
}

func TestNotifier_SlowTransportDoesNotBlockPublish(t *testing.T) {
	tr := &recordingTransport{release: make(chan struct{})}
	n := NewNotifier(nil)
	n.transport = tr

	sess := &models.Session{Code: "AB12CD"}
	done := make(chan struct{})
	go func() {
		n.Publish(sess)
		n.Publish(sess)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on the external transport")
	}

	close(tr.release)
	assert.Eventually(t, func() bool {
		return len(tr.types()) == 2
	}, time.Second, 5*time.Millisecond)
}
