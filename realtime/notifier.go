package realtime

import (
	"fmt"
	"sync"

	pubnub "github.com/pubnub/go"

	"meetpoint/models"
)

const (
	subscriberBuffer = 16
	outboundBuffer   = 64
)

// transport delivers one message to the external channel for a session.
type transport interface {
	send(channel string, message map[string]any)
}

type pubnubTransport struct {
	pn *pubnub.PubNub
}

func (t *pubnubTransport) send(channel string, message map[string]any) {
	t.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
}

// Notifier fans the latest session snapshot out to every subscriber of a
// session code: in-process channels plus the PubNub channel clients listen
// on. Subscribers must treat each snapshot as full authoritative state.
type Notifier struct {
	transport transport

	mu       sync.Mutex
	nextID   int
	subs     map[string]map[int]chan *models.Session
	outbound map[string]chan map[string]any
}

// NewNotifier wires the external transport. A nil PubNub client keeps the
// in-process fan-out working, which is what tests use.
func NewNotifier(pn *pubnub.PubNub) *Notifier {
	n := &Notifier{
		subs:     make(map[string]map[int]chan *models.Session),
		outbound: make(map[string]chan map[string]any),
	}
	if pn != nil {
		n.transport = &pubnubTransport{pn: pn}
	}
	return n
}

// Publish delivers a snapshot to all subscribers of the session's code.
// Delivery is at-least-once per subscriber that keeps up; a slow subscriber
// loses older snapshots, never the newest one.
func (n *Notifier) Publish(session *models.Session) {
	snapshot := session.Clone()

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[session.Code] {
		select {
		case ch <- snapshot:
		default:
			// Full buffer: drop the oldest snapshot to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}

	n.enqueue(session.Code, map[string]any{
		"type":    "session_snapshot",
		"session": snapshot,
	})
}

// PublishEnded tells subscribers the session is gone and detaches them.
func (n *Notifier) PublishEnded(code string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[code] {
		close(ch)
	}
	delete(n.subs, code)

	n.enqueue(code, map[string]any{
		"type": "session_ended",
		"code": code,
	})
	if q, ok := n.outbound[code]; ok {
		close(q)
		delete(n.outbound, code)
	}
}

// Subscribe registers an in-process subscriber. The returned function
// detaches it without affecting other subscribers or the session.
func (n *Notifier) Subscribe(code string) (<-chan *models.Session, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[code] == nil {
		n.subs[code] = make(map[int]chan *models.Session)
	}
	id := n.nextID
	n.nextID++

	ch := make(chan *models.Session, subscriberBuffer)
	n.subs[code][id] = ch

	unsubscribe := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if ch, ok := n.subs[code][id]; ok {
			delete(n.subs[code], id)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// enqueue hands a message to the session's ordered outbound queue. The
// external send runs on the queue's goroutine, so a slow transport never
// stalls the caller, who typically holds the session lock. Caller holds
// n.mu.
func (n *Notifier) enqueue(code string, message map[string]any) {
	if n.transport == nil {
		return
	}

	q, ok := n.outbound[code]
	if !ok {
		q = make(chan map[string]any, outboundBuffer)
		n.outbound[code] = q
		go n.drain(channelFor(code), q)
	}

	select {
	case q <- message:
	default:
		// Full queue: drop the oldest message to make room.
		select {
		case <-q:
		default:
		}
		select {
		case q <- message:
		default:
		}
	}
}

func (n *Notifier) drain(channel string, q chan map[string]any) {
	for message := range q {
		n.transport.send(channel, message)
	}
}

func channelFor(code string) string {
	return fmt.Sprintf("session-%s", code)
}
