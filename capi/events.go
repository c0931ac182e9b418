package capi

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
)

// EventType names an application notification.
type EventType int

const (
	EventIncoming EventType = iota
	EventRinging
	EventConnect
	EventDisconnect
	EventStatus
	EventCode
	EventMessage
)

var eventNames = [...]string{"incoming", "ringing", "connect", "disconnect", "status", "code", "message"}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is delivered on Session.Events. Call is a snapshot taken when the
// event was raised.
type Event struct {
	Type EventType
	Call CallInfo

	// Status carries the failing CAPI code of EventStatus.
	Status uint16
	// Tone is the DTMF digit of EventCode.
	Tone byte
	// Title and Body form the text of EventMessage.
	Title string
	Body  string
}

// notifier decouples event producers from the consumer through an unbounded
// queue drained by a pump goroutine.
type notifier struct {
	mu   sync.Mutex
	q    *queue.Queue
	wake chan struct{}
	out  chan Event
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newNotifier() *notifier {
	return &notifier{
		q:    queue.New(),
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (n *notifier) post(ev Event) {
	n.mu.Lock()
	n.q.Add(ev)
	n.mu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.q.Length()
}

func (n *notifier) run() {
	defer close(n.done)
	defer close(n.out)
	for {
		n.mu.Lock()
		if n.q.Length() == 0 {
			n.mu.Unlock()
			select {
			case <-n.wake:
				continue
			case <-n.stop:
				return
			}
		}
		ev := n.q.Remove().(Event)
		n.mu.Unlock()

		select {
		case n.out <- ev:
		case <-n.stop:
			return
		}
	}
}

// close stops the pump; undelivered events are dropped.
func (n *notifier) close() {
	n.once.Do(func() { close(n.stop) })
	<-n.done
}
