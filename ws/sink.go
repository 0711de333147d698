package ws

import (
	"sync"

	"hyperflow/models"
)

// sink decouples one subscriber from the shared read loop. Inbound frames
// are appended to an unbounded queue and a pump goroutine forwards them to
// the subscriber channel in order, so a slow consumer backlogs only its own
// queue and never stalls other subscribers.
type sink struct {
	id  int
	sub models.Subscription
	ch  chan<- models.WsMessage

	mu    sync.Mutex
	queue []models.WsMessage

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newSink(id int, sub models.Subscription, ch chan<- models.WsMessage) *sink {
	return &sink{
		id:   id,
		sub:  sub,
		ch:   ch,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (k *sink) start(s *Stream) {
	go k.pump(s)
}

func (k *sink) stop() {
	k.once.Do(func() { close(k.done) })
}

func (k *sink) enqueue(msg models.WsMessage) {
	k.mu.Lock()
	k.queue = append(k.queue, msg)
	k.mu.Unlock()
	select {
	case k.wake <- struct{}{}:
	default:
	}
}

func (k *sink) pump(s *Stream) {
	for {
		select {
		case <-k.done:
			return
		case <-k.wake:
		}
		for {
			k.mu.Lock()
			if len(k.queue) == 0 {
				k.mu.Unlock()
				break
			}
			msg := k.queue[0]
			k.queue = k.queue[1:]
			k.mu.Unlock()

			if !k.deliver(msg) {
				// The subscriber closed its channel instead of
				// unsubscribing; drop the registration for it.
				s.prune(k.id)
				return
			}
		}
	}
}

// deliver forwards one message, reporting false when the subscriber channel
// is already closed. A send on a closed channel panics, which is the only
// way to detect closure from the sending side.
func (k *sink) deliver(msg models.WsMessage) (alive bool) {
	defer func() {
		if recover() != nil {
			alive = false
		}
	}()
	select {
	case k.ch <- msg:
	case <-k.done:
	}
	return true
}
