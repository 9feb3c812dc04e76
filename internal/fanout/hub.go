package fanout

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/wabridge/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultBuffer = 64

// Event is the server-to-observer wire message.
type Event struct {
	Event string `json:"event"`
	Topic string `json:"topic"`
	Data  string `json:"data,omitempty"`
	TS    string `json:"ts"`
}

// Observer is one attached subscriber with a bounded send queue.
type Observer struct {
	id   string
	send chan []byte

	mu     sync.RWMutex
	topics map[string]struct{}
}

func (o *Observer) ID() string {
	return o.id
}

// Send returns the observer's queue. It is closed on Detach.
func (o *Observer) Send() <-chan []byte {
	return o.send
}

// Join subscribes the observer to topic. There is no unsubscribe.
func (o *Observer) Join(topic string) bool {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return false
	}
	o.mu.Lock()
	o.topics[topic] = struct{}{}
	o.mu.Unlock()
	log.Debug().Str("observer", o.id).Str("topic", topic).Msg("fanout_join")
	return true
}

func (o *Observer) Topics() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.topics))
	for topic := range o.topics {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func (o *Observer) joined(topic string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.topics[topic]
	return ok
}

// Hub tracks attached observers and their topic memberships.
type Hub struct {
	buffer int
	now    func() time.Time

	mu        sync.RWMutex
	observers map[string]*Observer
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer:    buffer,
		now:       time.Now,
		observers: make(map[string]*Observer),
	}
}

// Attach registers a new observer. An empty id is replaced by a random one.
func (h *Hub) Attach(id string) *Observer {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	o := &Observer{
		id:     id,
		send:   make(chan []byte, h.buffer),
		topics: make(map[string]struct{}),
	}
	h.mu.Lock()
	if prev, ok := h.observers[id]; ok {
		close(prev.send)
	}
	h.observers[id] = o
	total := len(h.observers)
	h.mu.Unlock()

	observability.SetObserverCount(total)
	log.Debug().Str("observer", id).Int("total", total).Msg("fanout_attach")
	return o
}

// Detach removes o and closes its queue. Safe to call more than once.
func (h *Hub) Detach(o *Observer) {
	if o == nil {
		return
	}
	h.mu.Lock()
	cur, ok := h.observers[o.id]
	if ok && cur == o {
		delete(h.observers, o.id)
		close(o.send)
	}
	total := len(h.observers)
	h.mu.Unlock()

	if ok && cur == o {
		observability.SetObserverCount(total)
		log.Debug().Str("observer", o.id).Int("total", total).Msg("fanout_detach")
	}
}

// Publish queues one notice on every observer currently joined to topic and
// returns how many accepted it. Full queues drop the notice.
func (h *Hub) Publish(topic, event, data string) int {
	payload, err := json.Marshal(Event{
		Event: event,
		Topic: topic,
		Data:  data,
		TS:    h.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Error().Str("topic", topic).Str("event", event).Err(err).Msg("fanout_encode_failed")
		return 0
	}

	delivered, dropped := 0, 0
	h.mu.RLock()
	for _, o := range h.observers {
		if !o.joined(topic) {
			continue
		}
		select {
		case o.send <- payload:
			delivered++
		default:
			dropped++
			log.Warn().Str("observer", o.id).Str("topic", topic).Str("event", event).Msg("fanout_queue_full")
		}
	}
	h.mu.RUnlock()

	observability.RecordFanout(event, delivered, dropped)
	return delivered
}

// Subscribers returns how many attached observers joined topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, o := range h.observers {
		if o.joined(topic) {
			n++
		}
	}
	return n
}

func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Close detaches every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	for id, o := range h.observers {
		delete(h.observers, id)
		close(o.send)
	}
	h.mu.Unlock()
	observability.SetObserverCount(0)
}
