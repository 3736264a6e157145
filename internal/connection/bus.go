// bus.go — The remote-object bus and common-event abstractions the
// transactor runs on. The platform supplies the real bus; LocalObject and
// EventHub provide the in-process form used by the daemon loopback and the
// tests.
package connection

import (
	"errors"
	"sync"

	"github.com/eapache/queue"

	"github.com/openharmony/perftest/internal/logging"
)

var log = logging.Named("connection")

// ErrDeadObject is returned by requests against a dead remote object.
var ErrDeadObject = errors.New("remote object is dead")

// Parcel is one transaction payload: opaque data plus an optionally
// attached remote object.
type Parcel struct {
	Data   []byte
	Object RemoteObject
}

// DeathRecipient observes the death of a remote object.
type DeathRecipient interface {
	OnRemoteDied()
}

// RemoteObject is the handle exchanged across the bus.
type RemoteObject interface {
	SendRequest(code uint32, data *Parcel, reply *Parcel) error
	AddDeathRecipient(recipient DeathRecipient) bool
	RemoveDeathRecipient(recipient DeathRecipient) bool
}

// RequestHandler serves transactions against a local object.
type RequestHandler func(code uint32, data *Parcel, reply *Parcel) error

// LocalObject is an in-process RemoteObject backed by a request handler.
type LocalObject struct {
	mu         sync.Mutex
	handler    RequestHandler
	recipients []DeathRecipient
	dead       bool
}

// NewLocalObject builds a live object serving requests with handler.
func NewLocalObject(handler RequestHandler) *LocalObject {
	return &LocalObject{handler: handler}
}

// SendRequest forwards the transaction to the handler.
func (o *LocalObject) SendRequest(code uint32, data *Parcel, reply *Parcel) error {
	o.mu.Lock()
	dead := o.dead
	handler := o.handler
	o.mu.Unlock()
	if dead {
		return ErrDeadObject
	}
	if handler == nil {
		return errors.New("no request handler installed")
	}
	return handler(code, data, reply)
}

// AddDeathRecipient registers a death observer. Fails on dead objects.
func (o *LocalObject) AddDeathRecipient(recipient DeathRecipient) bool {
	if recipient == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dead {
		return false
	}
	o.recipients = append(o.recipients, recipient)
	return true
}

// RemoveDeathRecipient unregisters a death observer.
func (o *LocalObject) RemoveDeathRecipient(recipient DeathRecipient) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, r := range o.recipients {
		if r == recipient {
			o.recipients = append(o.recipients[:i], o.recipients[i+1:]...)
			return true
		}
	}
	return false
}

// Kill marks the object dead and fires every death recipient. Used when the
// owning endpoint goes away.
func (o *LocalObject) Kill() {
	o.mu.Lock()
	if o.dead {
		o.mu.Unlock()
		return
	}
	o.dead = true
	recipients := make([]DeathRecipient, len(o.recipients))
	copy(recipients, o.recipients)
	o.recipients = nil
	o.mu.Unlock()
	for _, r := range recipients {
		r.OnRemoteDied()
	}
}

// EventData is one broadcast: an event name plus named remote-object
// parameters.
type EventData struct {
	Name    string
	Objects map[string]RemoteObject
}

// EventHandler consumes delivered broadcasts.
type EventHandler func(EventData)

// EventHub is the common-event broadcast channel used for peer discovery.
// Delivery is asynchronous: each subscription owns a queue drained by its
// own goroutine, so publishers never block on slow subscribers.
type EventHub struct {
	mu   sync.Mutex
	subs []*Subscription
}

// NewEventHub builds an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{}
}

// Subscribe delivers future broadcasts of the named event to handler until
// the subscription is closed.
func (h *EventHub) Subscribe(event string, handler EventHandler) *Subscription {
	sub := &Subscription{hub: h, event: event, handler: handler, pending: queue.New()}
	sub.cond = sync.NewCond(&sub.mu)
	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()
	go sub.drain()
	return sub
}

// Publish enqueues the event for every matching subscription.
func (h *EventHub) Publish(data EventData) bool {
	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.event == data.Name {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()
	for _, sub := range targets {
		sub.enqueue(data)
	}
	log.Debugw("published event", "name", data.Name, "subscribers", len(targets))
	return true
}

func (h *EventHub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			return
		}
	}
}

// Subscription is one live event registration.
type Subscription struct {
	hub     *EventHub
	event   string
	handler EventHandler

	mu      sync.Mutex
	cond    *sync.Cond
	pending *queue.Queue
	closed  bool
}

func (s *Subscription) enqueue(data EventData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending.Add(data)
	s.cond.Signal()
}

func (s *Subscription) drain() {
	for {
		s.mu.Lock()
		for s.pending.Length() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed && s.pending.Length() == 0 {
			s.mu.Unlock()
			return
		}
		data := s.pending.Remove().(EventData)
		s.mu.Unlock()
		s.handler(data)
	}
}

// Close ends the subscription after the queued deliveries complete.
func (s *Subscription) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	s.hub.remove(s)
}
