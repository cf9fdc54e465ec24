// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/ironcore-dev/pci-utils/addressutils/address"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	EventTypeNormal  = "Normal"
	EventTypeWarning = "Warning"
)

// EventRecorder records findings about a function
type EventRecorder interface {
	Eventf(addr address.Address, eventType string, reason string, messageFormat string, args ...any)
}

// EventStore lists recorded events
type EventStore interface {
	ListEvents() []*Event
}

type Event struct {
	Address   address.Address
	Type      string
	Reason    string
	Message   string
	EventTime int64
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s: %s", e.Address, e.Type, e.Reason, e.Message)
}

// Discard drops every event.
var Discard EventRecorder = discard{}

type discard struct{}

func (discard) Eventf(address.Address, string, string, string, ...any) {}

// StoreOptions defines options to initialize the event store
type StoreOptions struct {
	MaxEvents      int
	TTL            time.Duration
	ResyncInterval time.Duration
}

func (o *StoreOptions) Defaults() {
	if o.MaxEvents <= 0 {
		o.MaxEvents = 1000
	}

	if o.TTL <= 0 {
		o.TTL = time.Hour
	}

	if o.ResyncInterval <= 0 {
		o.ResyncInterval = time.Minute
	}
}

// Store implements EventRecorder and EventStore as an in-memory ring buffer
// whose events expire after a TTL.
type Store struct {
	maxEvents      int           // Maximum number of events in the store
	events         []*Event      // Ring buffer of events
	mutex          sync.Mutex    // Guards events, head and count
	ttl            time.Duration // TTL for events
	resyncInterval time.Duration // Interval of the TTL expiration check
	head           int           // Index of the oldest event
	count          int           // Current number of events in the store
	now            func() time.Time
	log            logr.Logger
}

func NewStore(log logr.Logger, opts StoreOptions) *Store {
	opts.Defaults()
	return &Store{
		maxEvents:      opts.MaxEvents,
		events:         make([]*Event, opts.MaxEvents),
		ttl:            opts.TTL,
		resyncInterval: opts.ResyncInterval,
		now:            time.Now,
		log:            log,
	}
}

// Eventf logs and records an event with a formatted message.
func (s *Store) Eventf(addr address.Address, eventType, reason, messageFormat string, args ...any) {
	message := fmt.Sprintf(messageFormat, args...)
	s.log.V(1).Info("Recording event", "address", addr.String(), "type", eventType, "reason", reason, "message", message)
	s.recordEvent(addr, eventType, reason, message)
}

func (s *Store) recordEvent(addr address.Address, eventType, reason, message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	index := (s.head + s.count) % s.maxEvents

	// A full store overwrites its oldest event.
	if s.count == s.maxEvents {
		s.log.V(1).Info("Overriding event", "event", s.events[s.head].String())
		s.head = (s.head + 1) % s.maxEvents
	} else {
		s.count++
	}

	s.events[index] = &Event{
		Address:   addr,
		Type:      eventType,
		Reason:    reason,
		Message:   message,
		EventTime: s.now().Unix(),
	}
}

func (s *Store) removeExpiredEvents() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for s.count > 0 {
		event := s.events[s.head]
		if time.Unix(event.EventTime, 0).Add(s.ttl).After(now) {
			break
		}

		s.events[s.head] = nil
		s.head = (s.head + 1) % s.maxEvents
		s.count--
	}
}

// Start runs the TTL expiration check until ctx is done.
func (s *Store) Start(ctx context.Context) {
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		s.removeExpiredEvents()
	}, s.resyncInterval)
}

// ListEvents returns a copy of all events, oldest first.
func (s *Store) ListEvents() []*Event {
	return s.list(func(*Event) bool { return true })
}

// ListEventsFor returns a copy of the events recorded for addr, oldest first.
func (s *Store) ListEventsFor(addr address.Address) []*Event {
	return s.list(func(e *Event) bool { return e.Address == addr })
}

func (s *Store) list(match func(*Event) bool) []*Event {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := make([]*Event, 0, s.count)
	for i := 0; i < s.count; i++ {
		event := s.events[(s.head+i)%s.maxEvents]
		if !match(event) {
			continue
		}
		copied := *event
		result = append(result, &copied)
	}
	return result
}
