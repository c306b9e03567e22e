// Package events implements the Event Log (spec §4.7): an append-order
// sink the engine pushes structured records to. In-process consumers
// subscribe directly; external consumers receive the same records over a
// go-micro broker.
package events

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"go-micro.dev/v4/broker"

	"github.com/abdoElHodaky/energyauction/internal/obslog"
)

// Topic is the broker topic every event is published to.
const Topic = "energy-auction.events"

// Envelope wraps a single emitted event with routing metadata.
type Envelope struct {
	// EventID uniquely identifies this emission.
	EventID string
	// Key is a k-sortable id: a downstream consumer can order envelopes
	// by arrival without parsing At out of the payload.
	Key string
	// Kind names the event's Go type, e.g. "TradeMatched".
	Kind string
	// Payload is one of the structs in types.go.
	Payload interface{}
}

// Log is the engine's append-only event stream.
type Log struct {
	mu      sync.RWMutex
	broker  broker.Broker
	subs    []chan Envelope
	history []Envelope
	logger  obslog.Logger
}

// NewLog creates an event log publishing onto b in addition to its
// in-process subscribers. b may be nil, in which case only in-process
// subscription is available.
func NewLog(b broker.Broker, logger obslog.Logger) *Log {
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &Log{broker: b, logger: logger}
}

// Subscribe returns a channel that receives every event emitted from this
// point forward. The channel is buffered; a slow consumer drops events
// rather than blocking the engine.
func (l *Log) Subscribe() <-chan Envelope {
	ch := make(chan Envelope, 64)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}

// History returns every event emitted so far.
func (l *Log) History() []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Envelope, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Log) emit(kind string, payload interface{}) {
	env := Envelope{
		EventID: uuid.NewString(),
		Key:     ksuid.New().String(),
		Kind:    kind,
		Payload: payload,
	}

	l.mu.Lock()
	l.history = append(l.history, env)
	subs := make([]chan Envelope, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- env:
		default:
			l.logger.Warn("event subscriber channel full, dropping event", "kind", kind, "event_id", env.EventID)
		}
	}

	if l.broker == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		l.logger.Error("failed to marshal event for broker publish", "kind", kind, "error", err.Error())
		return
	}
	msg := &broker.Message{
		Header: map[string]string{"kind": kind, "event_id": env.EventID, "key": env.Key},
		Body:   body,
	}
	if err := l.broker.Publish(Topic, msg); err != nil {
		l.logger.Warn("failed to publish event to broker", "kind", kind, "error", err.Error())
	}
}

func (l *Log) OwnerAnnounce(e OwnerAnnounce) { l.emit("OwnerAnnounce", e) }
func (l *Log) TradeReceived(e TradeReceived) { l.emit("TradeReceived", e) }
func (l *Log) TradeExpired(e TradeExpired)   { l.emit("TradeExpired", e) }
func (l *Log) TradeMatched(e TradeMatched)   { l.emit("TradeMatched", e) }
func (l *Log) TradeRejected(e TradeRejected) { l.emit("TradeRejected", e) }
func (l *Log) EnergySupplied(e EnergySupplied) { l.emit("EnergySupplied", e) }
