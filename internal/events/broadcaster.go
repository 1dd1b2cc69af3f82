// Package events fans execution telemetry out to per-session
// subscribers, decoupling the synchronous executor from asynchronous
// observers such as dashboards and in-page overlays.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Type tags a broadcast record.
type Type string

const (
	TypeAction     Type = "action"
	TypeLog        Type = "log"
	TypeComplete   Type = "complete"
	TypeError      Type = "error"
	TypeScreenshot Type = "screenshot"
)

// Record is one immutable broadcast unit. Data is an opaque payload
// shaped by Type; the core never persists records.
type Record struct {
	Type      Type           `json:"type"`
	SessionID string         `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Subscriber is an opaque sink. Delivery transport is the subscriber's
// business; the broadcaster only hands it serialized records.
type Subscriber interface {
	Send(payload []byte) error
}

// Broadcaster maintains the session to subscriber-set mapping.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[Subscriber]struct{}
	logger zerolog.Logger
}

func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]map[Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers sub for the session's events. Events published
// before subscribing are not replayed.
func (b *Broadcaster) Subscribe(sessionID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[Subscriber]struct{})
		b.subs[sessionID] = set
	}
	set[sub] = struct{}{}
}

// Unsubscribe removes sub from one session's set.
func (b *Broadcaster) Unsubscribe(sessionID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sessionID, sub)
}

// Drop removes sub from every session's set. A subscriber should only
// be in one set, but disconnect handling scans all of them to be safe.
func (b *Broadcaster) Drop(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sessionID := range b.subs {
		b.removeLocked(sessionID, sub)
	}
}

func (b *Broadcaster) removeLocked(sessionID string, sub Subscriber) {
	set, ok := b.subs[sessionID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sessionID)
	}
}

// Publish serializes the record once and sends it to every subscriber
// of the session. No subscribers is a silent no-op. A subscriber whose
// Send fails is dropped.
func (b *Broadcaster) Publish(sessionID string, rec Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		b.logger.Error().Err(err).Str("session", sessionID).Msg("marshal event")
		return
	}

	b.mu.RLock()
	set := b.subs[sessionID]
	targets := make([]Subscriber, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	var dead []Subscriber
	for _, sub := range targets {
		if err := sub.Send(payload); err != nil {
			b.logger.Debug().Err(err).Str("session", sessionID).Msg("subscriber send failed, dropping")
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		b.Drop(sub)
	}
}

// SubscriberCount reports how many subscribers a session currently has.
func (b *Broadcaster) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

func (b *Broadcaster) publishTyped(sessionID string, t Type, data map[string]any) {
	b.Publish(sessionID, Record{
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// PublishAction announces one action about to run (or just run).
func (b *Broadcaster) PublishAction(sessionID string, data map[string]any) {
	b.publishTyped(sessionID, TypeAction, data)
}

// PublishLog sends a leveled log line to observers.
func (b *Broadcaster) PublishLog(sessionID, message, level string) {
	b.publishTyped(sessionID, TypeLog, map[string]any{"message": message, "level": level})
}

// PublishComplete reports a finished run with its result payload.
func (b *Broadcaster) PublishComplete(sessionID string, result any) {
	b.publishTyped(sessionID, TypeComplete, map[string]any{"result": result})
}

// PublishError reports a failed run.
func (b *Broadcaster) PublishError(sessionID, errMsg string) {
	b.publishTyped(sessionID, TypeError, map[string]any{"error": errMsg})
}

// PublishScreenshot announces a captured screenshot file.
func (b *Broadcaster) PublishScreenshot(sessionID, path string) {
	b.publishTyped(sessionID, TypeScreenshot, map[string]any{"screenshot": path})
}
