package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harentsoaR/bloodbank-api/internal/storage"
)

// SlotKey is the single storage slot every context writes its events to.
const SlotKey = "bb_sync_event"

// Event names published by the services.
const (
	EventUsersUpdated        = "users:updated"
	EventUserStatus          = "user:status"
	EventRequestsUpdated     = "requests:updated"
	EventStocksUpdated       = "stocks:updated"
	EventHospitalsUpdated    = "hospitals:updated"
	EventFeedbackUpdated     = "feedback:updated"
	EventChatMessage         = "chat:message"
	EventAppointmentsUpdated = "appointments:updated"
	EventLogsUpdated         = "logs:updated"
)

// Events lists every name above, in a stable order.
var Events = []string{
	EventUsersUpdated, EventUserStatus, EventRequestsUpdated, EventStocksUpdated,
	EventHospitalsUpdated, EventFeedbackUpdated, EventChatMessage,
	EventAppointmentsUpdated, EventLogsUpdated,
}

// Envelope is what gets written to SlotKey.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Handler receives the event name and its raw JSON payload.
type Handler func(event string, data json.RawMessage)

// SubscriptionID identifies one Subscribe call for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id SubscriptionID
	fn Handler
}

// Bus delivers published events to local subscribers synchronously and in
// subscription order, and to subscribers in other contexts that share the
// same KV through change notification on SlotKey. Delivery to a context that
// is not running is lost.
type Bus struct {
	kv     storage.KV
	log    *zap.Logger
	now    func() time.Time
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID SubscriptionID
}

func New(kv storage.KV, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		kv:   kv,
		log:  log,
		now:  time.Now,
		subs: make(map[string][]subscription),
	}
}

func (b *Bus) Subscribe(event string, fn Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[event] = append(b.subs[event], subscription{id: b.nextID, fn: fn})
	return b.nextID
}

func (b *Bus) Unsubscribe(event string, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[event]
	for i, s := range list {
		if s.id == id {
			b.subs[event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[event]) == 0 {
		delete(b.subs, event)
	}
}

// Publish writes the envelope to SlotKey and then runs local subscribers.
// Local delivery happens even when the slot write fails; the error is
// returned so callers can log it.
func (b *Bus) Publish(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	env := Envelope{Type: event, Data: data, Timestamp: b.now().UnixMilli()}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event, err)
	}

	var writeErr error
	if b.kv != nil {
		if err := b.kv.Set(ctx, SlotKey, raw); err != nil {
			writeErr = fmt.Errorf("write sync slot: %w", err)
		}
	}
	b.dispatch(env)
	return writeErr
}

// Run forwards envelopes written by other contexts to local subscribers
// until ctx ends. It returns nil at once when the KV cannot notify changes.
func (b *Bus) Run(ctx context.Context) error {
	w, ok := b.kv.(storage.Watcher)
	if !ok {
		b.log.Info("sync slot has no change notification; cross-context delivery disabled")
		return nil
	}
	changes, err := w.Watch(ctx, SlotKey)
	if err != nil {
		return fmt.Errorf("watch sync slot: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal(c.Value, &env); err != nil {
				b.log.Warn("dropping malformed sync envelope", zap.Error(err))
				continue
			}
			b.dispatch(env)
		}
	}
}

func (b *Bus) dispatch(env Envelope) {
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[env.Type]...)
	b.mu.RUnlock()
	for _, s := range list {
		s.fn(env.Type, env.Data)
	}
}
