package notify

import (
	"time"

	"go.uber.org/zap"
)

// Event types pushed to live sessions.
const (
	EventCodeSubmitted       = "code_submitted"
	EventCodeVerified        = "code_verification"
	EventPaymentVerified     = "payment_verification"
	EventWithdrawalRequested = "withdrawal_requested"
	EventBalanceDrift        = "balance_drift"
)

// Event targets a single user (UserID set), the admins of a country
// (Country set), or both. Delivery is at-most-once: no queue survives a
// disconnect, no retry is attempted.
type Event struct {
	Type      string    `json:"type"`
	UserID    int       `json:"-"`
	Country   string    `json:"-"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus is the in-process seam between financial commits and socket delivery.
// Publish never blocks the caller: a full buffer drops the event, because a
// slow socket must not stall a ledger operation.
type Bus struct {
	events chan Event
}

func NewBus(size int) *Bus {
	return &Bus{events: make(chan Event, size)}
}

func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.events <- event:
	default:
		zap.L().Warn("event bus full, dropping event", zap.String("type", event.Type))
	}
}

func (b *Bus) Events() <-chan Event {
	return b.events
}
