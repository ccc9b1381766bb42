package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilcode/kilcode/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	events []Event
	failed bool
	closed bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed {
		return errors.New("broken pipe")
	}
	c.events = append(c.events, v.(Event))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestBusPublishAndConsume(t *testing.T) {
	bus := NewBus(4)
	bus.Publish(Event{Type: EventCodeSubmitted, Country: domain.CountryNigeria})

	event := <-bus.Events()
	assert.Equal(t, EventCodeSubmitted, event.Type)
	assert.False(t, event.Timestamp.IsZero())
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(1)
	bus.Publish(Event{Type: EventCodeSubmitted})
	// Second publish must not block even with no consumer.
	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: EventCodeVerified})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full bus")
	}
	assert.Len(t, bus.Events(), 1)
}

func TestRegistryNotifyUser(t *testing.T) {
	registry := NewRegistry()
	conn := &fakeConn{}
	registry.RegisterUser(1, conn)

	registry.NotifyUser(1, Event{Type: EventCodeVerified})
	assert.Equal(t, 1, conn.count())

	// Unknown user drops silently.
	registry.NotifyUser(2, Event{Type: EventCodeVerified})
}

func TestRegistryReplacesUserSession(t *testing.T) {
	registry := NewRegistry()
	stale := &fakeConn{}
	fresh := &fakeConn{}
	registry.RegisterUser(1, stale)
	registry.RegisterUser(1, fresh)

	assert.True(t, stale.closed)

	registry.NotifyUser(1, Event{Type: EventPaymentVerified})
	assert.Equal(t, 0, stale.count())
	assert.Equal(t, 1, fresh.count())
}

func TestRegistryEvictsFailedUserConn(t *testing.T) {
	registry := NewRegistry()
	conn := &fakeConn{failed: true}
	registry.RegisterUser(1, conn)

	registry.NotifyUser(1, Event{Type: EventPaymentVerified})
	assert.True(t, conn.closed)

	// The session is gone; a second notify is a no-op.
	registry.NotifyUser(1, Event{Type: EventPaymentVerified})
}

func TestRegistryCountryPartition(t *testing.T) {
	registry := NewRegistry()
	ng := &fakeConn{}
	gh := &fakeConn{}
	registry.RegisterAdmin(domain.CountryNigeria, ng)
	registry.RegisterAdmin(domain.CountryGhana, gh)

	registry.NotifyCountryAdmins(domain.CountryNigeria, Event{Type: EventCodeSubmitted})

	assert.Equal(t, 1, ng.count())
	assert.Equal(t, 0, gh.count())
}

func TestRegistryBroadcastIsolatesFailures(t *testing.T) {
	registry := NewRegistry()
	healthy := &fakeConn{}
	broken := &fakeConn{failed: true}
	registry.RegisterAdmin(domain.CountryNigeria, healthy)
	registry.RegisterAdmin(domain.CountryNigeria, broken)

	registry.NotifyCountryAdmins(domain.CountryNigeria, Event{Type: EventCodeSubmitted})

	assert.Equal(t, 1, healthy.count())
	assert.True(t, broken.closed)
	assert.Equal(t, 1, registry.AdminCount(domain.CountryNigeria))
}

func TestFanoutDispatch(t *testing.T) {
	bus := NewBus(4)
	registry := NewRegistry()
	userConn := &fakeConn{}
	adminConn := &fakeConn{}
	registry.RegisterUser(1, userConn)
	registry.RegisterAdmin(domain.CountryGhana, adminConn)

	ctx, cancel := context.WithCancel(context.Background())
	fanout := NewFanout(bus, registry)
	go fanout.Start(ctx)

	bus.Publish(Event{Type: EventCodeVerified, UserID: 1, Country: domain.CountryGhana})

	assert.Eventually(t, func() bool {
		return userConn.count() == 1 && adminConn.count() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool {
		userConn.mu.Lock()
		defer userConn.mu.Unlock()
		return userConn.closed
	}, time.Second, 10*time.Millisecond)
}
