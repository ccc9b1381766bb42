package notify

import (
	"context"

	"go.uber.org/zap"
)

// Fanout consumes the bus and routes events to live sessions. It runs out
// of band from the operations that publish: a committed ledger mutation is
// never failed or delayed by delivery.
type Fanout struct {
	bus      *Bus
	registry *Registry
}

func NewFanout(bus *Bus, registry *Registry) *Fanout {
	return &Fanout{
		bus:      bus,
		registry: registry,
	}
}

// Start blocks until the context is canceled; run it on its own goroutine.
func (f *Fanout) Start(ctx context.Context) {
	zap.L().Info("notification fanout started")
	f.run(ctx)
}

func (f *Fanout) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("context canceled, stopping fanout")
			f.registry.CloseAll()
			return
		case event := <-f.bus.Events():
			f.dispatch(event)
		}
	}
}

func (f *Fanout) dispatch(event Event) {
	if event.UserID != 0 {
		f.registry.NotifyUser(event.UserID, event)
	}
	if event.Country != "" {
		f.registry.NotifyCountryAdmins(event.Country, event)
	}
}
