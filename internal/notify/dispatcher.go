package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher routes events to registered senders. Delivery failures are
// logged and never propagate to the pipeline's exit code.
type Dispatcher struct {
	senders []Sender
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{logger: logger}
}

// Register adds a sender to the dispatcher.
func (d *Dispatcher) Register(sender Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders = append(d.senders, sender)
}

// Dispatch sends an event to all registered senders, sequentially.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) {
	d.mu.RLock()
	senders := make([]Sender, len(d.senders))
	copy(senders, d.senders)
	d.mu.RUnlock()

	for _, sender := range senders {
		d.sendWithRecover(ctx, sender, event)
	}
}

// sendWithRecover sends an event and recovers from panics.
func (d *Dispatcher) sendWithRecover(ctx context.Context, sender Sender, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in notification sender",
				slog.String("sender", sender.Name()),
				slog.Any("panic", r),
			)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := sender.Send(sendCtx, event); err != nil {
		d.logger.Warn("notification delivery failed",
			slog.String("sender", sender.Name()),
			slog.String("event", event.Type),
			slog.String("error", err.Error()),
		)
	}
}
