// Package notify delivers user-facing messages about the bridge, such as a
// device dropping off Neviweb, to the event bus and to ntfy.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"neviweb-go-home/internal/coordinator"
)

// DefaultWindow is how long an identical message is suppressed.
const DefaultWindow = 10 * time.Minute

// Sink receives notifications.
type Sink interface {
	Send(ctx context.Context, title, message string) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, title, message string) error

func (f SinkFunc) Send(ctx context.Context, title, message string) error {
	return f(ctx, title, message)
}

// EventSink publishes notifications as coordinator events, which reach
// MQTT, websocket and SSE clients.
func EventSink(events *coordinator.EventBus) Sink {
	return SinkFunc(func(_ context.Context, title, message string) error {
		events.Emit(coordinator.Event{Type: coordinator.EventNotification, Data: map[string]any{
			"title":   title,
			"message": message,
		}})
		return nil
	})
}

// Dispatcher fans a notification out to every sink, dropping repeats of
// the same title and message inside the dedup window.
type Dispatcher struct {
	title  string
	sinks  []Sink
	logger *slog.Logger

	mu   sync.Mutex
	seen *ttlcache.Cache[string, struct{}]
}

// New creates a Dispatcher. title is used by Notify.
func New(title string, window time.Duration, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Dispatcher{
		title:  title,
		sinks:  sinks,
		logger: logger.With("component", "notify"),
		seen: ttlcache.New(
			ttlcache.WithTTL[string, struct{}](window),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
	}
}

// Start runs the expiry loop until Stop.
func (d *Dispatcher) Start() {
	go d.seen.Start()
}

// Stop ends the expiry loop.
func (d *Dispatcher) Stop() {
	d.seen.Stop()
}

// Notify sends message under the default title.
func (d *Dispatcher) Notify(ctx context.Context, message string) {
	if err := d.Send(ctx, d.title, message); err != nil {
		d.logger.Warn("notification failed", "err", err)
	}
}

// Send delivers to every sink and joins their errors. A duplicate inside
// the window is dropped without error.
func (d *Dispatcher) Send(ctx context.Context, title, message string) error {
	key := title + "\x00" + message
	d.mu.Lock()
	if d.seen.Get(key) != nil {
		d.mu.Unlock()
		d.logger.Debug("duplicate notification dropped", "title", title)
		return nil
	}
	d.seen.Set(key, struct{}{}, ttlcache.DefaultTTL)
	d.mu.Unlock()

	d.logger.Info("notification", "title", title, "message", message)
	var errs []error
	for _, s := range d.sinks {
		if err := s.Send(ctx, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
