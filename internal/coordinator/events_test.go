package coordinator

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestEventBusEmitOn(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var received Event

	eb.On(EventStateUpdate, func(e Event) {
		received = e
	})

	eb.Emit(Event{Type: EventStateUpdate, Data: "test"})

	if received.Type != EventStateUpdate {
		t.Errorf("type = %q, want %q", received.Type, EventStateUpdate)
	}
	if received.Data != "test" {
		t.Errorf("data = %v, want %q", received.Data, "test")
	}
	if received.ID == "" || received.Time.IsZero() {
		t.Errorf("event not stamped: id=%q time=%v", received.ID, received.Time)
	}
}

func TestEventBusKeepsID(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var got string
	eb.OnAll(func(e Event) { got = e.ID })
	eb.Emit(Event{ID: "fixed", Type: EventNotification})
	if got != "fixed" {
		t.Errorf("id = %q, want fixed", got)
	}
}

func TestEventBusOnDoesNotReceiveOtherTypes(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	called := false

	eb.On(EventDeviceDiscovered, func(e Event) {
		called = true
	})

	eb.Emit(Event{Type: EventStateUpdate, Data: "test"})

	if called {
		t.Error("handler called for wrong event type")
	}
}

func TestEventBusOnAll(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var count atomic.Int32

	eb.OnAll(func(e Event) {
		count.Add(1)
	})

	eb.Emit(Event{Type: EventDeviceDiscovered})
	eb.Emit(Event{Type: EventStateUpdate})
	eb.Emit(Event{Type: EventNotification})

	if count.Load() != 3 {
		t.Errorf("onAll called %d times, want 3", count.Load())
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var count atomic.Int32

	unsub := eb.On(EventStateUpdate, func(e Event) {
		count.Add(1)
	})

	eb.Emit(Event{Type: EventStateUpdate})
	if count.Load() != 1 {
		t.Fatalf("expected 1 call before unsub, got %d", count.Load())
	}

	unsub()
	eb.Emit(Event{Type: EventStateUpdate})
	if count.Load() != 1 {
		t.Errorf("expected 1 call after unsub, got %d", count.Load())
	}
}

func TestEventBusPanicRecovery(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var called atomic.Int32

	eb.On(EventStateUpdate, func(e Event) {
		called.Add(1)
		panic("test panic")
	})
	eb.On(EventStateUpdate, func(e Event) {
		called.Add(1)
	})

	eb.Emit(Event{Type: EventStateUpdate})

	if c := called.Load(); c != 2 {
		t.Errorf("expected 2 handlers called, got %d", c)
	}
}

func TestEventBusConcurrentEmit(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var count atomic.Int32

	eb.OnAll(func(e Event) {
		count.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Emit(Event{Type: EventStateUpdate})
		}()
	}
	wg.Wait()

	if count.Load() != 100 {
		t.Errorf("got %d, want 100", count.Load())
	}
}
