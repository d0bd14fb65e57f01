package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1, cancel1 := bus.Subscribe(4)
	defer cancel1()
	ch2, cancel2 := bus.Subscribe(4)
	defer cancel2()

	bus.Publish(Event{Type: SyncStarted, ProviderID: "filesystem"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != SyncStarted || ev.ProviderID != "filesystem" {
				t.Errorf("subscriber %d: unexpected event %+v", i, ev)
			}
			if ev.At.IsZero() {
				t.Errorf("subscriber %d: expected timestamp to be set", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event received", i)
		}
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	slow, cancelSlow := bus.Subscribe(1)
	defer cancelSlow()
	fast, cancelFast := bus.Subscribe(16)
	defer cancelFast()

	for i := 0; i < 10; i++ {
		bus.Publish(Progress("spotify", i+1, 10, "syncing tracks"))
	}

	if got := len(slow); got != 1 {
		t.Errorf("expected slow subscriber to keep only buffered events, got %d", got)
	}
	if got := len(fast); got != 10 {
		t.Errorf("expected fast subscriber to receive all events, got %d", got)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe(4)
	cancel()

	// Publishing after cancel must not panic, and the channel is closed.
	bus.Publish(Event{Type: SyncCompleted})

	if _, open := <-ch; open {
		t.Error("expected channel to be closed after cancel")
	}

	cancel() // second cancel is a no-op
}

func TestCloseIsTerminal(t *testing.T) {
	bus := NewBus()

	ch, _ := bus.Subscribe(4)
	bus.Close()

	if _, open := <-ch; open {
		t.Error("expected channel to close with the bus")
	}

	bus.Publish(Event{Type: SyncFailed}) // no-op after close

	late, cancel := bus.Subscribe(4)
	defer cancel()
	if _, open := <-late; open {
		t.Error("expected post-close subscription to be closed immediately")
	}
}

func TestProgressMessageFormat(t *testing.T) {
	ev := Progress("radio", 3, 7, "syncing stations")
	if ev.Message != "[3/7] syncing stations" {
		t.Errorf("unexpected message %q", ev.Message)
	}
	if ev.Step != 3 || ev.Total != 7 || ev.Type != SyncProgress {
		t.Errorf("unexpected event %+v", ev)
	}
}
