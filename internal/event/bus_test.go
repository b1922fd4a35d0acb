package event

import (
	"sync"
	"testing"
)

func TestPublishToSubscriber(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(TypeTaskClaimed, func(e Event) {
		got = append(got, e)
	})

	bus.Publish(New(TypeTaskClaimed).WithAgent("worker-1").WithTask("task-1"))
	bus.Publish(New(TypeIdle).WithAgent("worker-1")) // different type, not delivered

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].AgentID != "worker-1" || got[0].TaskID != "task-1" {
		t.Errorf("event = %+v, want agent worker-1 task task-1", got[0])
	}
}

func TestSubscribeAllSeesEverything(t *testing.T) {
	bus := NewBus()

	var all []Type
	bus.SubscribeAll(func(e Event) {
		all = append(all, e.Type)
	})

	bus.Publish(New(TypeTeammateSpawned))
	bus.Publish(New(TypeAllTasksDone))
	bus.Publish(New(TypeShutdownComplete))

	want := []Type{TypeTeammateSpawned, TypeAllTasksDone, TypeShutdownComplete}
	if len(all) != len(want) {
		t.Fatalf("got %d events, want %d", len(all), len(want))
	}
	for i, ty := range want {
		if all[i] != ty {
			t.Errorf("event %d = %s, want %s", i, all[i], ty)
		}
	}
}

func TestSpecificHandlersRunBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "wildcard") })
	bus.Subscribe(TypeIdle, func(Event) { order = append(order, "specific") })

	bus.Publish(New(TypeIdle))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("dispatch order = %v, want [specific wildcard]", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	id := bus.Subscribe(TypeIdle, func(Event) { calls++ })

	bus.Publish(New(TypeIdle))
	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false for live subscription")
	}
	bus.Publish(New(TypeIdle))

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
	if bus.Unsubscribe(id) {
		t.Error("second Unsubscribe returned true")
	}
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(TypeIdle, func(Event) { panic("bad hook") })

	delivered := false
	bus.Subscribe(TypeIdle, func(Event) { delivered = true })

	bus.Publish(New(TypeIdle)) // must not panic out

	if !delivered {
		t.Error("second handler not called after first panicked")
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for n := 0; n < 4; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.SubscribeAll(func(Event) {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	for n := 0; n < 4; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 10; n++ {
				bus.Publish(New(TypeMessageSent))
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count == 0 {
		t.Error("no events delivered under concurrency")
	}
}
