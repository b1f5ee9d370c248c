package scheduler

import (
	"testing"
	"time"
)

func TestHeapPopsEarliestFirst(t *testing.T) {
	now := time.Now()
	h := &wakeHeap{}
	for _, e := range []struct {
		name   string
		offset time.Duration
	}{
		{"boundary", 3 * time.Hour},
		{"refresh", 1 * time.Hour},
		{"playlog-prune", 2 * time.Hour},
	} {
		heapPush(h, WakeEvent{Name: e.name, TriggerAt: now.Add(e.offset)})
	}

	for _, want := range []string{"refresh", "playlog-prune", "boundary"} {
		if got := heapPop(h).Name; got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	if h.Len() != 0 {
		t.Fatalf("expected drained heap, got len %d", h.Len())
	}
}

func TestHeapEqualTriggerTimes(t *testing.T) {
	h := &wakeHeap{}
	at := time.Now().Add(time.Hour)
	for _, name := range []string{"a", "b", "c"} {
		heapPush(h, WakeEvent{Name: name, TriggerAt: at})
	}

	// Any pop order is valid for equal times, but each wakeup comes
	// out exactly once.
	seen := map[string]bool{}
	for h.Len() > 0 {
		e := heapPop(h)
		if seen[e.Name] {
			t.Fatalf("popped %s twice", e.Name)
		}
		seen[e.Name] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct wakeups, got %d", len(seen))
	}
}

func TestHeapRemoveByName(t *testing.T) {
	now := time.Now()
	h := &wakeHeap{}
	heapPush(h, WakeEvent{Name: "refresh", TriggerAt: now.Add(1 * time.Hour)})
	heapPush(h, WakeEvent{Name: "boundary", TriggerAt: now.Add(2 * time.Hour)})
	heapPush(h, WakeEvent{Name: "playlog-prune", TriggerAt: now.Add(3 * time.Hour)})

	if !heapRemoveByName(h, "boundary") {
		t.Fatal("expected removal of a present name to succeed")
	}
	if heapRemoveByName(h, "boundary") {
		t.Fatal("expected second removal of the same name to fail")
	}

	// Order survives removing the middle element.
	if got := heapPop(h).Name; got != "refresh" {
		t.Fatalf("expected refresh, got %s", got)
	}
	if got := heapPop(h).Name; got != "playlog-prune" {
		t.Fatalf("expected playlog-prune, got %s", got)
	}

	if heapRemoveByName(h, "refresh") {
		t.Fatal("expected removal from empty heap to fail")
	}
}
