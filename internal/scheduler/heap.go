package scheduler

import "container/heap"

// wakeHeap orders pending wakeups by TriggerAt, earliest on top.
type wakeHeap []WakeEvent

func (h wakeHeap) Len() int           { return len(h) }
func (h wakeHeap) Less(i, j int) bool { return h[i].TriggerAt.Before(h[j].TriggerAt) }
func (h wakeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *wakeHeap) Push(x any) {
	*h = append(*h, x.(WakeEvent))
}

func (h *wakeHeap) Pop() any {
	old := *h
	last := len(old) - 1
	e := old[last]
	*h = old[:last]
	return e
}

func heapPush(h *wakeHeap, e WakeEvent) { heap.Push(h, e) }

// heapPop returns the wakeup with the earliest TriggerAt.
func heapPop(h *wakeHeap) WakeEvent { return heap.Pop(h).(WakeEvent) }

// heapRemoveByName drops the first wakeup with the given name and
// reports whether one was found.
func heapRemoveByName(h *wakeHeap, name string) bool {
	for i, e := range *h {
		if e.Name == name {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
