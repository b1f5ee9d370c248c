package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// maxSleep caps timer waits: after a suspend or a clock step the loop
// re-reads the wall clock within a minute.
const maxSleep = time.Minute

// Scheduler fires named wakeups at requested times. The daemon points
// the callback at the sync coordinator's trigger, so a fired wakeup
// turns into a sync cycle or a playlog prune.
type Scheduler struct {
	adds     chan WakeEvent
	removals chan string
	ctx      context.Context
}

// New starts the scheduler goroutine. onTrigger runs on that goroutine
// with the fired wakeup's name. The goroutine exits when ctx is
// cancelled.
func New(ctx context.Context, onTrigger func(string)) *Scheduler {
	s := &Scheduler{
		adds:     make(chan WakeEvent, 64),
		removals: make(chan string, 64),
		ctx:      ctx,
	}
	go s.run(onTrigger)
	return s
}

// Add queues a wakeup.
func (s *Scheduler) Add(event WakeEvent) {
	select {
	case s.adds <- event:
	case <-s.ctx.Done():
	}
}

// AddCron queues a recurring wakeup from a five-field cron expression,
// first firing at the expression's next occurrence.
func (s *Scheduler) AddCron(name, expr string) error {
	now := time.Now()
	next, err := nextCronOccurrence(expr, now)
	if err != nil {
		return fmt.Errorf("cron %q: %w", expr, err)
	}
	if !hasOccurrenceWithinYear(expr, now) {
		return fmt.Errorf("cron %q has no occurrence within a year", expr)
	}
	s.Add(WakeEvent{Name: name, TriggerAt: next, CronExpr: expr})
	return nil
}

// Remove cancels a pending wakeup by name.
func (s *Scheduler) Remove(name string) {
	select {
	case s.removals <- name:
	case <-s.ctx.Done():
	}
}

func (s *Scheduler) run(onTrigger func(string)) {
	pending := &wakeHeap{}
	heap.Init(pending)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	// arm points the select at the earliest pending wakeup; nil channel
	// when the heap is empty, so the select blocks on adds alone.
	arm := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if pending.Len() == 0 {
			return nil
		}
		wait := time.Until((*pending)[0].TriggerAt)
		if wait > maxSleep {
			wait = maxSleep
		} else if wait < 0 {
			wait = 0
		}
		timer = time.NewTimer(wait)
		return timer.C
	}

	wake := arm()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.adds:
			heapPush(pending, event)
			wake = arm()
		case name := <-s.removals:
			heapRemoveByName(pending, name)
			wake = arm()
		case <-wake:
			fireDue(pending, onTrigger)
			wake = arm()
		}
	}
}

// fireDue pops and triggers every wakeup at or past its time. A
// recurring wakeup goes straight back on the heap at its next cron
// occurrence.
func fireDue(pending *wakeHeap, onTrigger func(string)) {
	now := time.Now()
	for pending.Len() > 0 && !(*pending)[0].TriggerAt.After(now) {
		event := heapPop(pending)
		onTrigger(event.Name)
		if event.CronExpr == "" {
			continue
		}
		if next, err := nextCronOccurrence(event.CronExpr, time.Now()); err == nil {
			heapPush(pending, WakeEvent{Name: event.Name, TriggerAt: next, CronExpr: event.CronExpr})
		}
	}
}

// nextCronOccurrence is the occurrence strictly after start.
func nextCronOccurrence(expr string, start time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, start, false)
}

// hasOccurrenceWithinYear reports whether expr fires at all in the
// year after from. Invalid expressions report false.
func hasOccurrenceWithinYear(expr string, from time.Time) bool {
	next, err := gronx.NextTickAfter(expr, from, false)
	if err != nil {
		return false
	}
	return next.Before(from.AddDate(1, 0, 0))
}
