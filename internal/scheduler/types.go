package scheduler

import "time"

// WakeEvent is one pending wakeup. The daemon queues these for cron
// refreshes, schedule-window boundaries and playlog pruning; nothing
// is persisted, wakeups are re-registered on boot.
type WakeEvent struct {
	// Name is the wakeup reason handed to the trigger callback.
	Name string
	// TriggerAt is when the wakeup fires.
	TriggerAt time.Time
	// CronExpr makes the wakeup recurring; after firing it is queued
	// again at the expression's next occurrence. Empty means one-shot.
	CronExpr string
}
