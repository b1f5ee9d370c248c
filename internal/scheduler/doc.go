// Package scheduler fires named wakeups for the player daemon. It runs
// a single goroutine over a min-heap of WakeEvents sorted by trigger
// time, with a 60-second max-sleep-cap to handle NTP steps, DST
// transitions and system sleep.
//
// The daemon registers its wakeups at startup: the optional cron
// refresh that forces a sync cycle outside the normal poll interval,
// and the nightly play journal prune. The scheduler does not persist
// state; the heap is rebuilt from configuration on restart.
package scheduler
