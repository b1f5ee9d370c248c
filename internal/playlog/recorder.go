package playlog

import (
	"sync"
	"time"

	"github.com/signloop/signloop/pkg/logger"
	"github.com/signloop/signloop/pkg/looplib"
)

// Recorder turns the rotation's playback callbacks into journal rows.
// OnShow remembers when a token went on screen; OnResult measures the
// elapsed time and writes the entry. A journal write failure is logged
// and dropped, playback never waits on the log.
type Recorder struct {
	j   *Journal
	lg  logger.Logger
	now func() time.Time // injection point for tests

	mu      sync.Mutex
	started map[looplib.ShowToken]time.Time
}

// NewRecorder creates a recorder writing to j.
func NewRecorder(j *Journal, lg logger.Logger) *Recorder {
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	return &Recorder{
		j:       j,
		lg:      lg,
		now:     time.Now,
		started: make(map[looplib.ShowToken]time.Time),
	}
}

// OnShow records when a token went on screen. Wire it to the
// rotation's ShowHandler.
func (r *Recorder) OnShow(token looplib.ShowToken, _ looplib.LocalAsset) {
	r.mu.Lock()
	r.started[token] = r.now()
	r.mu.Unlock()
}

// OnResult writes the journal row for a resolved showing. Wire it to
// the rotation's ResultHandler.
func (r *Recorder) OnResult(token looplib.ShowToken, asset looplib.LocalAsset, result looplib.PlayResult, reason string) {
	at := r.now()

	r.mu.Lock()
	started, ok := r.started[token]
	if !ok {
		started = at
	}
	// Tokens only grow, so everything at or below the resolved token
	// is settled. Dropping them here keeps shows that never resolve
	// (program replaced mid-showing) from accumulating.
	for t := range r.started {
		if t <= token {
			delete(r.started, t)
		}
	}
	r.mu.Unlock()

	err := r.j.Record(Entry{
		Asset:     asset.Name,
		Kind:      string(asset.Kind),
		StartedAt: started.UnixMilli(),
		Duration:  int(at.Sub(started) / time.Second),
		Result:    string(result),
		Reason:    reason,
	})
	if err != nil {
		r.lg.Warning("playlog: %s", err.Error())
	}
}
