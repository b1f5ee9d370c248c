package looplib

import (
	"sync"
	"time"

	"github.com/signloop/signloop/pkg/logger"
)

const (
	// DEF_FLOOR_SECONDS is the minimum screen time for any asset. A
	// payload asking for a 1 second slide still gets this long.
	DEF_FLOOR_SECONDS = 5
)

// RotationState names what the rotation is doing right now.
type RotationState string

const (
	// RotIdle means no program is loaded or the rotation is stopped.
	RotIdle RotationState = "idle"
	// RotShowing means an asset is on screen and its timer is running.
	RotShowing RotationState = "showing"
	// RotTransitioning means the rotation is between assets.
	RotTransitioning RotationState = "transitioning"
)

// RotationSnapshot is a point-in-time view of the rotation for status
// reporting.
type RotationSnapshot struct {
	State      RotationState
	Current    *LocalAsset // nil unless State is RotShowing
	Index      int
	ProgramLen int
	ShownAt    time.Time
	Token      ShowToken
}

// Rotator cycles a program of local assets on a display surface. Each
// asset stays on screen for its own duration (never below the floor),
// then the rotation advances, wrapping at the end of the program. A
// single-asset program is re-shown each cycle so the surface can restart
// videos.
//
// Advancement is timer-driven. The display never reports success; it
// only reports failures through RenderResult, and a failure report for
// the asset currently on screen skips ahead immediately. Reports
// quoting a stale token are ignored, so one bad render cannot skip two
// assets.
type Rotator struct {
	display  DisplaySurface
	handlers *PlaybackHandlers
	lg       logger.Logger
	floor    int
	tick     time.Duration // one second of screen time, shrunk in tests

	mu      sync.Mutex
	state   RotationState
	program []LocalAsset
	index   int
	token   ShowToken
	timer   *time.Timer
	shownAt time.Time
	fails   int
	stopped bool
}

// NewRotator creates a stopped rotation. floorSeconds <= 0 falls back to
// DEF_FLOOR_SECONDS. display may be nil, in which case assets are only
// logged.
func NewRotator(display DisplaySurface, floorSeconds int, handlers *PlaybackHandlers, lg logger.Logger) *Rotator {
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	if display == nil {
		display = &LogDisplay{Logger: lg}
	}
	if handlers == nil {
		handlers = &PlaybackHandlers{}
	}
	handlers.setDefault()
	if floorSeconds <= 0 {
		floorSeconds = DEF_FLOOR_SECONDS
	}
	return &Rotator{
		display:  display,
		handlers: handlers,
		lg:       lg,
		floor:    floorSeconds,
		tick:     time.Second,
		state:    RotIdle,
	}
}

// SetProgram adopts a new asset list. Handing over a list equal to the
// current one is a no-op: the rotation keeps its position and the asset
// on screen keeps its remaining time. A genuinely different list resets
// the rotation to its first asset. An empty list stops playback.
func (r *Rotator) SetProgram(assets []LocalAsset) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	if LocalAssetsEqual(r.program, assets) {
		r.mu.Unlock()
		return
	}

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.program = make([]LocalAsset, len(assets))
	copy(r.program, assets)
	r.index = 0
	r.fails = 0
	r.token++ // invalidate the showing in flight and its pending reports
	program := r.program
	if len(program) == 0 {
		r.state = RotIdle
	}
	r.mu.Unlock()

	r.handlers.ProgramHandler(program)
	if len(program) > 0 {
		r.show()
	}
}

// show puts the asset at the current index on screen and arms its
// advance timer. When the surface rejects an asset outright the rotation
// records the failure and tries the next one; a full program of
// rejections pauses for one floor interval before starting over, so a
// dead renderer does not spin the loop hot.
func (r *Rotator) show() {
	for {
		r.mu.Lock()
		if r.stopped || len(r.program) == 0 {
			r.state = RotIdle
			r.mu.Unlock()
			return
		}
		r.state = RotTransitioning
		r.token++
		tok := r.token
		asset := r.program[r.index]
		r.mu.Unlock()

		err := r.display.Show(RenderRequest{Token: tok, Asset: asset})

		r.mu.Lock()
		if r.stopped || tok != r.token {
			// The program changed while the surface was accepting the
			// request; whoever changed it owns the screen now.
			r.mu.Unlock()
			return
		}

		if err == nil {
			r.state = RotShowing
			r.fails = 0
			r.shownAt = time.Now()
			secs := asset.Duration
			if secs < r.floor {
				secs = r.floor
			}
			r.timer = time.AfterFunc(time.Duration(secs)*r.tick, func() {
				r.resolve(tok, PlayShown, "")
			})
			r.mu.Unlock()

			r.handlers.ShowHandler(tok, asset)
			return
		}

		r.lg.Error("rotation: display rejected %s: %s", asset.Name, err.Error())
		r.fails++
		pause := r.fails >= len(r.program)
		if pause {
			r.fails = 0
			r.timer = time.AfterFunc(time.Duration(r.floor)*r.tick, r.show)
		} else {
			r.index = (r.index + 1) % len(r.program)
		}
		r.mu.Unlock()

		r.handlers.ResultHandler(tok, asset, PlayFailed, err.Error())
		if pause {
			return
		}
	}
}

// resolve ends the current showing with the given result and advances.
// Only a report quoting the current token while an asset is actually on
// screen has any effect; everything else is stale and dropped.
func (r *Rotator) resolve(tok ShowToken, result PlayResult, reason string) {
	r.mu.Lock()
	if r.stopped || r.state != RotShowing || tok != r.token {
		r.mu.Unlock()
		return
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.state = RotTransitioning
	asset := r.program[r.index]
	r.index = (r.index + 1) % len(r.program)
	r.mu.Unlock()

	r.handlers.ResultHandler(tok, asset, result, reason)
	r.show()
}

// RenderResult is how the display reports back about a showing. ok
// reports are informational and ignored (the timer already advances on
// success); a failure report for the current showing skips to the next
// asset immediately.
func (r *Rotator) RenderResult(tok ShowToken, ok bool, reason string) {
	if ok {
		return
	}
	if reason == "" {
		reason = ErrRenderFailed.Error()
	}
	r.resolve(tok, PlayFailed, reason)
}

// Skip advances past the asset currently on screen. Returns
// ErrNothingPlaying when no asset is showing.
func (r *Rotator) Skip() error {
	r.mu.Lock()
	if r.stopped || r.state != RotShowing {
		r.mu.Unlock()
		return ErrNothingPlaying
	}
	tok := r.token
	r.mu.Unlock()

	r.resolve(tok, PlaySkipped, "")
	return nil
}

// Stop halts the rotation permanently. Pending timers are cancelled and
// late reports are dropped. A stopped rotation does not accept a new
// program.
func (r *Rotator) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.state = RotIdle
	r.token++
	r.mu.Unlock()

	r.handlers.StopHandler()
}

// Snapshot returns a point-in-time view of the rotation.
func (r *Rotator) Snapshot() RotationSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := RotationSnapshot{
		State:      r.state,
		Index:      r.index,
		ProgramLen: len(r.program),
		ShownAt:    r.shownAt,
		Token:      r.token,
	}
	if r.state == RotShowing && r.index < len(r.program) {
		cur := r.program[r.index]
		snap.Current = &cur
	}
	return snap
}

// Program returns a copy of the current asset list.
func (r *Rotator) Program() []LocalAsset {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LocalAsset, len(r.program))
	copy(out, r.program)
	return out
}
