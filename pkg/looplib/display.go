package looplib

import (
	"github.com/signloop/signloop/pkg/logger"
)

// ShowToken identifies one showing of one asset. Every time the rotation
// puts an asset on screen it mints a fresh token, and every report about
// that showing must quote it. Stale reports (from a showing that has
// already been replaced) are recognized by their token and ignored.
type ShowToken uint64

// RenderRequest asks the display surface to put one asset on screen.
type RenderRequest struct {
	Token ShowToken
	Asset LocalAsset
}

// DisplaySurface is the output side of the rotation. Show must return
// quickly; rendering happens elsewhere and failures are reported back
// asynchronously through Rotator.RenderResult. A non-nil error from Show
// itself means the surface could not even accept the request.
type DisplaySurface interface {
	Show(req RenderRequest) error
}

// PlayResult is the terminal outcome of one showing.
type PlayResult string

const (
	// PlayShown means the asset ran its full screen time.
	PlayShown PlayResult = "shown"
	// PlayFailed means the display reported a render failure.
	PlayFailed PlayResult = "failed"
	// PlaySkipped means an operator skipped the asset early.
	PlaySkipped PlayResult = "skipped"
)

// PlaybackHandlers carries optional callbacks fired by the rotation.
// Any or all fields may be nil; missing handlers are replaced with no-ops.
type PlaybackHandlers struct {
	// ShowHandler fires when an asset goes on screen.
	ShowHandler func(token ShowToken, asset LocalAsset)
	// ResultHandler fires when a showing resolves, with how it ended.
	// reason is non-empty only for PlayFailed.
	ResultHandler func(token ShowToken, asset LocalAsset, result PlayResult, reason string)
	// ProgramHandler fires when the rotation adopts a new asset list.
	ProgramHandler func(assets []LocalAsset)
	// StopHandler fires when the rotation shuts down.
	StopHandler func()
}

func (h *PlaybackHandlers) setDefault() {
	if h.ShowHandler == nil {
		h.ShowHandler = func(_ ShowToken, _ LocalAsset) {}
	}
	if h.ResultHandler == nil {
		h.ResultHandler = func(_ ShowToken, _ LocalAsset, _ PlayResult, _ string) {}
	}
	if h.ProgramHandler == nil {
		h.ProgramHandler = func(_ []LocalAsset) {}
	}
	if h.StopHandler == nil {
		h.StopHandler = func() {}
	}
}

// LogDisplay is a DisplaySurface that only logs what it is told to show.
// It stands in when no renderer is attached, so a headless player keeps
// rotating and journaling as if a screen were present.
type LogDisplay struct {
	Logger logger.Logger
}

// Compile-time interface check.
var _ DisplaySurface = (*LogDisplay)(nil)

// Show logs the asset that would be rendered.
func (d *LogDisplay) Show(req RenderRequest) error {
	lg := d.Logger
	if lg == nil {
		return nil
	}
	if req.Asset.Kind == KindWeb {
		lg.Info("display: showing %s (%s) from %s for %ds",
			req.Asset.Name, req.Asset.Kind, req.Asset.Source, req.Asset.Duration)
		return nil
	}
	lg.Info("display: showing %s (%s) from %s for %ds",
		req.Asset.Name, req.Asset.Kind, req.Asset.Path, req.Asset.Duration)
	return nil
}
