package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cws "github.com/coder/websocket"

	"github.com/signloop/signloop/common"
	"github.com/signloop/signloop/pkg/logger"
	"github.com/signloop/signloop/pkg/looplib"
)

type displayFixture struct {
	hub   *DisplayHub
	rot   *looplib.Rotator
	wsURL string
}

// renderer is a test-side display client. A pump goroutine feeds
// incoming bridge messages into msgs, because cancelling a blocked
// websocket read would kill the whole connection.
type renderer struct {
	conn *cws.Conn
	msgs chan map[string]any
}

// newDisplayFixture builds a hub-backed rotation behind an httptest
// server, wired the way the daemon wires it: empty programs and stop
// both blank the screen.
func newDisplayFixture(t *testing.T) *displayFixture {
	t.Helper()
	lg := logger.NewNopLogger()
	hub := NewDisplayHub(lg)
	handlers := &looplib.PlaybackHandlers{
		ProgramHandler: func(assets []looplib.LocalAsset) {
			if len(assets) == 0 {
				hub.NotifyStop()
			}
		},
		StopHandler: hub.NotifyStop,
	}
	rot := looplib.NewRotator(hub, 0, handlers, lg)
	hub.Bind(rot)

	ws := NewWebServer(lg, "127.0.0.1:0", "", "", nil, hub)
	srv := httptest.NewServer(ws.Handler())
	t.Cleanup(func() {
		rot.Stop()
		_ = hub.Close()
		srv.Close()
	})

	return &displayFixture{
		hub:   hub,
		rot:   rot,
		wsURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/display",
	}
}

// dial connects a renderer, waits for the hub to register it and starts
// the message pump.
func (f *displayFixture) dial(t *testing.T) *renderer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := cws.Dial(ctx, f.wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(cws.StatusNormalClosure, "") })

	registered := false
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.hub.Count() > 0 {
			registered = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !registered {
		t.Fatal("renderer was not registered")
	}

	r := &renderer{conn: conn, msgs: make(chan map[string]any, 16)}
	go func() {
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				close(r.msgs)
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			r.msgs <- msg
		}
	}()
	return r
}

// next returns the next bridge message or fails after the timeout.
func (r *renderer) next(t *testing.T, timeout time.Duration) map[string]any {
	t.Helper()
	select {
	case msg, ok := <-r.msgs:
		if !ok {
			t.Fatal("renderer connection closed")
		}
		return msg
	case <-time.After(timeout):
		t.Fatal("timed out waiting for bridge message")
		return nil
	}
}

// silent asserts no bridge message arrives within the window.
func (r *renderer) silent(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case msg := <-r.msgs:
		t.Fatalf("expected no bridge message, got %v", msg)
	case <-time.After(window):
	}
}

func (r *renderer) report(t *testing.T, rep common.RenderReport) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(rep)
	if err := r.conn.Write(ctx, cws.MessageText, data); err != nil {
		t.Fatalf("WebSocket write failed: %v", err)
	}
}

func TestDisplayShowBroadcast(t *testing.T) {
	f := newDisplayFixture(t)
	r := f.dial(t)

	f.rot.SetProgram(testProgram())

	msg := r.next(t, 3*time.Second)
	if msg["type"] != "show" {
		t.Fatalf("expected show command, got %v", msg["type"])
	}
	if msg["name"] != "poster" {
		t.Fatalf("expected poster, got %v", msg["name"])
	}
	if msg["kind"] != "image" {
		t.Fatalf("expected image kind, got %v", msg["kind"])
	}
	if msg["uri"] != "/media/aaaa.jpg" {
		t.Fatalf("expected /media/aaaa.jpg, got %v", msg["uri"])
	}
	if msg["duration"].(float64) != 30 {
		t.Fatalf("expected duration 30, got %v", msg["duration"])
	}
	if msg["token"].(float64) == 0 {
		t.Fatal("expected a non-zero show token")
	}
}

// TestDisplayWebAssetUri verifies web assets keep their source URI
// instead of a media route, since they are never cached.
func TestDisplayWebAssetUri(t *testing.T) {
	f := newDisplayFixture(t)
	r := f.dial(t)

	f.rot.SetProgram([]looplib.LocalAsset{
		{Asset: looplib.Asset{Source: "https://dash.example.test/board", Kind: looplib.KindWeb, Name: "board", Duration: 60, Order: 1}},
	})

	msg := r.next(t, 3*time.Second)
	if msg["uri"] != "https://dash.example.test/board" {
		t.Fatalf("expected source URI for web asset, got %v", msg["uri"])
	}
}

// TestDisplayRenderReportAdvances verifies a failure report for the
// current showing skips to the next asset.
func TestDisplayRenderReportAdvances(t *testing.T) {
	f := newDisplayFixture(t)
	r := f.dial(t)

	f.rot.SetProgram(testProgram())
	first := r.next(t, 3*time.Second)
	if first["name"] != "poster" {
		t.Fatalf("expected poster first, got %v", first["name"])
	}

	r.report(t, common.RenderReport{
		Type:  common.BRIDGE_RESULT,
		Token: uint64(first["token"].(float64)),
		Ok:    false,
		Error: "decode failed",
	})

	next := r.next(t, 3*time.Second)
	if next["name"] != "clip" {
		t.Fatalf("expected clip after failure report, got %v", next["name"])
	}
}

// TestDisplayStaleReportIgnored verifies a report quoting an old token
// does not advance the rotation.
func TestDisplayStaleReportIgnored(t *testing.T) {
	f := newDisplayFixture(t)
	r := f.dial(t)

	f.rot.SetProgram(testProgram())
	first := r.next(t, 3*time.Second)
	token := uint64(first["token"].(float64))

	r.report(t, common.RenderReport{
		Type:  common.BRIDGE_RESULT,
		Token: token - 1,
		Ok:    false,
		Error: "late report from a replaced showing",
	})
	r.silent(t, 400*time.Millisecond)

	// The current token still works.
	r.report(t, common.RenderReport{
		Type:  common.BRIDGE_RESULT,
		Token: token,
		Ok:    false,
		Error: "decode failed",
	})
	next := r.next(t, 3*time.Second)
	if next["name"] != "clip" {
		t.Fatalf("expected clip after current-token report, got %v", next["name"])
	}
}

// TestDisplayOkReportIgnored verifies success reports are informational
// only; the timer owns advancement.
func TestDisplayOkReportIgnored(t *testing.T) {
	f := newDisplayFixture(t)
	r := f.dial(t)

	f.rot.SetProgram(testProgram())
	first := r.next(t, 3*time.Second)

	r.report(t, common.RenderReport{
		Type:  common.BRIDGE_RESULT,
		Token: uint64(first["token"].(float64)),
		Ok:    true,
	})
	r.silent(t, 400*time.Millisecond)

	snap := f.rot.Snapshot()
	if snap.Current == nil || snap.Current.Name != "poster" {
		t.Fatalf("expected poster still on screen, got %+v", snap.Current)
	}
}

// TestDisplayReplayOnConnect verifies a renderer that connects while an
// asset is showing immediately receives the current command.
func TestDisplayReplayOnConnect(t *testing.T) {
	f := newDisplayFixture(t)

	f.rot.SetProgram(testProgram())
	if st := f.rot.Snapshot().State; st != looplib.RotShowing {
		t.Fatalf("expected showing without renderers, got %s", st)
	}

	r := f.dial(t)
	msg := r.next(t, 3*time.Second)
	if msg["type"] != "show" || msg["name"] != "poster" {
		t.Fatalf("expected replayed poster command, got %v", msg)
	}
}

// TestDisplayNoRendererDrop verifies the rotation keeps running with no
// renderer attached.
func TestDisplayNoRendererDrop(t *testing.T) {
	f := newDisplayFixture(t)

	f.rot.SetProgram(testProgram())

	snap := f.rot.Snapshot()
	if snap.State != looplib.RotShowing {
		t.Fatalf("expected showing, got %s", snap.State)
	}
	if f.hub.Count() != 0 {
		t.Fatalf("expected no renderers, got %d", f.hub.Count())
	}
}

// TestDisplayStopBroadcast verifies an empty program blanks connected
// renderers.
func TestDisplayStopBroadcast(t *testing.T) {
	f := newDisplayFixture(t)
	r := f.dial(t)

	f.rot.SetProgram(testProgram())
	r.next(t, 3*time.Second)

	f.rot.SetProgram(nil)
	msg := r.next(t, 3*time.Second)
	if msg["type"] != "stop" {
		t.Fatalf("expected stop command, got %v", msg["type"])
	}
}

// TestDisplayDisconnectUnregisters verifies a closed renderer leaves
// the hub.
func TestDisplayDisconnectUnregisters(t *testing.T) {
	f := newDisplayFixture(t)
	r := f.dial(t)

	r.conn.Close(cws.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.hub.Count() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected renderer to unregister, still %d attached", f.hub.Count())
}

func TestDisplayTwoRenderers(t *testing.T) {
	f := newDisplayFixture(t)
	r1 := f.dial(t)
	r2 := f.dial(t)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && f.hub.Count() < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	if f.hub.Count() != 2 {
		t.Fatalf("expected 2 renderers, got %d", f.hub.Count())
	}

	f.rot.SetProgram(testProgram())
	for _, r := range []*renderer{r1, r2} {
		msg := r.next(t, 3*time.Second)
		if msg["name"] != "poster" {
			t.Fatalf("expected poster on both renderers, got %v", msg["name"])
		}
	}
}
