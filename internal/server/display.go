package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"sync"
	"time"

	cws "github.com/coder/websocket"

	"github.com/signloop/signloop/common"
	"github.com/signloop/signloop/pkg/logger"
	"github.com/signloop/signloop/pkg/looplib"
)

// writeTimeout bounds one websocket write. A renderer that cannot take
// a frame within this window is treated as gone.
const writeTimeout = 2 * time.Second

// DisplayHub fans show commands out to connected renderer websockets
// and relays their render reports back to the rotation. It is the
// DisplaySurface of a daemon running in "ws" display mode.
//
// Renderers are optional: with none connected, show commands drop
// silently and the timer-driven rotation keeps running, so a rebooted
// screen picks the loop back up mid-program. A renderer that connects
// while an asset is showing immediately receives the current command.
type DisplayHub struct {
	lg logger.Logger

	mu      sync.RWMutex
	conns   []*displayConn
	rot     *looplib.Rotator
	lastCmd *common.ShowCommand
}

type displayConn struct {
	conn   *cws.Conn
	cancel context.CancelFunc
}

// Compile-time interface check.
var _ looplib.DisplaySurface = (*DisplayHub)(nil)

// NewDisplayHub creates a hub with no renderers attached.
func NewDisplayHub(lg logger.Logger) *DisplayHub {
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	return &DisplayHub{lg: lg}
}

// Bind points render reports at a rotation. The hub is created before
// the rotation (the rotation wants its display surface up front), so
// binding happens as a second step.
func (h *DisplayHub) Bind(rot *looplib.Rotator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rot = rot
}

// Accept upgrades an HTTP request to a renderer websocket and starts
// its read loop. The renderer page is not same-origin with the daemon,
// so origin checks are off; the bind address is the boundary here.
func (h *DisplayHub) Accept(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, &cws.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.lg.Warning("display: websocket accept: %s", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	dc := &displayConn{conn: conn, cancel: cancel}

	h.mu.Lock()
	h.conns = append(h.conns, dc)
	replay := h.lastCmd
	h.mu.Unlock()
	h.lg.Info("display: renderer connected (%d attached)", h.Count())

	if replay != nil {
		if err := h.write(dc, replay); err != nil {
			h.lg.Warning("display: replay to new renderer: %s", err.Error())
			h.drop(dc)
			return
		}
	}
	go h.readLoop(ctx, dc)
}

// Show broadcasts one show command to every attached renderer. Cached
// media is addressed through the server's /media/ route; web assets
// carry their source URI. Show never fails: renderers that cannot be
// written to are dropped, and having none attached is not an error.
func (h *DisplayHub) Show(req looplib.RenderRequest) error {
	cmd := &common.ShowCommand{
		Type:     common.BRIDGE_SHOW,
		Token:    uint64(req.Token),
		Name:     req.Asset.Name,
		Kind:     req.Asset.Kind,
		Duration: req.Asset.Duration,
	}
	if req.Asset.Kind == looplib.KindWeb {
		cmd.Uri = req.Asset.Source
	} else {
		cmd.Uri = "/media/" + path.Base(req.Asset.Path)
	}

	h.mu.Lock()
	h.lastCmd = cmd
	conns := make([]*displayConn, len(h.conns))
	copy(conns, h.conns)
	h.mu.Unlock()

	if len(conns) == 0 {
		h.lg.Info("display: no renderer attached, dropping show %s", req.Asset.Name)
		return nil
	}
	h.broadcast(conns, cmd)
	return nil
}

// NotifyStop tells every renderer to blank the screen. Fired when the
// rotation stops (empty program or shutdown).
func (h *DisplayHub) NotifyStop() {
	h.mu.Lock()
	h.lastCmd = nil
	conns := make([]*displayConn, len(h.conns))
	copy(conns, h.conns)
	h.mu.Unlock()

	h.broadcast(conns, struct {
		Type common.BridgeMessage `json:"type"`
	}{common.BRIDGE_STOP})
}

// broadcast writes one message to each connection, dropping the ones
// that fail.
func (h *DisplayHub) broadcast(conns []*displayConn, msg any) {
	var failed []*displayConn
	for _, dc := range conns {
		if err := h.write(dc, msg); err != nil {
			h.lg.Warning("display: renderer write failed: %s", err.Error())
			failed = append(failed, dc)
		}
	}
	for _, dc := range failed {
		h.drop(dc)
	}
}

func (h *DisplayHub) write(dc *displayConn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return dc.conn.Write(ctx, cws.MessageText, data)
}

// readLoop consumes render reports from one renderer until it goes
// away. Reports quote the show token, so the rotation can recognize and
// ignore stale ones itself.
func (h *DisplayHub) readLoop(ctx context.Context, dc *displayConn) {
	defer h.drop(dc)
	for {
		_, data, err := dc.conn.Read(ctx)
		if err != nil {
			h.lg.Info("display: renderer disconnected (%d attached)", h.Count()-1)
			return
		}
		var rep common.RenderReport
		if err := json.Unmarshal(data, &rep); err != nil {
			h.lg.Warning("display: bad render report: %s", err.Error())
			continue
		}
		if rep.Type != common.BRIDGE_RESULT {
			continue
		}
		h.mu.RLock()
		rot := h.rot
		h.mu.RUnlock()
		if rot != nil {
			rot.RenderResult(looplib.ShowToken(rep.Token), rep.Ok, rep.Error)
		}
	}
}

// drop removes a connection from the hub and closes it. Safe to call
// twice for the same connection.
func (h *DisplayHub) drop(dc *displayConn) {
	h.mu.Lock()
	removed := false
	for i, c := range h.conns {
		if c == dc {
			h.conns[i] = h.conns[len(h.conns)-1]
			h.conns = h.conns[:len(h.conns)-1]
			removed = true
			break
		}
	}
	h.mu.Unlock()
	if removed {
		dc.cancel()
		_ = dc.conn.Close(cws.StatusNormalClosure, "")
	}
}

// Count returns the number of attached renderers.
func (h *DisplayHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close drops every renderer connection.
func (h *DisplayHub) Close() error {
	h.mu.Lock()
	conns := h.conns
	h.conns = nil
	h.mu.Unlock()
	for _, dc := range conns {
		dc.cancel()
		_ = dc.conn.Close(cws.StatusNormalClosure, "")
	}
	return nil
}
