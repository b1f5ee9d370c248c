package server

import (
	"context"
	"errors"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/signloop/signloop/common"
	"github.com/signloop/signloop/internal/playlog"
	"github.com/signloop/signloop/pkg/logger"
	"github.com/signloop/signloop/pkg/looplib"
)

// Custom JSON-RPC error codes for player operations.
const (
	codeNothingPlaying  = jrpc2.Code(-32001)
	codeJournalDisabled = jrpc2.Code(-32002)
	codeClearFailed     = jrpc2.Code(-32003)
)

// DEF_HISTORY_LIMIT caps player.history when the client sends no limit.
const DEF_HISTORY_LIMIT = 20

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	Secret    string // Auth token (required -- empty means RPC disabled)
	Version   string // Daemon version
	Commit    string // Git commit
	BuildDate string // Build date
	DeviceId  string // Resolved device identity
	Endpoint  string // Content endpoint the daemon syncs against
}

// RPCServer manages the JSON-RPC 2.0 bridge and method handlers. Every
// method reads the live coordinator and rotation state; nothing is
// cached between calls.
type RPCServer struct {
	bridge    jhttp.Bridge
	secret    string
	version   string
	commit    string
	buildDate string
	device    string
	endpoint  string
	startedAt time.Time

	coord   *looplib.Coordinator
	rot     *looplib.Rotator
	cache   *looplib.AssetCache
	journal *playlog.Journal
	lg      logger.Logger
}

// NewRPCServer creates a new RPCServer with method handlers and HTTP
// bridge. journal may be nil, in which case player.history reports the
// journal as disabled.
func NewRPCServer(cfg *RPCConfig, coord *looplib.Coordinator, rot *looplib.Rotator, cache *looplib.AssetCache, journal *playlog.Journal, lg logger.Logger) *RPCServer {
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	rs := &RPCServer{
		secret:    cfg.Secret,
		version:   cfg.Version,
		commit:    cfg.Commit,
		buildDate: cfg.BuildDate,
		device:    cfg.DeviceId,
		endpoint:  cfg.Endpoint,
		startedAt: time.Now(),
		coord:     coord,
		rot:       rot,
		cache:     cache,
		journal:   journal,
		lg:        lg,
	}

	methods := handler.Map{
		string(common.METHOD_STATUS):      handler.New(rs.playerStatus),
		string(common.METHOD_SYNC):        handler.New(rs.playerSync),
		string(common.METHOD_SKIP):        handler.New(rs.playerSkip),
		string(common.METHOD_PLAYLIST):    handler.New(rs.playerPlaylist),
		string(common.METHOD_HISTORY):     handler.New(rs.playerHistory),
		string(common.METHOD_CLEAR_CACHE): handler.New(rs.cacheClear),
		string(common.METHOD_VERSION):     handler.New(rs.systemVersion),
	}

	rs.bridge = jhttp.NewBridge(methods, nil)
	return rs
}

// programAsset converts a playable asset into its wire form.
func programAsset(a looplib.LocalAsset) common.ProgramAsset {
	return common.ProgramAsset{
		Name:     a.Name,
		Kind:     a.Kind,
		Source:   a.Source,
		Path:     a.Path,
		Duration: a.Duration,
		Order:    a.Order,
	}
}

func (rs *RPCServer) playerStatus(_ context.Context) (*common.StatusResponse, error) {
	sync := rs.coord.Snapshot()
	rot := rs.rot.Snapshot()

	resp := &common.StatusResponse{
		Version:       rs.version,
		Commit:        rs.commit,
		DeviceId:      rs.device,
		Endpoint:      rs.endpoint,
		Phase:         sync.Phase,
		Failures:      sync.Failures,
		LastError:     sync.LastError,
		PlaylistId:    sync.PlaylistId,
		PlaylistName:  sync.PlaylistName,
		AssetCount:    sync.AssetCount,
		State:         rot.State,
		UptimeSeconds: int64(time.Since(rs.startedAt) / time.Second),
	}
	if !sync.LastSync.IsZero() {
		resp.LastSync = sync.LastSync.UnixMilli()
	}
	if rot.Current != nil {
		pa := programAsset(*rot.Current)
		resp.NowShowing = &pa
		resp.ShownAt = rot.ShownAt.UnixMilli()
	}
	if rs.cache != nil {
		size, err := rs.cache.Size()
		if err != nil {
			rs.lg.Warning("status: cache size: %s", err.Error())
		}
		resp.CacheBytes = size
		for _, st := range rs.cache.InFlight() {
			resp.Downloads = append(resp.Downloads, common.DownloadState{
				Name:     st.Name,
				Url:      st.Url,
				Total:    st.Total,
				Received: st.Received(),
			})
		}
	}
	return resp, nil
}

func (rs *RPCServer) playerSync(_ context.Context) (*common.SyncResponse, error) {
	return &common.SyncResponse{Queued: rs.coord.Sync()}, nil
}

func (rs *RPCServer) playerSkip(_ context.Context) (*common.SkipResponse, error) {
	if err := rs.rot.Skip(); err != nil {
		if errors.Is(err, looplib.ErrNothingPlaying) {
			return nil, &jrpc2.Error{Code: codeNothingPlaying, Message: err.Error()}
		}
		return nil, err
	}
	return &common.SkipResponse{Skipped: true}, nil
}

func (rs *RPCServer) playerPlaylist(_ context.Context) (*common.PlaylistResponse, error) {
	sync := rs.coord.Snapshot()
	program := rs.rot.Program()

	resp := &common.PlaylistResponse{
		PlaylistId:   sync.PlaylistId,
		PlaylistName: sync.PlaylistName,
		Assets:       make([]common.ProgramAsset, 0, len(program)),
	}
	for _, a := range program {
		resp.Assets = append(resp.Assets, programAsset(a))
	}
	return resp, nil
}

func (rs *RPCServer) playerHistory(_ context.Context, p *common.HistoryParams) (*common.HistoryResponse, error) {
	if rs.journal == nil {
		return nil, &jrpc2.Error{Code: codeJournalDisabled, Message: "play journal is not enabled"}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DEF_HISTORY_LIMIT
	}
	entries, err := rs.journal.Recent(limit)
	if err != nil {
		return nil, err
	}
	resp := &common.HistoryResponse{Entries: make([]common.PlayEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, common.PlayEntry{
			Asset:     e.Asset,
			Kind:      looplib.ContentKind(e.Kind),
			StartedAt: e.StartedAt,
			Duration:  e.Duration,
			Result:    looplib.PlayResult(e.Result),
			Reason:    e.Reason,
		})
	}
	return resp, nil
}

func (rs *RPCServer) cacheClear(_ context.Context) (*common.ClearCacheResponse, error) {
	if err := rs.coord.ClearCache(); err != nil {
		return nil, &jrpc2.Error{Code: codeClearFailed, Message: err.Error()}
	}
	return &common.ClearCacheResponse{Cleared: true}, nil
}

func (rs *RPCServer) systemVersion(_ context.Context) (*common.VersionResponse, error) {
	return &common.VersionResponse{
		Version:   rs.version,
		Commit:    rs.commit,
		BuildDate: rs.buildDate,
	}, nil
}

// Close shuts down the jrpc2 bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}
