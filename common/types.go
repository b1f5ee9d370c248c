package common

import "github.com/signloop/signloop/pkg/looplib"

// ProgramAsset is the wire form of one asset of the applied program.
type ProgramAsset struct {
	Name     string              `json:"name"`
	Kind     looplib.ContentKind `json:"kind"`
	Source   string              `json:"source"`
	Path     string              `json:"path,omitempty"`
	Duration int                 `json:"duration"`
	Order    int                 `json:"order"`
}

// DownloadState reports one in-flight cache download.
type DownloadState struct {
	Name     string `json:"name"`
	Url      string `json:"url"`
	Total    int64  `json:"total"`
	Received int64  `json:"received"`
}

// StatusResponse is the player.status answer. LastSync and ShownAt are
// unix milliseconds.
type StatusResponse struct {
	Version       string                `json:"version"`
	Commit        string                `json:"commit,omitempty"`
	DeviceId      string                `json:"device_id"`
	Endpoint      string                `json:"endpoint"`
	Phase         looplib.SyncPhase     `json:"phase"`
	Failures      int                   `json:"failures,omitempty"`
	LastError     string                `json:"last_error,omitempty"`
	LastSync      int64                 `json:"last_sync,omitempty"`
	PlaylistId    string                `json:"playlist_id,omitempty"`
	PlaylistName  string                `json:"playlist_name,omitempty"`
	AssetCount    int                   `json:"asset_count"`
	State         looplib.RotationState `json:"state"`
	NowShowing    *ProgramAsset         `json:"now_showing,omitempty"`
	ShownAt       int64                 `json:"shown_at,omitempty"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	CacheBytes    int64                 `json:"cache_bytes"`
	Downloads     []DownloadState       `json:"downloads,omitempty"`
}

type SyncResponse struct {
	// Queued is false when a cycle was already pending; the pending one
	// covers the request.
	Queued bool `json:"queued"`
}

type SkipResponse struct {
	Skipped bool `json:"skipped"`
}

type PlaylistResponse struct {
	PlaylistId   string         `json:"playlist_id,omitempty"`
	PlaylistName string         `json:"playlist_name,omitempty"`
	Assets       []ProgramAsset `json:"assets"`
}

type HistoryParams struct {
	Limit int `json:"limit,omitempty"`
}

// PlayEntry is one proof-of-play journal record. StartedAt is unix
// milliseconds.
type PlayEntry struct {
	Asset     string              `json:"asset"`
	Kind      looplib.ContentKind `json:"kind"`
	StartedAt int64               `json:"started_at"`
	Duration  int                 `json:"duration"`
	Result    looplib.PlayResult  `json:"result"`
	Reason    string              `json:"reason,omitempty"`
}

type HistoryResponse struct {
	Entries []PlayEntry `json:"entries"`
}

type ClearCacheResponse struct {
	Cleared bool `json:"cleared"`
}

type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

// ShowCommand is the display bridge's order to put an asset on screen.
// Cached media is addressed through the control server's /media/ route;
// web assets carry their source URI directly.
type ShowCommand struct {
	Type     BridgeMessage       `json:"type"`
	Token    uint64              `json:"token"`
	Name     string              `json:"name"`
	Kind     looplib.ContentKind `json:"kind"`
	Uri      string              `json:"uri"`
	Duration int                 `json:"duration"`
}

// RenderReport is the renderer's answer about one showing.
type RenderReport struct {
	Type  BridgeMessage `json:"type"`
	Token uint64        `json:"token"`
	Ok    bool          `json:"ok"`
	Error string        `json:"error,omitempty"`
}
