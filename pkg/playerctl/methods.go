package playerctl

import (
	"github.com/signloop/signloop/common"
)

// Status reports the daemon's sync phase, rotation state and cache use.
func (c *Client) Status() (*common.StatusResponse, error) {
	return invoke[common.StatusResponse](c, common.METHOD_STATUS, nil)
}

// Sync asks for an immediate content cycle. Queued is false when a
// cycle was already pending; that one covers the request.
func (c *Client) Sync() (*common.SyncResponse, error) {
	return invoke[common.SyncResponse](c, common.METHOD_SYNC, nil)
}

// Skip advances past the asset currently on screen.
func (c *Client) Skip() (*common.SkipResponse, error) {
	return invoke[common.SkipResponse](c, common.METHOD_SKIP, nil)
}

// Playlist returns the program currently in rotation.
func (c *Client) Playlist() (*common.PlaylistResponse, error) {
	return invoke[common.PlaylistResponse](c, common.METHOD_PLAYLIST, nil)
}

// History returns the most recent proof-of-play entries, newest first.
// limit <= 0 leaves the count to the daemon.
func (c *Client) History(limit int) (*common.HistoryResponse, error) {
	var params any
	if limit > 0 {
		params = &common.HistoryParams{Limit: limit}
	}
	return invoke[common.HistoryResponse](c, common.METHOD_HISTORY, params)
}

// ClearCache wipes cached media and the manifest and queues a fresh
// sync.
func (c *Client) ClearCache() (*common.ClearCacheResponse, error) {
	return invoke[common.ClearCacheResponse](c, common.METHOD_CLEAR_CACHE, nil)
}

// Version reports the daemon build.
func (c *Client) Version() (*common.VersionResponse, error) {
	return invoke[common.VersionResponse](c, common.METHOD_VERSION, nil)
}
