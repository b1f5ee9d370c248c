package common

// Method names of the player control RPC. The daemon registers a handler
// per method and playerctl addresses them by these names, so both sides
// share the one list.
type Method string

const (
	METHOD_STATUS      Method = "player.status"
	METHOD_SYNC        Method = "player.sync"
	METHOD_SKIP        Method = "player.skip"
	METHOD_PLAYLIST    Method = "player.playlist"
	METHOD_HISTORY     Method = "player.history"
	METHOD_CLEAR_CACHE Method = "cache.clear"
	METHOD_VERSION     Method = "system.version"
)

// Message type tags of the display bridge websocket protocol.
type BridgeMessage string

const (
	BRIDGE_SHOW   BridgeMessage = "show"
	BRIDGE_RESULT BridgeMessage = "result"
	BRIDGE_STOP   BridgeMessage = "stop"
)
