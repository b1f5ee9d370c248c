package cmd

const DESCRIPTION = `
Signloop is a digital signage player daemon. It keeps a device in
sync with a remote content endpoint, caches the scheduled media
locally and rotates it on screen, surviving network outages by
falling back to whatever was cached last.
`

const (
	RunDescription = `The run command starts the player in the foreground: it
syncs playlists from the content endpoint, downloads the
scheduled media into the local cache and rotates it on the
attached renderer until interrupted.

Configuration comes from SIGNLOOP_* environment variables
(optionally seeded from .env files); the flags below override
single keys for this invocation.

Example:
        signloop run
        signloop run --endpoint https://cms.example.com/api/content

`
	PrefetchDescription = `The prefetch command provisions a device without starting
playback: it fetches the current payload once, resolves the
active playlist and downloads every scheduled asset into the
cache, showing per-file progress. Useful before shipping a
player to a venue with a slow uplink.

Example:
        signloop prefetch

`
	StatusDescription = `The status command asks a running player what it is doing:
sync phase, applied playlist, the asset currently on screen,
cache size and any downloads in flight.

Example:
        signloop status

`
	SyncDescription = `The sync command asks a running player to start a content
sync cycle right away instead of waiting for the next poll.
Requests are coalesced; triggering twice does not queue two
cycles.

Example:
        signloop sync

`
	SkipDescription = `The skip command advances a running player to the next asset
in rotation immediately, without waiting for the current
asset's screen time to elapse.

Example:
        signloop skip

`
	PlaylistDescription = `The playlist command prints the program a running player has
in rotation: every asset with its kind, duration and playing
order.

Example:
        signloop playlist

`
	HistoryDescription = `The history command prints the most recent proof-of-play
journal entries of a running player: what was on screen, when,
for how long, and how each showing ended.

Example:
        signloop history
        signloop history --limit 50

`
	ClearCacheDescription = `The clear-cache command makes a running player delete all
cached media and its manifest, then re-sync from the content
endpoint. Playback continues with whatever the next cycle
downloads.

Example:
        signloop clear-cache

`
)
