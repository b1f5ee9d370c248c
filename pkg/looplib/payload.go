package looplib

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/signloop/signloop/pkg/logger"
)

// Wire shapes of the content endpoint response. Numeric fields arrive as
// quoted strings from some backends and bare numbers from others, so they
// decode through json.RawMessage and a loose parser.
type wirePayload struct {
	Playlists []wirePlaylist `json:"playlists"`
	Functions *wireFunctions `json:"functions"`
}

type wireFunctions struct {
	IsRestarting bool `json:"is_restarting"`
}

type wirePlaylist struct {
	Id        json.RawMessage `json:"id"`
	Name      string          `json:"name"`
	StartDate string          `json:"startdate"`
	EndDate   string          `json:"enddate"`
	Weekdays  []string        `json:"weekdays"`
	StartTime string          `json:"starttime"`
	EndTime   string          `json:"endtime"`
	IsDefault bool            `json:"is_default"`
	Assets    []wireAsset     `json:"assets"`
}

type wireAsset struct {
	Filepath     string          `json:"filepath"`
	Filetype     string          `json:"filetype"`
	Time         json.RawMessage `json:"time"`
	Name         string          `json:"name"`
	PlayingOrder json.RawMessage `json:"playing_order"`
}

// ParsePayload decodes and normalizes a content endpoint response body.
// Structural problems (not a JSON object, playlists missing) fail with
// ErrPayload. Per-asset problems never fail the payload; invalid assets
// are carried through and rejected later by FilterPlayable.
func ParsePayload(data []byte, lg logger.Logger) (*Payload, error) {
	var wp wirePayload
	if err := json.Unmarshal(data, &wp); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPayload, err.Error())
	}
	if wp.Playlists == nil {
		return nil, fmt.Errorf("%w: missing playlists", ErrPayload)
	}

	p := &Payload{
		Playlists: make([]Playlist, 0, len(wp.Playlists)),
	}
	if wp.Functions != nil {
		p.Restarting = wp.Functions.IsRestarting
	}

	for _, rawPl := range wp.Playlists {
		pl := Playlist{
			Id:        looseString(rawPl.Id),
			Name:      rawPl.Name,
			StartDate: normalizeDate(rawPl.StartDate, rawPl.Name, lg),
			EndDate:   normalizeDate(rawPl.EndDate, rawPl.Name, lg),
			Weekdays:  rawPl.Weekdays,
			StartTime: normalizeWireClock(rawPl.StartTime, rawPl.Name, lg),
			EndTime:   normalizeWireClock(rawPl.EndTime, rawPl.Name, lg),
			Default:   rawPl.IsDefault,
			Assets:    make([]Asset, 0, len(rawPl.Assets)),
		}
		for _, rawAs := range rawPl.Assets {
			source := strings.TrimSpace(rawAs.Filepath)
			pl.Assets = append(pl.Assets, Asset{
				Source:   source,
				Type:     normalizeType(rawAs.Filetype),
				Kind:     classifyAsset(source, rawAs.Filetype),
				Name:     rawAs.Name,
				Duration: looseInt(rawAs.Time),
				Order:    looseInt(rawAs.PlayingOrder),
			})
		}
		p.Playlists = append(p.Playlists, pl)
	}
	return p, nil
}

// normalizeDate passes through valid YYYY-MM-DD bounds and drops anything
// else so a typo in one playlist cannot blank the whole screen.
func normalizeDate(s, playlist string, lg logger.Logger) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		lg.Warning("playlist %q: ignoring unparsable date %q", playlist, s)
		return ""
	}
	return s
}

func normalizeWireClock(s, playlist string, lg logger.Logger) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	clock, ok := NormalizeClock(s)
	if !ok {
		lg.Warning("playlist %q: ignoring unparsable time %q", playlist, s)
		return ""
	}
	return clock
}

// looseInt parses a JSON value that is either a quoted string ("30"), a
// bare number (30), or junk. Junk parses to zero, which downstream
// filtering treats as invalid.
func looseInt(raw json.RawMessage) int {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// looseString unquotes a JSON value that may be a string or a number.
func looseString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}
