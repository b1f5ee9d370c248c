package looplib

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock strings are compared lexically, so they must stay zero-padded.
const clockLayout = "15:04:05"

// Playlist is a scheduled group of assets. Schedule fields are optional;
// an absent bound leaves that dimension unbounded. StartTime and EndTime
// hold canonical zero-padded HH:MM:SS strings after payload parsing.
type Playlist struct {
	Id        string
	Name      string
	StartDate string // YYYY-MM-DD, inclusive, empty = unbounded
	EndDate   string // YYYY-MM-DD, inclusive, empty = unbounded
	Weekdays  []string
	StartTime string // HH:MM:SS, inclusive, empty = unbounded
	EndTime   string // HH:MM:SS, inclusive, empty = unbounded
	Default   bool
	Assets    []Asset
}

// Payload is the decoded content endpoint response.
type Payload struct {
	Playlists  []Playlist
	Restarting bool
}

// ActiveAt reports whether the playlist's schedule covers the instant t.
// All three dimensions must agree: calendar date range, weekday set, and
// time-of-day window. A playlist without schedule fields is always active.
func (p *Playlist) ActiveAt(t time.Time) bool {
	if !withinDates(t, p.StartDate, p.EndDate) {
		return false
	}
	if !onWeekday(t, p.Weekdays) {
		return false
	}
	return withinClock(t, p.StartTime, p.EndTime)
}

// withinDates checks the inclusive [start, end] calendar range. Bounds that
// are empty or unparsable do not constrain.
func withinDates(t time.Time, start, end string) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if start != "" {
		if sd, err := time.ParseInLocation(time.DateOnly, start, t.Location()); err == nil {
			if day.Before(sd) {
				return false
			}
		}
	}
	if end != "" {
		if ed, err := time.ParseInLocation(time.DateOnly, end, t.Location()); err == nil {
			if day.After(ed) {
				return false
			}
		}
	}
	return true
}

// onWeekday checks t's weekday against the playlist's set. An empty set
// does not constrain. Names are matched case-insensitively and three-letter
// abbreviations are accepted.
func onWeekday(t time.Time, weekdays []string) bool {
	if len(weekdays) == 0 {
		return true
	}
	want := strings.ToLower(t.Weekday().String())
	for _, wd := range weekdays {
		wd = strings.ToLower(strings.TrimSpace(wd))
		if wd == "" {
			continue
		}
		if wd == want || (len(wd) >= 3 && strings.HasPrefix(want, wd[:3])) {
			return true
		}
	}
	return false
}

// withinClock checks the inclusive [start, end] time-of-day window by
// comparing zero-padded HH:MM:SS strings. Empty bounds do not constrain.
// A window whose start is after its end never matches.
func withinClock(t time.Time, start, end string) bool {
	clock := t.Format(clockLayout)
	if start != "" && clock < start {
		return false
	}
	if end != "" && clock > end {
		return false
	}
	return true
}

// NormalizeClock canonicalizes a wire time string to zero-padded HH:MM:SS.
// Accepts H:M, HH:MM and HH:MM:SS forms. Returns false for anything else.
func NormalizeClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", false
	}
	if len(parts) == 2 {
		parts = append(parts, "0")
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return "", false
		}
		nums[i] = n
	}
	if nums[0] > 23 || nums[1] > 59 || nums[2] > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d:%02d", nums[0], nums[1], nums[2]), true
}

// ResolveActive picks the playlist to play at instant now. The first
// playlist whose schedule matches wins, in payload order. With no match
// the first playlist flagged default is chosen, and failing that the
// first playlist. An empty list resolves to nothing playable.
func ResolveActive(playlists []Playlist, now time.Time) (*Playlist, error) {
	if len(playlists) == 0 {
		return nil, ErrNoValidAssets
	}
	for i := range playlists {
		if playlists[i].ActiveAt(now) {
			return &playlists[i], nil
		}
	}
	for i := range playlists {
		if playlists[i].Default {
			return &playlists[i], nil
		}
	}
	return &playlists[0], nil
}

// NextTransition returns the earliest future instant at which re-resolving
// the playlists could pick a different one: the next start or end of any
// time-of-day window, capped by the next midnight where date ranges and
// weekday sets roll over. The result is always after now.
func NextTransition(playlists []Playlist, now time.Time) time.Time {
	next := midnightAfter(now)
	consider := func(bound string, afterEnd bool) {
		if bound == "" {
			return
		}
		at, err := time.ParseInLocation(clockLayout, bound, now.Location())
		if err != nil {
			return
		}
		candidate := time.Date(
			now.Year(), now.Month(), now.Day(),
			at.Hour(), at.Minute(), at.Second(), 0, now.Location(),
		)
		if afterEnd {
			// The window flips just after an inclusive end bound.
			candidate = candidate.Add(time.Second)
		}
		if candidate.After(now) && candidate.Before(next) {
			next = candidate
		}
	}
	for i := range playlists {
		consider(playlists[i].StartTime, false)
		consider(playlists[i].EndTime, true)
	}
	return next
}

func midnightAfter(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}
