// Package scheduler decides which playlist a screen should be showing.
package scheduler

import (
	"time"

	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

// Source tells where a resolved playlist came from.
type Source string

const (
	SourceNone     Source = ""
	SourceAssigned Source = "assigned"
	SourceSchedule Source = "schedule"
)

// IdleReason explains why nothing is playing.
type IdleReason string

const (
	IdleNone             IdleReason = ""
	IdleNoPlaylists      IdleReason = "no_playlists"
	IdleNothingScheduled IdleReason = "nothing_scheduled"
	IdleAssignedMissing  IdleReason = "assigned_missing"
	IdleEmptyPlaylist    IdleReason = "empty_playlist"
	IdleUnresolvedItems  IdleReason = "unresolved_items"
)

// Options tunes window matching.
type Options struct {
	// AllowOvernight makes a window whose end is before its start wrap past
	// midnight. The day list then names the day the window opens on.
	AllowOvernight bool
}

// Resolution is the outcome of one resolve pass.
type Resolution struct {
	Playlist *model.Playlist
	Source   Source
	Reason   IdleReason
}

// Resolve picks the playlist device should show at now.
//
// A forced assignment always wins; when it points at a playlist that no
// longer exists the result is empty. Otherwise the highest priority playlist
// whose schedule window contains now is chosen, ties going to the earliest
// in playlists' order.
func Resolve(device model.ScreenDevice, playlists []model.Playlist, now time.Time, opts Options) Resolution {
	if device.AssignedPlaylistID != nil {
		for i := range playlists {
			if playlists[i].ID == *device.AssignedPlaylistID {
				return Resolution{Playlist: &playlists[i], Source: SourceAssigned}
			}
		}
		return Resolution{Reason: IdleAssignedMissing}
	}

	if len(playlists) == 0 {
		return Resolution{Reason: IdleNoPlaylists}
	}

	var best *model.Playlist
	for i := range playlists {
		p := &playlists[i]
		if len(p.Items) == 0 || !WindowContains(p.Schedule, now, opts) {
			continue
		}
		if best == nil || p.Schedule.Priority > best.Schedule.Priority {
			best = p
		}
	}
	if best == nil {
		return Resolution{Reason: IdleNothingScheduled}
	}
	return Resolution{Playlist: best, Source: SourceSchedule}
}

// WindowContains reports whether s is active at now. Bounds are inclusive and
// compared as "HH:MM" strings.
func WindowContains(s model.Schedule, now time.Time, opts Options) bool {
	if !s.Active {
		return false
	}
	clock := model.ClockString(now)

	if s.StartTime <= s.EndTime {
		return s.HasDay(now.Weekday()) && s.StartTime <= clock && clock <= s.EndTime
	}
	if !opts.AllowOvernight {
		return false
	}
	if clock >= s.StartTime {
		return s.HasDay(now.Weekday())
	}
	if clock <= s.EndTime {
		return s.HasDay(now.AddDate(0, 0, -1).Weekday())
	}
	return false
}

// Change classifies the difference between two consecutive resolutions.
type Change int

const (
	// ChangeNone: same playlist, same items.
	ChangeNone Change = iota
	// ChangeContent: same playlist id, edited item list.
	ChangeContent
	// ChangeIdentity: a different playlist, or a move to or from none.
	ChangeIdentity
)

func (c Change) String() string {
	switch c {
	case ChangeContent:
		return "content"
	case ChangeIdentity:
		return "identity"
	default:
		return "none"
	}
}

// Compare classifies how next differs from prev.
func Compare(prev, next *model.Playlist) Change {
	switch {
	case prev == nil && next == nil:
		return ChangeNone
	case prev == nil || next == nil || prev.ID != next.ID:
		return ChangeIdentity
	case !prev.SameItems(next):
		return ChangeContent
	default:
		return ChangeNone
	}
}
