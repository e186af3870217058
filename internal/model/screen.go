package model

import "time"

type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
)

// DefaultPresenceThreshold is how long a heartbeat keeps a device online.
const DefaultPresenceThreshold = 60 * time.Second

// ScreenDevice represents a player registered in the devices collection.
type ScreenDevice struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Location           string       `json:"location"`
	Status             DeviceStatus `json:"status"`
	AssignedPlaylistID *string      `json:"assignedPlaylistId"`
	LastPing           int64        `json:"lastPing"`
}

// IsOnline derives liveness from the last heartbeat. The stored Status is a
// hint only.
func (d ScreenDevice) IsOnline(now time.Time, threshold time.Duration) bool {
	if d.LastPing == 0 {
		return false
	}
	if threshold <= 0 {
		threshold = DefaultPresenceThreshold
	}
	return now.Sub(time.UnixMilli(d.LastPing)) < threshold
}

// EffectiveStatus is the status readers should display.
func (d ScreenDevice) EffectiveStatus(now time.Time, threshold time.Duration) DeviceStatus {
	if d.IsOnline(now, threshold) {
		return StatusOnline
	}
	return StatusOffline
}
