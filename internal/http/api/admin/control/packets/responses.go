package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

// DeviceResponse mirrors model.ScreenDevice with liveness derived from the
// last heartbeat rather than the stored status.
type DeviceResponse struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Location           string  `json:"location"`
	Status             string  `json:"status"`
	Online             bool    `json:"online"`
	AssignedPlaylistID *string `json:"assigned_playlist_id"`
	LastPing           *string `json:"last_ping"`
}

func NewDeviceResponse(d model.ScreenDevice, now time.Time, threshold time.Duration) DeviceResponse {
	out := DeviceResponse{
		ID:                 d.ID,
		Name:               d.Name,
		Location:           d.Location,
		Status:             string(d.EffectiveStatus(now, threshold)),
		Online:             d.IsOnline(now, threshold),
		AssignedPlaylistID: d.AssignedPlaylistID,
	}
	if d.LastPing > 0 {
		s := time.UnixMilli(d.LastPing).UTC().Format(time.RFC3339)
		out.LastPing = &s
	}
	return out
}

// ActiveResponse previews what a device should be showing right now.
type ActiveResponse struct {
	DeviceID   string          `json:"device_id"`
	At         string          `json:"at"`
	Source     string          `json:"source,omitempty"`
	IdleReason string          `json:"idle_reason,omitempty"`
	Playlist   *model.Playlist `json:"playlist"`
}

type UploadResponse struct {
	Media       model.MediaItem `json:"media"`
	ContentType string          `json:"content_type"`
}
