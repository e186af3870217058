package packets

import "github.com/Nixie-Tech-LLC/lumen/internal/model"

type CreateMediaRequest struct {
	Name        string  `json:"name" binding:"required"`
	Type        string  `json:"type" binding:"required,oneof=image video"`
	URL         string  `json:"url"  binding:"required"`
	Duration    int     `json:"duration" binding:"min=0"`
	Orientation *string `json:"orientation" binding:"omitempty,oneof=landscape portrait"`
}

type UpdateMediaRequest struct {
	Name        *string `json:"name"`
	URL         *string `json:"url"`
	Duration    *int    `json:"duration" binding:"omitempty,min=0"`
	Orientation *string `json:"orientation" binding:"omitempty,oneof=landscape portrait"`
}

type PlaylistItemRequest struct {
	MediaID  string `json:"media_id" binding:"required"`
	Duration int    `json:"duration" binding:"min=0"` // seconds; 0 falls back to the media duration
}

type CreatePlaylistRequest struct {
	Name        string                `json:"name" binding:"required"`
	Orientation *string               `json:"orientation" binding:"omitempty,oneof=landscape portrait"`
	Items       []PlaylistItemRequest `json:"items" binding:"dive"`
}

// UpdatePlaylistRequest replaces Items wholesale when present.
type UpdatePlaylistRequest struct {
	Name        *string                `json:"name"`
	Orientation *string                `json:"orientation" binding:"omitempty,oneof=landscape portrait"`
	Items       *[]PlaylistItemRequest `json:"items"`
}

type ScheduleRequest struct {
	Days      []int  `json:"days"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Active    bool   `json:"active"`
	Priority  int    `json:"priority"`
}

func (r ScheduleRequest) Schedule() model.Schedule {
	days := r.Days
	if days == nil {
		days = []int{}
	}
	return model.Schedule{
		Days:      days,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Active:    r.Active,
		Priority:  r.Priority,
	}
}

type UpdateDeviceRequest struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
}

// AssignPlaylistRequest forces a playlist onto a device; null clears it.
type AssignPlaylistRequest struct {
	PlaylistID *string `json:"playlist_id"`
}
