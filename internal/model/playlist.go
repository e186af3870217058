package model

import "slices"

type Playlist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Orientation Orientation    `json:"orientation"`
	Items       []PlaylistItem `json:"items"`
	Schedule    Schedule       `json:"schedule"`
}

// PlaylistItem references a media item by id; Duration overrides the media
// default when positive.
type PlaylistItem struct {
	MediaID  string `json:"mediaId"`
	Duration int    `json:"duration"`
}

// SameItems reports whether both playlists carry identical item lists.
func (p *Playlist) SameItems(other *Playlist) bool {
	return slices.Equal(p.Items, other.Items)
}
