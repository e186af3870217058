package model

import (
	"regexp"
	"time"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// MediaItem is one entry of the media collection. URL holds either a remote
// reference or an embedded data: payload.
type MediaItem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        MediaType   `json:"type"`
	URL         string      `json:"url"`
	Duration    int         `json:"duration"`
	Orientation Orientation `json:"orientation"`
}

// Source is how the player has to present a media item.
type Source string

const (
	SourceImage     Source = "image"
	SourceVideoFile Source = "video_file"
	SourceYouTube   Source = "youtube"
)

// Source classifies the item. Unknown types are presented like images.
func (m MediaItem) Source() Source {
	if m.Type != MediaVideo {
		return SourceImage
	}
	if _, ok := YouTubeID(m.URL); ok {
		return SourceYouTube
	}
	return SourceVideoFile
}

// TimerDriven reports whether advancing past this source relies on a timer
// rather than an end-of-stream signal from the renderer.
func (s Source) TimerDriven() bool {
	return s != SourceVideoFile
}

var youtubeIDPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// YouTubeID extracts the 11 character video id from the usual YouTube URL shapes.
func YouTubeID(rawURL string) (string, bool) {
	m := youtubeIDPattern.FindStringSubmatch(rawURL)
	if m == nil || len(m[2]) != 11 {
		return "", false
	}
	return m[2], true
}

// DefaultItemDuration is used when neither the playlist item nor the media carry one.
const DefaultItemDuration = 10 * time.Second

// EffectiveDuration picks the item override, then the media default, then fallback.
func EffectiveDuration(item PlaylistItem, media *MediaItem, fallback time.Duration) time.Duration {
	if item.Duration > 0 {
		return time.Duration(item.Duration) * time.Second
	}
	if media != nil && media.Duration > 0 {
		return time.Duration(media.Duration) * time.Second
	}
	if fallback <= 0 {
		return DefaultItemDuration
	}
	return fallback
}
