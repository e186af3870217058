package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestYouTubeID(t *testing.T) {
	cases := []struct {
		url  string
		id   string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/u/w/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://cdn.example.com/media/promo.mp4", "", false},
		{"https://youtu.be/short", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			id, ok := YouTubeID(tc.url)
			assert.Equal(t, tc.want, ok)
			assert.Equal(t, tc.id, id)
		})
	}
}

func TestMediaItemSource(t *testing.T) {
	assert.Equal(t, SourceImage, MediaItem{Type: MediaImage, URL: "https://x/y.png"}.Source())
	assert.Equal(t, SourceVideoFile, MediaItem{Type: MediaVideo, URL: "https://x/y.mp4"}.Source())
	assert.Equal(t, SourceYouTube, MediaItem{Type: MediaVideo, URL: "https://youtu.be/dQw4w9WgXcQ"}.Source())
	assert.Equal(t, SourceImage, MediaItem{Type: "html", URL: "https://x"}.Source())

	assert.True(t, SourceImage.TimerDriven())
	assert.True(t, SourceYouTube.TimerDriven())
	assert.False(t, SourceVideoFile.TimerDriven())
}

func TestEffectiveDuration(t *testing.T) {
	media := &MediaItem{Duration: 7}

	assert.Equal(t, 5*time.Second, EffectiveDuration(PlaylistItem{Duration: 5}, media, 0))
	assert.Equal(t, 7*time.Second, EffectiveDuration(PlaylistItem{}, media, 0))
	assert.Equal(t, DefaultItemDuration, EffectiveDuration(PlaylistItem{}, &MediaItem{}, 0))
	assert.Equal(t, DefaultItemDuration, EffectiveDuration(PlaylistItem{}, nil, 0))
	assert.Equal(t, 3*time.Second, EffectiveDuration(PlaylistItem{}, nil, 3*time.Second))
}
