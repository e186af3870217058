package playback

import (
	"time"

	"github.com/Nixie-Tech-LLC/lumen/internal/model"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
)

// State is the engine's position in its state machine.
type State int

const (
	StateNoDevice State = iota
	StateAwaitingContent
	StatePlaying
	StateFailed
)

var stateNames = []string{"no_device", "awaiting_content", "playing", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Cursor is the player-local playback position. It is never persisted.
type Cursor struct {
	PlaylistID string
	Index      int
	Failed     bool
}

// Status is a read-only view of the engine.
type Status struct {
	State  State
	Cursor Cursor
	Reason scheduler.IdleReason
}

// Presentation asks the renderer to start showing one item. Token identifies
// this presentation in later render events.
type Presentation struct {
	Token      uint64
	PlaylistID string
	Index      int
	Media      model.MediaItem
	Source     model.Source
	YouTubeID  string
	// Duration is how long the item stays up; zero for direct video files,
	// which run until the renderer reports the end of the stream.
	Duration time.Duration
}

type RenderEventKind string

const (
	EventFinished RenderEventKind = "finished"
	EventError    RenderEventKind = "error"
)

// RenderEvent is a renderer callback about a presentation.
type RenderEvent struct {
	Token uint64
	Kind  RenderEventKind
	Err   string
}

// Renderer draws items. Implementations report completion and failures as
// RenderEvents through whatever channel the owner of the engine wires up.
type Renderer interface {
	Present(p Presentation) error
	ShowWaiting(reason scheduler.IdleReason) error
}

// MediaLookup resolves a media id against the current catalog.
type MediaLookup func(id string) (model.MediaItem, bool)
