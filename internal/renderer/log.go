package renderer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/lumen/internal/clock"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
	"github.com/Nixie-Tech-LLC/lumen/internal/playback"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
)

// Log is a headless renderer for running a player without a display. Direct
// video files have no end-of-stream signal here, so Log reports them finished
// after the media duration, or after fallback when the media carries none.
type Log struct {
	logger   zerolog.Logger
	clock    clock.Clock
	fallback time.Duration

	mu      sync.Mutex
	handler func(playback.RenderEvent)
	timer   clock.Timer
}

var _ playback.Renderer = (*Log)(nil)

func NewLog(clk clock.Clock, fallback time.Duration, logger zerolog.Logger) *Log {
	if fallback <= 0 {
		fallback = model.DefaultItemDuration
	}
	return &Log{
		logger:   logger.With().Str("component", "renderer").Logger(),
		clock:    clk,
		fallback: fallback,
	}
}

// Listen delivers the synthetic finished events to handler.
func (l *Log) Listen(handler func(playback.RenderEvent)) {
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
}

func (l *Log) Present(p playback.Presentation) error {
	l.logger.Info().
		Uint64("token", p.Token).
		Str("media_id", p.Media.ID).
		Str("url", p.Media.URL).
		Str("source", string(p.Source)).
		Dur("duration", p.Duration).
		Msg("present")

	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	if p.Source != model.SourceVideoFile || l.handler == nil {
		return nil
	}

	d := model.EffectiveDuration(model.PlaylistItem{}, &p.Media, l.fallback)
	handler, token := l.handler, p.Token
	l.timer = l.clock.AfterFunc(d, func() {
		handler(playback.RenderEvent{Token: token, Kind: playback.EventFinished})
	})
	return nil
}

func (l *Log) ShowWaiting(reason scheduler.IdleReason) error {
	l.mu.Lock()
	l.stopLocked()
	l.mu.Unlock()
	l.logger.Info().Str("reason", string(reason)).Msg("waiting")
	return nil
}

// Close cancels a pending finished event.
func (l *Log) Close() {
	l.mu.Lock()
	l.stopLocked()
	l.mu.Unlock()
}

func (l *Log) stopLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
