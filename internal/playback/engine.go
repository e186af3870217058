// Package playback drives the active playlist of one screen: which item is
// up, when to advance, and how to recover from items that fail to render.
package playback

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/lumen/internal/clock"
	"github.com/Nixie-Tech-LLC/lumen/internal/metrics"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
)

// DefaultFallbackDelay is how long a failed item stays up before skipping.
const DefaultFallbackDelay = 3 * time.Second

var errMediaMissing = errors.New("media item no longer exists")

type Options struct {
	FallbackDelay   time.Duration
	DefaultDuration time.Duration
}

// shown identifies what is on screen so repeated updates do not restart it.
type shown struct {
	index    int
	mediaID  string
	url      string
	typ      model.MediaType
	found    bool
	duration time.Duration
}

// Engine is the playback state machine for one device.
//
// Engine is not safe for concurrent use. Every method, every clock callback
// and every render event must be delivered from the same goroutine; use
// clock.Dispatch to route timer callbacks there.
type Engine struct {
	clock    clock.Clock
	renderer Renderer
	logger   zerolog.Logger
	opts     Options

	state    State
	cursor   Cursor
	reason   scheduler.IdleReason
	waiting  *scheduler.IdleReason
	playlist *model.Playlist
	lookup   MediaLookup

	current shown
	source  model.Source
	token   uint64

	timer    clock.Timer
	timerGen uint64
}

// New creates an engine in the NoDevice state.
func New(clk clock.Clock, renderer Renderer, opts Options, logger zerolog.Logger) *Engine {
	if opts.FallbackDelay <= 0 {
		opts.FallbackDelay = DefaultFallbackDelay
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = model.DefaultItemDuration
	}
	e := &Engine{
		clock:    clk,
		renderer: renderer,
		opts:     opts,
		logger:   logger.With().Str("component", "playback").Logger(),
		lookup:   func(string) (model.MediaItem, bool) { return model.MediaItem{}, false },
	}
	e.setState(StateNoDevice)
	return e
}

// Status returns the current state and cursor.
func (e *Engine) Status() Status {
	return Status{State: e.state, Cursor: e.cursor, Reason: e.reason}
}

// Register moves a fresh engine out of NoDevice once the device identity is
// established.
func (e *Engine) Register() {
	if e.state != StateNoDevice {
		return
	}
	e.setState(StateAwaitingContent)
}

// Update applies a scheduler resolution and the current media catalog.
//
// A different playlist (or a move to or from none) resets the cursor and
// clears any failure. An edit to the same playlist keeps the index when it is
// still in range and resets it to 0 otherwise. Calling Update with unchanged
// input is a no-op.
func (e *Engine) Update(res scheduler.Resolution, lookup MediaLookup) {
	if e.state == StateNoDevice {
		return
	}
	if lookup != nil {
		e.lookup = lookup
	}

	switch scheduler.Compare(e.playlist, res.Playlist) {
	case scheduler.ChangeIdentity:
		e.cancelTimer()
		e.playlist = res.Playlist
		e.cursor = Cursor{}
		if res.Playlist != nil {
			e.cursor.PlaylistID = res.Playlist.ID
		}
		e.current = shown{}
		e.setState(StateAwaitingContent)
		metrics.ActivePlaylistChangesTotal.Inc()
		e.logger.Info().Str("playlist_id", e.cursor.PlaylistID).Str("source", string(res.Source)).
			Msg("active playlist changed")
	case scheduler.ChangeContent:
		e.playlist = res.Playlist
		if e.cursor.Index >= len(res.Playlist.Items) {
			e.cursor.Index = 0
			// the failure belonged to an item that is gone; index 0 has not failed.
			if e.state == StateFailed {
				e.cancelTimer()
				e.cursor.Failed = false
				e.current = shown{}
				e.setState(StateAwaitingContent)
			}
		}
		e.logger.Debug().Str("playlist_id", e.cursor.PlaylistID).Int("index", e.cursor.Index).
			Msg("active playlist items changed")
	default:
		e.playlist = res.Playlist
	}

	if reason := e.idleReason(res.Reason); reason != scheduler.IdleNone || e.playlist == nil {
		e.wait(reason)
		return
	}
	e.reason = scheduler.IdleNone
	e.waiting = nil

	// The fallback timer owns the next transition out of Failed.
	if e.state == StateFailed {
		return
	}
	e.refresh()
}

// HandleRenderEvent reacts to a renderer callback. Events for anything but the
// presentation currently on screen are ignored.
func (e *Engine) HandleRenderEvent(ev RenderEvent) {
	if e.state != StatePlaying || ev.Token != e.token {
		e.logger.Debug().Uint64("token", ev.Token).Str("kind", string(ev.Kind)).Msg("stale render event dropped")
		return
	}
	switch ev.Kind {
	case EventFinished:
		if e.source != model.SourceVideoFile {
			return
		}
		metrics.PlaybackAdvancesTotal.WithLabelValues("finished").Inc()
		e.advance()
	case EventError:
		e.fail(errors.New(ev.Err))
	}
}

// Stop cancels the pending timer and returns the engine to NoDevice.
func (e *Engine) Stop() {
	e.cancelTimer()
	e.token++
	e.playlist = nil
	e.cursor = Cursor{}
	e.current = shown{}
	e.waiting = nil
	e.setState(StateNoDevice)
}

func (e *Engine) idleReason(resolved scheduler.IdleReason) scheduler.IdleReason {
	if e.playlist == nil {
		return resolved
	}
	if len(e.playlist.Items) == 0 {
		return scheduler.IdleEmptyPlaylist
	}
	for _, it := range e.playlist.Items {
		if _, ok := e.lookup(it.MediaID); ok {
			return scheduler.IdleNone
		}
	}
	return scheduler.IdleUnresolvedItems
}

func (e *Engine) wait(reason scheduler.IdleReason) {
	e.cancelTimer()
	e.cursor.Failed = false
	e.current = shown{}
	e.reason = reason
	e.setState(StateAwaitingContent)

	if e.waiting != nil && *e.waiting == reason {
		return
	}
	e.waiting = &reason
	e.logger.Info().Str("reason", string(reason)).Msg("waiting for content")
	if err := e.renderer.ShowWaiting(reason); err != nil {
		e.logger.Warn().Err(err).Msg("renderer could not show waiting screen")
	}
}

// refresh brings the screen in line with the cursor without restarting an
// item that is already showing. A changed duration only re-arms the timer.
func (e *Engine) refresh() {
	next := e.describe()
	if e.state == StatePlaying {
		same := next
		same.duration = e.current.duration
		if same == e.current {
			if next.duration != e.current.duration && e.source.TimerDriven() {
				e.current.duration = next.duration
				e.arm(next.duration, e.onItemTimer)
			}
			return
		}
	}
	e.present()
}

func (e *Engine) describe() shown {
	item := e.playlist.Items[e.cursor.Index]
	media, found := e.lookup(item.MediaID)
	s := shown{index: e.cursor.Index, mediaID: item.MediaID, found: found}
	if found {
		s.url = media.URL
		s.typ = media.Type
		if media.Source().TimerDriven() {
			s.duration = model.EffectiveDuration(item, &media, e.opts.DefaultDuration)
		}
	}
	return s
}

func (e *Engine) present() {
	e.cancelTimer()
	e.token++
	e.current = e.describe()
	e.setState(StatePlaying)

	item := e.playlist.Items[e.cursor.Index]
	media, found := e.lookup(item.MediaID)
	if !found {
		e.source = model.SourceImage
		e.fail(errMediaMissing)
		return
	}

	e.source = media.Source()
	p := Presentation{
		Token:      e.token,
		PlaylistID: e.cursor.PlaylistID,
		Index:      e.cursor.Index,
		Media:      media,
		Source:     e.source,
		Duration:   e.current.duration,
	}
	if e.source == model.SourceYouTube {
		p.YouTubeID, _ = model.YouTubeID(media.URL)
	}

	e.logger.Info().
		Str("playlist_id", p.PlaylistID).
		Int("index", p.Index).
		Str("media_id", media.ID).
		Str("source", string(p.Source)).
		Dur("duration", p.Duration).
		Msg("presenting item")

	if err := e.renderer.Present(p); err != nil {
		e.fail(err)
		return
	}
	if e.source.TimerDriven() {
		e.arm(p.Duration, e.onItemTimer)
	}
}

func (e *Engine) fail(err error) {
	e.cursor.Failed = true
	e.setState(StateFailed)
	metrics.PlaybackFailuresTotal.WithLabelValues(string(e.source)).Inc()
	e.logger.Warn().Err(err).
		Str("playlist_id", e.cursor.PlaylistID).
		Int("index", e.cursor.Index).
		Dur("fallback", e.opts.FallbackDelay).
		Msg("item failed, skipping")
	e.arm(e.opts.FallbackDelay, e.onFallbackTimer)
}

func (e *Engine) onItemTimer() {
	metrics.PlaybackAdvancesTotal.WithLabelValues("timer").Inc()
	e.advance()
}

func (e *Engine) onFallbackTimer() {
	metrics.PlaybackAdvancesTotal.WithLabelValues("failure").Inc()
	e.advance()
}

func (e *Engine) advance() {
	if e.playlist == nil || len(e.playlist.Items) == 0 {
		return
	}
	e.cursor.Index = (e.cursor.Index + 1) % len(e.playlist.Items)
	e.cursor.Failed = false
	e.present()
}

// arm replaces any pending timer. The generation check drops callbacks that
// were already handed to the event loop when the timer was replaced.
func (e *Engine) arm(d time.Duration, fn func()) {
	e.cancelTimer()
	gen := e.timerGen
	e.timer = e.clock.AfterFunc(d, func() {
		if gen != e.timerGen {
			return
		}
		e.timer = nil
		fn()
	})
}

func (e *Engine) cancelTimer() {
	e.timerGen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) setState(s State) {
	e.state = s
	metrics.SetState(s.String(), stateNames)
}
