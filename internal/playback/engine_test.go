package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/lumen/internal/clock"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
)

type fakeRenderer struct {
	presented []Presentation
	waiting   []scheduler.IdleReason
	failWith  error
}

func (r *fakeRenderer) Present(p Presentation) error {
	r.presented = append(r.presented, p)
	return r.failWith
}

func (r *fakeRenderer) ShowWaiting(reason scheduler.IdleReason) error {
	r.waiting = append(r.waiting, reason)
	return nil
}

func (r *fakeRenderer) last() Presentation {
	return r.presented[len(r.presented)-1]
}

func (r *fakeRenderer) indexes() []int {
	out := make([]int, len(r.presented))
	for i, p := range r.presented {
		out[i] = p.Index
	}
	return out
}

type harness struct {
	clock    *clock.Fake
	renderer *fakeRenderer
	engine   *Engine
	media    map[string]model.MediaItem
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.NewFake(time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)),
		renderer: &fakeRenderer{},
		media:    map[string]model.MediaItem{},
	}
	h.engine = New(h.clock, h.renderer, Options{}, zerolog.Nop())
	h.engine.Register()
	return h
}

func (h *harness) lookup(id string) (model.MediaItem, bool) {
	m, ok := h.media[id]
	return m, ok
}

func (h *harness) addImage(id string, seconds int) {
	h.media[id] = model.MediaItem{ID: id, Type: model.MediaImage, URL: "https://cdn.example.com/" + id + ".png", Duration: seconds}
}

func (h *harness) play(p *model.Playlist) {
	h.engine.Update(scheduler.Resolution{Playlist: p, Source: scheduler.SourceSchedule}, h.lookup)
}

func imagePlaylist(h *harness, id string, durations ...int) *model.Playlist {
	p := &model.Playlist{ID: id}
	for i, d := range durations {
		mediaID := id + "-m" + string(rune('a'+i))
		h.addImage(mediaID, 0)
		p.Items = append(p.Items, model.PlaylistItem{MediaID: mediaID, Duration: d})
	}
	return p
}

func TestEngineIgnoresUpdatesBeforeRegistration(t *testing.T) {
	r := &fakeRenderer{}
	e := New(clock.NewFake(time.Unix(0, 0)), r, Options{}, zerolog.Nop())

	e.Update(scheduler.Resolution{Playlist: &model.Playlist{ID: "p", Items: []model.PlaylistItem{{MediaID: "x"}}}}, nil)
	assert.Equal(t, StateNoDevice, e.Status().State)
	assert.Empty(t, r.presented)

	e.Register()
	assert.Equal(t, StateAwaitingContent, e.Status().State)
}

func TestEngineThreeImagesOverSixteenSeconds(t *testing.T) {
	h := newHarness(t)
	p := imagePlaylist(h, "loop", 5, 5, 5)

	h.play(p)
	for i := 0; i < 16; i++ {
		h.clock.Advance(time.Second)
		h.play(p) // poll ticks with unchanged input are no-ops
	}

	assert.Equal(t, []int{0, 1, 2, 0}, h.renderer.indexes(), "exactly three advances")
	assert.Equal(t, StatePlaying, h.engine.Status().State)
	assert.Equal(t, 0, h.engine.Status().Cursor.Index)
}

func TestEngineWrapsAround(t *testing.T) {
	for n := 1; n <= 4; n++ {
		h := newHarness(t)
		durations := make([]int, n)
		for i := range durations {
			durations[i] = 2
		}
		h.play(imagePlaylist(h, "wrap", durations...))

		h.clock.Advance(time.Duration(2*(n-1)) * time.Second)
		require.Equal(t, n-1, h.engine.Status().Cursor.Index)

		h.clock.Advance(2 * time.Second)
		assert.Equal(t, 0, h.engine.Status().Cursor.Index, "n=%d", n)
		assert.Len(t, h.renderer.presented, n+1)
	}
}

func TestEngineDurationFallbacks(t *testing.T) {
	h := newHarness(t)
	h.media["own"] = model.MediaItem{ID: "own", Type: model.MediaImage, Duration: 7}
	h.media["none"] = model.MediaItem{ID: "none", Type: model.MediaImage}
	p := &model.Playlist{ID: "p", Items: []model.PlaylistItem{
		{MediaID: "own"},
		{MediaID: "none"},
		{MediaID: "own", Duration: 4},
	}}

	h.play(p)
	assert.Equal(t, 7*time.Second, h.renderer.last().Duration)
	h.clock.Advance(7 * time.Second)
	assert.Equal(t, model.DefaultItemDuration, h.renderer.last().Duration)
	h.clock.Advance(model.DefaultItemDuration)
	assert.Equal(t, 4*time.Second, h.renderer.last().Duration)
}

func TestEngineDirectVideoWaitsForFinished(t *testing.T) {
	h := newHarness(t)
	h.media["clip"] = model.MediaItem{ID: "clip", Type: model.MediaVideo, URL: "https://cdn.example.com/clip.mp4", Duration: 5}
	h.addImage("still", 5)
	p := &model.Playlist{ID: "p", Items: []model.PlaylistItem{{MediaID: "clip"}, {MediaID: "still"}}}

	h.play(p)
	first := h.renderer.last()
	assert.Equal(t, model.SourceVideoFile, first.Source)
	assert.Zero(t, first.Duration)
	assert.Equal(t, 0, h.clock.Pending(), "no timer for direct video")

	h.clock.Advance(time.Minute)
	assert.Equal(t, 0, h.engine.Status().Cursor.Index)

	h.engine.HandleRenderEvent(RenderEvent{Token: first.Token - 1, Kind: EventFinished})
	assert.Equal(t, 0, h.engine.Status().Cursor.Index, "stale token ignored")

	h.engine.HandleRenderEvent(RenderEvent{Token: first.Token, Kind: EventFinished})
	assert.Equal(t, 1, h.engine.Status().Cursor.Index)

	// finished means nothing for an image
	h.engine.HandleRenderEvent(RenderEvent{Token: h.renderer.last().Token, Kind: EventFinished})
	assert.Equal(t, 1, h.engine.Status().Cursor.Index)
}

func TestEngineYouTubeIsTimerDriven(t *testing.T) {
	h := newHarness(t)
	h.media["yt"] = model.MediaItem{ID: "yt", Type: model.MediaVideo, URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Duration: 30}
	h.addImage("still", 5)
	p := &model.Playlist{ID: "p", Items: []model.PlaylistItem{{MediaID: "yt", Duration: 12}, {MediaID: "still"}}}

	h.play(p)
	yt := h.renderer.last()
	assert.Equal(t, model.SourceYouTube, yt.Source)
	assert.Equal(t, "dQw4w9WgXcQ", yt.YouTubeID)
	assert.Equal(t, 12*time.Second, yt.Duration)

	h.engine.HandleRenderEvent(RenderEvent{Token: yt.Token, Kind: EventFinished})
	assert.Equal(t, 0, h.engine.Status().Cursor.Index, "embedded players do not drive advancing")

	h.clock.Advance(12 * time.Second)
	assert.Equal(t, 1, h.engine.Status().Cursor.Index)
}

func TestEngineFailureSkipsAfterFallback(t *testing.T) {
	h := newHarness(t)
	p := imagePlaylist(h, "p", 10, 10, 10)

	h.play(p)
	tok := h.renderer.last().Token
	h.engine.HandleRenderEvent(RenderEvent{Token: tok, Kind: EventError, Err: "404"})

	st := h.engine.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.True(t, st.Cursor.Failed)
	assert.Equal(t, 1, h.clock.Pending(), "fallback replaces the item timer")

	// a second error for the same item does not re-enter Failed
	h.engine.HandleRenderEvent(RenderEvent{Token: tok, Kind: EventError, Err: "404"})
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, StateFailed, h.engine.Status().State)

	h.clock.Advance(time.Second)
	st = h.engine.Status()
	assert.Equal(t, StatePlaying, st.State)
	assert.False(t, st.Cursor.Failed)
	assert.Equal(t, 1, st.Cursor.Index)

	h.clock.Advance(9 * time.Second)
	assert.Equal(t, 1, h.engine.Status().Cursor.Index, "next item runs its own duration")
	h.clock.Advance(time.Second)
	assert.Equal(t, 2, h.engine.Status().Cursor.Index)
}

func TestEngineFailureOnLastItemWraps(t *testing.T) {
	h := newHarness(t)
	p := imagePlaylist(h, "p", 1, 1)

	h.play(p)
	h.clock.Advance(time.Second)
	require.Equal(t, 1, h.engine.Status().Cursor.Index)

	h.engine.HandleRenderEvent(RenderEvent{Token: h.renderer.last().Token, Kind: EventError})
	h.clock.Advance(DefaultFallbackDelay)
	assert.Equal(t, 0, h.engine.Status().Cursor.Index)
	assert.Equal(t, StatePlaying, h.engine.Status().State)
}

func TestEngineDanglingMediaIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.addImage("ok", 5)
	p := &model.Playlist{ID: "p", Items: []model.PlaylistItem{{MediaID: "gone"}, {MediaID: "ok"}}}

	h.play(p)
	assert.Equal(t, StateFailed, h.engine.Status().State)
	assert.Empty(t, h.renderer.presented)

	h.clock.Advance(DefaultFallbackDelay)
	assert.Equal(t, StatePlaying, h.engine.Status().State)
	assert.Equal(t, "ok", h.renderer.last().Media.ID)
}

func TestEngineRendererRejectsPresentation(t *testing.T) {
	h := newHarness(t)
	h.renderer.failWith = errors.New("unsupported")
	h.play(imagePlaylist(h, "p", 5, 5))

	assert.Equal(t, StateFailed, h.engine.Status().State)
	h.renderer.failWith = nil
	h.clock.Advance(DefaultFallbackDelay)
	assert.Equal(t, StatePlaying, h.engine.Status().State)
	assert.Equal(t, 1, h.engine.Status().Cursor.Index)
}

func TestEngineDurationEditKeepsIndex(t *testing.T) {
	h := newHarness(t)
	p := imagePlaylist(h, "p", 5, 5, 5)
	h.play(p)
	h.clock.Advance(5 * time.Second)
	require.Equal(t, 1, h.engine.Status().Cursor.Index)
	presented := len(h.renderer.presented)

	edited := *p
	edited.Items = append([]model.PlaylistItem(nil), p.Items...)
	edited.Items[1].Duration = 20
	h.play(&edited)

	assert.Equal(t, 1, h.engine.Status().Cursor.Index)
	assert.Len(t, h.renderer.presented, presented, "same item is not re-presented")
	assert.Equal(t, 1, h.clock.Pending())

	h.clock.Advance(19 * time.Second)
	assert.Equal(t, 1, h.engine.Status().Cursor.Index, "timer re-armed with the new duration")
	h.clock.Advance(time.Second)
	assert.Equal(t, 2, h.engine.Status().Cursor.Index)
}

func TestEngineContentEditClampsOutOfRange(t *testing.T) {
	h := newHarness(t)
	p := imagePlaylist(h, "p", 5, 5, 5)
	h.play(p)
	h.clock.Advance(10 * time.Second)
	require.Equal(t, 2, h.engine.Status().Cursor.Index)

	shorter := *p
	shorter.Items = p.Items[:2]
	h.play(&shorter)

	st := h.engine.Status()
	assert.Equal(t, 0, st.Cursor.Index)
	assert.Equal(t, "p", st.Cursor.PlaylistID)
	assert.Equal(t, StatePlaying, st.State)
}

func TestEngineShrinkWhileFailedShowsFirstItem(t *testing.T) {
	h := newHarness(t)
	p := imagePlaylist(h, "p", 5, 5, 5)
	h.play(p)
	h.clock.Advance(10 * time.Second)
	require.Equal(t, 2, h.engine.Status().Cursor.Index)
	h.engine.HandleRenderEvent(RenderEvent{Token: h.renderer.last().Token, Kind: EventError, Err: "decode failed"})
	require.Equal(t, StateFailed, h.engine.Status().State)

	shorter := *p
	shorter.Items = p.Items[:2]
	h.play(&shorter)

	st := h.engine.Status()
	assert.Equal(t, StatePlaying, st.State)
	assert.Equal(t, Cursor{PlaylistID: "p", Index: 0}, st.Cursor)
	assert.Equal(t, []int{0, 1, 2, 0}, h.renderer.indexes())

	// the stale fallback timer must not skip past item 0
	h.clock.Advance(3 * time.Second)
	assert.Equal(t, 0, h.engine.Status().Cursor.Index)
	assert.Equal(t, []int{0, 1, 2, 0}, h.renderer.indexes())

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, []int{0, 1, 2, 0, 1}, h.renderer.indexes())
}

func TestEngineIdentityChangeResets(t *testing.T) {
	h := newHarness(t)
	a := imagePlaylist(h, "a", 5, 5, 5)
	b := imagePlaylist(h, "b", 5, 5)

	h.play(a)
	h.clock.Advance(5 * time.Second)
	h.engine.HandleRenderEvent(RenderEvent{Token: h.renderer.last().Token, Kind: EventError})
	require.True(t, h.engine.Status().Cursor.Failed)

	h.play(b)
	st := h.engine.Status()
	assert.Equal(t, Cursor{PlaylistID: "b", Index: 0}, st.Cursor)
	assert.Equal(t, StatePlaying, st.State)
	assert.Equal(t, 1, h.clock.Pending(), "fallback timer was cancelled")
	assert.Equal(t, "b", h.renderer.last().PlaylistID)
}

func TestEngineWaitingReasons(t *testing.T) {
	h := newHarness(t)

	h.engine.Update(scheduler.Resolution{Reason: scheduler.IdleNoPlaylists}, h.lookup)
	h.engine.Update(scheduler.Resolution{Reason: scheduler.IdleNoPlaylists}, h.lookup)
	assert.Equal(t, []scheduler.IdleReason{scheduler.IdleNoPlaylists}, h.renderer.waiting)

	h.engine.Update(scheduler.Resolution{Reason: scheduler.IdleNothingScheduled}, h.lookup)
	assert.Equal(t, scheduler.IdleNothingScheduled, h.engine.Status().Reason)

	h.play(&model.Playlist{ID: "empty"})
	assert.Equal(t, scheduler.IdleEmptyPlaylist, h.engine.Status().Reason)

	h.play(&model.Playlist{ID: "dangling", Items: []model.PlaylistItem{{MediaID: "gone"}}})
	assert.Equal(t, scheduler.IdleUnresolvedItems, h.engine.Status().Reason)
	assert.Equal(t, StateAwaitingContent, h.engine.Status().State)
	assert.Empty(t, h.renderer.presented)
}

func TestEnginePlayingToWaiting(t *testing.T) {
	h := newHarness(t)
	h.play(imagePlaylist(h, "p", 5))
	require.Equal(t, StatePlaying, h.engine.Status().State)

	h.engine.Update(scheduler.Resolution{Reason: scheduler.IdleNothingScheduled}, h.lookup)
	assert.Equal(t, StateAwaitingContent, h.engine.Status().State)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestEngineMediaEditRepresents(t *testing.T) {
	h := newHarness(t)
	p := imagePlaylist(h, "p", 5, 5)
	h.play(p)
	first := h.renderer.last()

	m := h.media[first.Media.ID]
	m.URL = "https://cdn.example.com/replaced.png"
	h.media[m.ID] = m
	h.play(p)

	assert.Len(t, h.renderer.presented, 2)
	assert.Equal(t, "https://cdn.example.com/replaced.png", h.renderer.last().Media.URL)
	assert.Equal(t, 0, h.engine.Status().Cursor.Index)
}

func TestEngineStopCancelsTimers(t *testing.T) {
	h := newHarness(t)
	h.play(imagePlaylist(h, "p", 5, 5))
	require.Equal(t, 1, h.clock.Pending())

	h.engine.Stop()
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, StateNoDevice, h.engine.Status().State)

	h.clock.Advance(time.Minute)
	assert.Len(t, h.renderer.presented, 1)
}

func TestEngineStaleDispatchedTimerIsDropped(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	var queue []func()
	r := &fakeRenderer{}
	e := New(clock.Dispatch(fake, func(f func()) { queue = append(queue, f) }), r, Options{}, zerolog.Nop())
	e.Register()

	media := map[string]model.MediaItem{
		"a": {ID: "a", Type: model.MediaImage},
		"b": {ID: "b", Type: model.MediaImage},
	}
	lookup := func(id string) (model.MediaItem, bool) { m, ok := media[id]; return m, ok }
	p := &model.Playlist{ID: "p", Items: []model.PlaylistItem{{MediaID: "a", Duration: 5}, {MediaID: "b", Duration: 5}}}
	e.Update(scheduler.Resolution{Playlist: p}, lookup)

	// The timer fires and is queued, then the playlist changes before the
	// queued callback runs.
	fake.Advance(5 * time.Second)
	require.Len(t, queue, 1)
	e.Update(scheduler.Resolution{Playlist: &model.Playlist{ID: "q", Items: p.Items}}, lookup)

	queue[0]()
	assert.Equal(t, 0, e.Status().Cursor.Index)
	assert.Equal(t, "q", e.Status().Cursor.PlaylistID)
}
