// Package player wires the catalog, scheduler, playback engine and presence
// reporter of one screen around a single event loop.
package player

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/lumen/internal/catalog"
	"github.com/Nixie-Tech-LLC/lumen/internal/clock"
	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
	"github.com/Nixie-Tech-LLC/lumen/internal/playback"
	"github.com/Nixie-Tech-LLC/lumen/internal/presence"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
)

// DefaultPollInterval is how often the schedule is re-evaluated without pushes.
const DefaultPollInterval = 2 * time.Second

type Options struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	Scheduler         scheduler.Options
	Playback          playback.Options
	// Executor defaults to a Loop started by Run.
	Executor Executor
}

// Player owns all mutable playback state. Everything except Status runs on
// the executor.
type Player struct {
	deviceID string
	store    datastore.Store
	clock    clock.Clock
	exec     Executor
	opts     Options
	logger   zerolog.Logger

	catalog  *catalog.Catalog
	engine   *playback.Engine
	presence *presence.Reporter

	status atomic.Pointer[playback.Status]

	mu      sync.Mutex
	cancels []func()
	poll    clock.Timer
	pollGen uint64
	started bool
}

func New(deviceID string, store datastore.Store, renderer playback.Renderer, clk clock.Clock, opts Options, logger zerolog.Logger) *Player {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Executor == nil {
		opts.Executor = NewLoop()
	}
	logger = logger.With().Str("device_id", deviceID).Logger()

	p := &Player{
		deviceID: deviceID,
		store:    store,
		clock:    clk,
		exec:     opts.Executor,
		opts:     opts,
		logger:   logger.With().Str("component", "player").Logger(),
		catalog:  catalog.New(logger),
		presence: presence.New(store, clk, opts.HeartbeatInterval, logger),
	}
	onLoop := clock.Dispatch(clk, p.post)
	p.engine = playback.New(onLoop, renderer, opts.Playback, logger)
	p.publishStatus()
	return p
}

// Status is safe to call from any goroutine.
func (p *Player) Status() playback.Status {
	return *p.status.Load()
}

// Catalog exposes the mirrored collections, mainly for diagnostics.
func (p *Player) Catalog() *catalog.State {
	return p.catalog.Current()
}

// Run starts the player, blocks until ctx is done and tears everything down.
func (p *Player) Run(ctx context.Context) error {
	if loop, ok := p.exec.(*Loop); ok {
		go loop.Run()
		defer loop.Close()
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	p.Stop()
	return nil
}

// Start registers the device, subscribes to the three collections and starts
// the heartbeat and the poll. Registration failures are logged only. The
// executor must already be running.
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("player %s already started", p.deviceID)
	}
	p.started = true
	p.mu.Unlock()

	if err := p.presence.Register(ctx, p.deviceID); err != nil {
		p.logger.Warn().Err(err).Msg("continuing without registration")
	}
	p.post(p.engine.Register)

	for _, coll := range datastore.Collections {
		cancel, err := p.store.Subscribe(ctx, coll, func(snap datastore.Snapshot) {
			p.post(func() {
				p.catalog.Apply(snap)
				p.evaluate()
			})
		})
		if err != nil {
			p.Stop()
			return fmt.Errorf("subscribe to %s: %w", coll, err)
		}
		p.mu.Lock()
		p.cancels = append(p.cancels, cancel)
		p.mu.Unlock()
	}

	p.presence.Start(p.deviceID)

	p.mu.Lock()
	p.schedulePollLocked()
	p.mu.Unlock()

	p.logger.Info().Dur("poll_interval", p.opts.PollInterval).Msg("player started")
	return nil
}

// Stop cancels subscriptions, the poll, the heartbeat and every playback
// timer. It is safe to call more than once.
func (p *Player) Stop() {
	p.mu.Lock()
	cancels := p.cancels
	p.cancels = nil
	p.pollGen++
	if p.poll != nil {
		p.poll.Stop()
		p.poll = nil
	}
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	p.presence.Stop()
	p.do(p.engine.Stop)
	p.logger.Info().Msg("player stopped")
}

// HandleRenderEvent hands a renderer callback to the loop.
func (p *Player) HandleRenderEvent(ev playback.RenderEvent) {
	p.post(func() { p.engine.HandleRenderEvent(ev) })
}

func (p *Player) schedulePollLocked() {
	gen := p.pollGen
	p.poll = p.clock.AfterFunc(p.opts.PollInterval, func() {
		p.post(func() {
			p.mu.Lock()
			stale := gen != p.pollGen
			p.mu.Unlock()
			if stale {
				return
			}
			p.evaluate()
			p.mu.Lock()
			if gen == p.pollGen {
				p.schedulePollLocked()
			}
			p.mu.Unlock()
		})
	})
}

// evaluate runs on the loop.
func (p *Player) evaluate() {
	st := p.catalog.Current()
	if !st.Ready() {
		return
	}
	device, ok := st.Device(p.deviceID)
	if !ok {
		device = model.ScreenDevice{ID: p.deviceID}
	}
	res := scheduler.Resolve(device, st.Playlists, p.clock.Now(), p.opts.Scheduler)
	p.engine.Update(res, st.LookupMedia)
}

func (p *Player) post(f func()) {
	p.exec.Post(func() {
		f()
		p.publishStatus()
	})
}

func (p *Player) do(f func()) {
	if loop, ok := p.exec.(*Loop); ok {
		loop.Do(func() {
			f()
			p.publishStatus()
		})
		return
	}
	p.post(f)
}

func (p *Player) publishStatus() {
	st := p.engine.Status()
	p.status.Store(&st)
}
