// Package presence registers a player in the devices collection and keeps its
// heartbeat flowing.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/lumen/internal/clock"
	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/metrics"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultName     = "New Screen"
	DefaultLocation = "Unassigned"

	writeTimeout = 10 * time.Second
)

// Reporter writes registration and heartbeat records. Its failures are logged
// and counted, never returned to playback.
type Reporter struct {
	store    datastore.Store
	clock    clock.Clock
	interval time.Duration
	logger   zerolog.Logger

	mu         sync.Mutex
	deviceID   string
	registered string
	timer      clock.Timer
	gen      uint64
	running  bool
}

func New(store datastore.Store, clk clock.Clock, interval time.Duration, logger zerolog.Logger) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		store:    store,
		clock:    clk,
		interval: interval,
		logger:   logger.With().Str("component", "presence").Logger(),
	}
}

// Register creates the device record on first contact. An existing record only
// gets its status and lastPing refreshed so operator edits survive restarts.
// After a failure the heartbeat keeps retrying registration.
func (r *Reporter) Register(ctx context.Context, deviceID string) error {
	err := r.register(ctx, deviceID)

	r.mu.Lock()
	if err == nil {
		r.registered = deviceID
	} else if r.registered == deviceID {
		r.registered = ""
	}
	r.mu.Unlock()
	return err
}

func (r *Reporter) register(ctx context.Context, deviceID string) error {
	now := r.clock.Now().UnixMilli()
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := r.store.Get(ctx, datastore.CollectionDevices, deviceID)
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		err = r.store.Set(ctx, datastore.CollectionDevices, deviceID, model.ScreenDevice{
			ID:       deviceID,
			Name:     DefaultName,
			Location: DefaultLocation,
			Status:   model.StatusOnline,
			LastPing: now,
		})
		if err == nil {
			r.logger.Info().Str("device_id", deviceID).Msg("device registered")
		}
	case err == nil:
		err = r.store.Patch(ctx, datastore.CollectionDevices, deviceID, onlineFields(now))
	}
	if err != nil {
		metrics.HeartbeatErrorsTotal.Inc()
		r.logger.Warn().Err(err).Str("device_id", deviceID).Msg("registration failed")
		return fmt.Errorf("register %s: %w", deviceID, err)
	}
	return nil
}

// Start beats every interval until Stop. When deviceID has not been
// registered yet the first beat is immediate and registers it.
func (r *Reporter) Start(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.deviceID = deviceID
	r.running = true
	if r.registered == deviceID {
		r.scheduleLocked(r.interval)
		return
	}
	r.scheduleLocked(0)
}

// Stop cancels the pending heartbeat. A beat already in flight completes.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Reporter) stopLocked() {
	r.running = false
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Reporter) scheduleLocked(d time.Duration) {
	gen := r.gen
	r.timer = r.clock.AfterFunc(d, func() { r.tick(gen) })
}

func (r *Reporter) tick(gen uint64) {
	r.mu.Lock()
	if !r.running || gen != r.gen {
		r.mu.Unlock()
		return
	}
	id := r.deviceID
	registered := r.registered == id
	r.mu.Unlock()

	if registered {
		r.beat(id)
	} else if err := r.Register(context.Background(), id); err == nil {
		r.logger.Info().Str("device_id", id).Msg("registration recovered")
	}

	r.mu.Lock()
	if r.running && gen == r.gen {
		r.scheduleLocked(r.interval)
	}
	r.mu.Unlock()
}

func (r *Reporter) beat(deviceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := r.store.Patch(ctx, datastore.CollectionDevices, deviceID, onlineFields(r.clock.Now().UnixMilli()))
	if err != nil {
		metrics.HeartbeatErrorsTotal.Inc()
		r.logger.Warn().Err(err).Str("device_id", deviceID).Msg("heartbeat failed")
		return
	}
	r.logger.Debug().Str("device_id", deviceID).Msg("heartbeat")
}

func onlineFields(nowMillis int64) map[string]any {
	return map[string]any{
		"status":   model.StatusOnline,
		"lastPing": nowMillis,
	}
}
