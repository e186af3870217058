// Package catalog mirrors the media, playlists and devices collections in
// memory for one player.
package catalog

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

// State is an immutable view of the three collections. A new State replaces
// the old one on every applied snapshot, so readers never see a partial update.
type State struct {
	Media     map[string]model.MediaItem
	Playlists []model.Playlist
	Devices   map[string]model.ScreenDevice

	loaded map[datastore.Collection]bool
}

// LookupMedia resolves a playlist item's media reference.
func (s *State) LookupMedia(id string) (model.MediaItem, bool) {
	m, ok := s.Media[id]
	return m, ok
}

func (s *State) Device(id string) (model.ScreenDevice, bool) {
	d, ok := s.Devices[id]
	return d, ok
}

// Loaded reports whether a snapshot of coll has been applied.
func (s *State) Loaded(coll datastore.Collection) bool {
	return s.loaded[coll]
}

// Ready reports whether every collection has been applied at least once.
func (s *State) Ready() bool {
	for _, c := range datastore.Collections {
		if !s.loaded[c] {
			return false
		}
	}
	return true
}

type Catalog struct {
	state  atomic.Pointer[State]
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Catalog {
	c := &Catalog{logger: logger.With().Str("component", "catalog").Logger()}
	c.state.Store(&State{
		Media:   map[string]model.MediaItem{},
		Devices: map[string]model.ScreenDevice{},
		loaded:  map[datastore.Collection]bool{},
	})
	return c
}

// Current returns the latest state. The result must not be modified.
func (c *Catalog) Current() *State {
	return c.state.Load()
}

// Apply replaces one collection with the content of snap. Documents that do
// not decode are skipped.
func (c *Catalog) Apply(snap datastore.Snapshot) *State {
	prev := c.state.Load()
	next := &State{
		Media:     prev.Media,
		Playlists: prev.Playlists,
		Devices:   prev.Devices,
		loaded:    make(map[datastore.Collection]bool, len(prev.loaded)+1),
	}
	for k, v := range prev.loaded {
		next.loaded[k] = v
	}
	next.loaded[snap.Collection] = true

	switch snap.Collection {
	case datastore.CollectionMedia:
		next.Media = make(map[string]model.MediaItem, len(snap.Docs))
		for _, doc := range snap.Docs {
			var m model.MediaItem
			if !c.decode(snap.Collection, doc, &m) {
				continue
			}
			m.ID = doc.ID
			next.Media[m.ID] = m
		}
	case datastore.CollectionPlaylists:
		next.Playlists = make([]model.Playlist, 0, len(snap.Docs))
		for _, doc := range snap.Docs {
			var p model.Playlist
			if !c.decode(snap.Collection, doc, &p) {
				continue
			}
			p.ID = doc.ID
			next.Playlists = append(next.Playlists, p)
		}
	case datastore.CollectionDevices:
		next.Devices = make(map[string]model.ScreenDevice, len(snap.Docs))
		for _, doc := range snap.Docs {
			var d model.ScreenDevice
			if !c.decode(snap.Collection, doc, &d) {
				continue
			}
			d.ID = doc.ID
			next.Devices[d.ID] = d
		}
	default:
		c.logger.Warn().Str("collection", string(snap.Collection)).Msg("ignoring snapshot for unknown collection")
		return prev
	}

	c.state.Store(next)
	c.logger.Debug().Str("collection", string(snap.Collection)).Int("docs", len(snap.Docs)).Msg("snapshot applied")
	return next
}

func (c *Catalog) decode(coll datastore.Collection, doc datastore.Document, v any) bool {
	if err := doc.Decode(v); err != nil {
		c.logger.Warn().Err(err).Str("collection", string(coll)).Str("id", doc.ID).Msg("skipping malformed document")
		return false
	}
	return true
}
