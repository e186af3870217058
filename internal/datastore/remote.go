package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/lumen/internal/db"
	"github.com/Nixie-Tech-LLC/lumen/internal/redis"
)

// ChangeFeed is satisfied by *redis.Feed.
type ChangeFeed interface {
	Publish(ctx context.Context, change redis.Change) error
	Subscribe(ctx context.Context, collection string, handler func(redis.Change)) (func(), error)
}

// DefaultResync bounds how long a subscriber can miss a lost change announcement.
const DefaultResync = 30 * time.Second

// Remote stores documents in Postgres and announces writes on the change feed.
// Subscribers reload the whole collection on every announcement.
type Remote struct {
	docs   db.Store
	feed   ChangeFeed
	logger zerolog.Logger
	resync time.Duration
}

var _ Store = (*Remote)(nil)

func NewRemote(docs db.Store, feed ChangeFeed, logger zerolog.Logger) *Remote {
	return &Remote{
		docs:   docs,
		feed:   feed,
		logger: logger.With().Str("component", "datastore").Logger(),
		resync: DefaultResync,
	}
}

// WithResync overrides the periodic full reload interval. Zero disables it.
func (r *Remote) WithResync(d time.Duration) *Remote {
	r.resync = d
	return r
}

func (r *Remote) Get(ctx context.Context, coll Collection, id string) (Document, error) {
	if !coll.Valid() {
		return Document{}, ErrUnknownCollection
	}
	row, err := r.docs.GetDocument(ctx, string(coll), id)
	if err != nil {
		return Document{}, mapError(err)
	}
	return Document{ID: row.ID, Data: json.RawMessage(row.Body)}, nil
}

func (r *Remote) List(ctx context.Context, coll Collection) ([]Document, error) {
	if !coll.Valid() {
		return nil, ErrUnknownCollection
	}
	rows, err := r.docs.ListDocuments(ctx, string(coll))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, Document{ID: row.ID, Data: json.RawMessage(row.Body)})
	}
	return out, nil
}

func (r *Remote) Set(ctx context.Context, coll Collection, id string, v any) error {
	if !coll.Valid() {
		return ErrUnknownCollection
	}
	body, err := Encode(v)
	if err != nil {
		return err
	}
	if err := r.docs.UpsertDocument(ctx, string(coll), id, body); err != nil {
		return mapError(err)
	}
	r.announce(ctx, coll, id, "set")
	return nil
}

func (r *Remote) Patch(ctx context.Context, coll Collection, id string, fields map[string]any) error {
	if !coll.Valid() {
		return ErrUnknownCollection
	}
	body, err := Encode(fields)
	if err != nil {
		return err
	}
	// the limit applies to the merged document, not just the patch
	current, err := r.docs.GetDocument(ctx, string(coll), id)
	if err != nil {
		return mapError(err)
	}
	if _, err := merge(current.Body, fields); err != nil {
		return err
	}
	if err := r.docs.PatchDocument(ctx, string(coll), id, body); err != nil {
		return mapError(err)
	}
	r.announce(ctx, coll, id, "patch")
	return nil
}

func (r *Remote) Delete(ctx context.Context, coll Collection, id string) error {
	if !coll.Valid() {
		return ErrUnknownCollection
	}
	if err := r.docs.DeleteDocument(ctx, string(coll), id); err != nil {
		return mapError(err)
	}
	r.announce(ctx, coll, id, "delete")
	return nil
}

// announce failures only delay subscribers until the next resync.
func (r *Remote) announce(ctx context.Context, coll Collection, id, op string) {
	err := r.feed.Publish(ctx, redis.Change{Collection: string(coll), ID: id, Op: op})
	if err != nil {
		r.logger.Warn().Err(err).Str("collection", string(coll)).Str("id", id).Msg("failed to announce change")
	}
}

func (r *Remote) Subscribe(ctx context.Context, coll Collection, fn func(Snapshot)) (func(), error) {
	if !coll.Valid() {
		return nil, ErrUnknownCollection
	}
	ctx, cancelCtx := context.WithCancel(ctx)

	var mu sync.Mutex
	reload := func() {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		docs, err := r.List(ctx, coll)
		if err != nil {
			r.logger.Error().Err(err).Str("collection", string(coll)).Msg("failed to reload collection")
			return
		}
		fn(Snapshot{Collection: coll, Docs: docs})
	}

	// The initial load is strict so callers learn about an unreachable store.
	docs, err := r.List(ctx, coll)
	if err != nil {
		cancelCtx()
		return nil, fmt.Errorf("initial load of %s: %w", coll, err)
	}

	stopFeed, err := r.feed.Subscribe(ctx, string(coll), func(redis.Change) { reload() })
	if err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe to %s changes: %w", coll, err)
	}

	mu.Lock()
	fn(Snapshot{Collection: coll, Docs: docs})
	mu.Unlock()

	if r.resync > 0 {
		go func() {
			ticker := time.NewTicker(r.resync)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					reload()
				}
			}
		}()
	}

	return func() {
		cancelCtx()
		stopFeed()
	}, nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, db.ErrPermissionDenied):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return err
	}
}
