package datastore

import (
	"context"
	"sync"
)

type memCollection struct {
	order []string
	docs  map[string][]byte
}

// Memory is an in-process Store. Subscribers are notified synchronously on the
// writer's goroutine, after the write lock is released, one write at a time.
// A subscriber must not write to the same Memory from inside its callback.
type Memory struct {
	mu     sync.Mutex
	colls  map[Collection]*memCollection
	subs   map[Collection]map[int]func(Snapshot)
	nextID int

	// serializes notifications so subscribers see snapshots in write order
	notifyMu sync.Mutex
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{
		colls: map[Collection]*memCollection{},
		subs:  map[Collection]map[int]func(Snapshot){},
	}
	for _, c := range Collections {
		m.colls[c] = &memCollection{docs: map[string][]byte{}}
		m.subs[c] = map[int]func(Snapshot){}
	}
	return m
}

func (m *Memory) Get(_ context.Context, coll Collection, id string) (Document, error) {
	if !coll.Valid() {
		return Document{}, ErrUnknownCollection
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.colls[coll].docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: clone(body)}, nil
}

func (m *Memory) List(_ context.Context, coll Collection) ([]Document, error) {
	if !coll.Valid() {
		return nil, ErrUnknownCollection
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(coll).Docs, nil
}

func (m *Memory) Set(_ context.Context, coll Collection, id string, v any) error {
	if !coll.Valid() {
		return ErrUnknownCollection
	}
	body, err := Encode(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	c := m.colls[coll]
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = clone(body)
	m.mu.Unlock()

	m.notify(coll)
	return nil
}

func (m *Memory) Patch(_ context.Context, coll Collection, id string, fields map[string]any) error {
	if !coll.Valid() {
		return ErrUnknownCollection
	}
	m.mu.Lock()
	c := m.colls[coll]
	body, ok := c.docs[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	merged, err := merge(body, fields)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	c.docs[id] = merged
	m.mu.Unlock()

	m.notify(coll)
	return nil
}

func (m *Memory) Delete(_ context.Context, coll Collection, id string) error {
	if !coll.Valid() {
		return ErrUnknownCollection
	}
	m.mu.Lock()
	c := m.colls[coll]
	if _, ok := c.docs[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(c.docs, id)
	for i, candidate := range c.order {
		if candidate == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.notify(coll)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, coll Collection, fn func(Snapshot)) (func(), error) {
	if !coll.Valid() {
		return nil, ErrUnknownCollection
	}
	m.notifyMu.Lock()
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs[coll][id] = fn
	snap := m.snapshotLocked(coll)
	m.mu.Unlock()
	fn(snap)
	m.notifyMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[coll], id)
			m.mu.Unlock()
		})
	}
	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return cancel, nil
}

func (m *Memory) notify(coll Collection) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	snap := m.snapshotLocked(coll)
	fns := make([]func(Snapshot), 0, len(m.subs[coll]))
	for _, fn := range m.subs[coll] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (m *Memory) snapshotLocked(coll Collection) Snapshot {
	c := m.colls[coll]
	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, Document{ID: id, Data: clone(c.docs[id])})
	}
	return Snapshot{Collection: coll, Docs: docs}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
