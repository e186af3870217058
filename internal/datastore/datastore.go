// Package datastore is the document store shared by the admin surface and the
// players: three collections of JSON documents with full-snapshot
// subscriptions.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type Collection string

const (
	CollectionMedia     Collection = "media"
	CollectionPlaylists Collection = "playlists"
	CollectionDevices   Collection = "devices"
)

// Collections lists every collection in a fixed order.
var Collections = []Collection{CollectionMedia, CollectionPlaylists, CollectionDevices}

func (c Collection) Valid() bool {
	switch c {
	case CollectionMedia, CollectionPlaylists, CollectionDevices:
		return true
	}
	return false
}

// MaxDocumentBytes caps the encoded size of one document.
const MaxDocumentBytes = 1 << 20

var (
	ErrNotFound          = errors.New("document not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrPayloadTooLarge   = errors.New("document exceeds the size limit")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Document is one stored record. Data is the JSON body without the id.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the body into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Snapshot is the full content of a collection at one point in time, in
// stable enumeration order.
type Snapshot struct {
	Collection Collection
	Docs       []Document
}

// Store is implemented by Memory and Remote.
type Store interface {
	Get(ctx context.Context, coll Collection, id string) (Document, error)
	List(ctx context.Context, coll Collection) ([]Document, error)
	// Set creates or replaces a document. A replaced document keeps its
	// enumeration position.
	Set(ctx context.Context, coll Collection, id string, v any) error
	// Patch merges top level fields into an existing document.
	Patch(ctx context.Context, coll Collection, id string, fields map[string]any) error
	Delete(ctx context.Context, coll Collection, id string) error
	// Subscribe delivers the current snapshot and then a new one after every
	// change until ctx is done or cancel is called.
	Subscribe(ctx context.Context, coll Collection, fn func(Snapshot)) (cancel func(), err error)
}

// Encode marshals v and enforces MaxDocumentBytes.
func Encode(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) > MaxDocumentBytes {
			return nil, ErrPayloadTooLarge
		}
		return raw, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if len(body) > MaxDocumentBytes {
		return nil, ErrPayloadTooLarge
	}
	return body, nil
}

// merge applies a top level field patch to a JSON object body.
func merge(body json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, fmt.Errorf("patch non-object document: %w", err)
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		obj[k] = raw
	}
	return Encode(obj)
}
