package endpoints

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

// the document key is authoritative over any id stored in the body.

func decodeMedia(doc datastore.Document) (model.MediaItem, error) {
	var m model.MediaItem
	if err := doc.Decode(&m); err != nil {
		return m, err
	}
	m.ID = doc.ID
	return m, nil
}

func decodePlaylist(doc datastore.Document) (model.Playlist, error) {
	var p model.Playlist
	if err := doc.Decode(&p); err != nil {
		return p, err
	}
	p.ID = doc.ID
	if p.Items == nil {
		p.Items = []model.PlaylistItem{}
	}
	return p, nil
}

func decodeDevice(doc datastore.Document) (model.ScreenDevice, error) {
	var d model.ScreenDevice
	if err := doc.Decode(&d); err != nil {
		return d, err
	}
	d.ID = doc.ID
	return d, nil
}

// decodeAll skips documents that do not decode; they are logged, not fatal.
func decodeAll[T any](coll datastore.Collection, docs []datastore.Document, decode func(datastore.Document) (T, error)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode(doc)
		if err != nil {
			log.Warn().Err(err).Str("collection", string(coll)).Str("id", doc.ID).Msg("skipping malformed document")
			continue
		}
		out = append(out, v)
	}
	return out
}

func orientation(v *string) model.Orientation {
	if v == nil || *v == "" {
		return model.Landscape
	}
	return model.Orientation(*v)
}

func idParam(ctx *gin.Context) string {
	return ctx.Param("id")
}
