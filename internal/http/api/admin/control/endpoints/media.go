package endpoints

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/api"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
	"github.com/Nixie-Tech-LLC/lumen/internal/storage"
)

type MediaController struct {
	store datastore.Store
	files storage.Storage
}

// MediaModule mounts all authenticated /media endpoints.
func MediaModule(store datastore.Store, files storage.Storage) api.Module {
	ctl := &MediaController{store: store, files: files}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/media", ctl.listMedia)
		c.POST("/media", ctl.createMedia)
		c.POST("/media/upload", ctl.uploadMedia)
		c.GET("/media/:id", ctl.getMedia)
		c.PUT("/media/:id", ctl.updateMedia)
		c.DELETE("/media/:id", ctl.deleteMedia)
	})
}

// GET /api/admin/media
func (m *MediaController) listMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	docs, err := m.store.List(ctx.Request.Context(), datastore.CollectionMedia)
	if err != nil {
		return nil, api.ReadError(datastore.CollectionMedia, "", err)
	}
	return decodeAll(datastore.CollectionMedia, docs, decodeMedia), nil
}

// POST /api/admin/media
func (m *MediaController) createMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateMediaRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	item := model.MediaItem{
		ID:          uuid.NewString(),
		Name:        request.Name,
		Type:        model.MediaType(request.Type),
		URL:         request.URL,
		Duration:    request.Duration,
		Orientation: orientation(request.Orientation),
	}
	if err := m.store.Set(ctx.Request.Context(), datastore.CollectionMedia, item.ID, item); err != nil {
		return nil, api.WriteError(datastore.CollectionMedia, item.ID, err)
	}

	log.Info().Str("media_id", item.ID).Str("by", user.Email).Msg("media created")
	return item, nil
}

// POST /api/admin/media/upload (multipart: file, optional name, duration, orientation)
func (m *MediaController) uploadMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return nil, api.BadRequest("missing file")
	}

	duration := 0
	if raw := ctx.PostForm("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration < 0 {
			return nil, api.BadRequest("duration must be a non-negative number of seconds")
		}
	}
	var orient *string
	if raw := ctx.PostForm("orientation"); raw != "" {
		if raw != string(model.Landscape) && raw != string(model.Portrait) {
			return nil, api.BadRequest("orientation must be landscape or portrait")
		}
		orient = &raw
	}

	stored, err := m.files.Save(fileHeader)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedMedia) {
			return nil, api.BadRequest(err.Error())
		}
		log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("upload failed")
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not store file"}
	}

	name := ctx.PostForm("name")
	if name == "" {
		name = strings.TrimSuffix(fileHeader.Filename, filepath.Ext(fileHeader.Filename))
	}
	item := model.MediaItem{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        stored.MediaType,
		URL:         stored.URL,
		Duration:    duration,
		Orientation: orientation(orient),
	}
	if err := m.store.Set(ctx.Request.Context(), datastore.CollectionMedia, item.ID, item); err != nil {
		return nil, api.WriteError(datastore.CollectionMedia, item.ID, err)
	}

	log.Info().Str("media_id", item.ID).Str("url", item.URL).Str("by", user.Email).Msg("media uploaded")
	return packets.UploadResponse{Media: item, ContentType: stored.ContentType}, nil
}

// GET /api/admin/media/:id
func (m *MediaController) getMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	return m.load(ctx, idParam(ctx))
}

// PUT /api/admin/media/:id
func (m *MediaController) updateMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := idParam(ctx)
	var request packets.UpdateMediaRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	fields := map[string]any{}
	if request.Name != nil {
		fields["name"] = *request.Name
	}
	if request.URL != nil {
		fields["url"] = *request.URL
	}
	if request.Duration != nil {
		fields["duration"] = *request.Duration
	}
	if request.Orientation != nil {
		fields["orientation"] = *request.Orientation
	}
	if len(fields) == 0 {
		return nil, api.BadRequest("nothing to update")
	}

	if err := m.store.Patch(ctx.Request.Context(), datastore.CollectionMedia, id, fields); err != nil {
		return nil, api.WriteError(datastore.CollectionMedia, id, err)
	}
	return m.load(ctx, id)
}

// DELETE /api/admin/media/:id
// Playlists still referencing the item skip it during playback.
func (m *MediaController) deleteMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := idParam(ctx)
	if err := m.store.Delete(ctx.Request.Context(), datastore.CollectionMedia, id); err != nil {
		return nil, api.WriteError(datastore.CollectionMedia, id, err)
	}
	log.Info().Str("media_id", id).Str("by", user.Email).Msg("media deleted")
	return gin.H{"deleted": id}, nil
}

func (m *MediaController) load(ctx *gin.Context, id string) (any, *api.APIError) {
	doc, err := m.store.Get(ctx.Request.Context(), datastore.CollectionMedia, id)
	if err != nil {
		return nil, api.ReadError(datastore.CollectionMedia, id, err)
	}
	item, err := decodeMedia(doc)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "stored media is malformed"}
	}
	return item, nil
}
