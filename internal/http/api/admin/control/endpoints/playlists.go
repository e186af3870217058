package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/api"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

// new playlists are idle until an operator schedules or assigns them.
var defaultSchedule = model.Schedule{
	Days:      []int{},
	StartTime: "00:00",
	EndTime:   "23:59",
	Active:    false,
}

type PlaylistController struct {
	store datastore.Store
}

// PlaylistModule mounts all authenticated /playlists endpoints.
func PlaylistModule(store datastore.Store) api.Module {
	ctl := &PlaylistController{store: store}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/playlists", ctl.listPlaylists)
		c.POST("/playlists", ctl.createPlaylist)
		c.GET("/playlists/:id", ctl.getPlaylist)
		c.PUT("/playlists/:id", ctl.updatePlaylist)
		c.DELETE("/playlists/:id", ctl.deletePlaylist)
		c.PUT("/playlists/:id/schedule", ctl.setSchedule)
	})
}

// GET /api/admin/playlists
func (p *PlaylistController) listPlaylists(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	docs, err := p.store.List(ctx.Request.Context(), datastore.CollectionPlaylists)
	if err != nil {
		return nil, api.ReadError(datastore.CollectionPlaylists, "", err)
	}
	return decodeAll(datastore.CollectionPlaylists, docs, decodePlaylist), nil
}

// POST /api/admin/playlists
func (p *PlaylistController) createPlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreatePlaylistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	items, apiErr := p.items(ctx, request.Items)
	if apiErr != nil {
		return nil, apiErr
	}

	playlist := model.Playlist{
		ID:          uuid.NewString(),
		Name:        request.Name,
		Orientation: orientation(request.Orientation),
		Items:       items,
		Schedule:    defaultSchedule,
	}
	if err := p.store.Set(ctx.Request.Context(), datastore.CollectionPlaylists, playlist.ID, playlist); err != nil {
		return nil, api.WriteError(datastore.CollectionPlaylists, playlist.ID, err)
	}

	log.Info().Str("playlist_id", playlist.ID).Int("items", len(items)).Str("by", user.Email).Msg("playlist created")
	return playlist, nil
}

// GET /api/admin/playlists/:id
func (p *PlaylistController) getPlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	return p.load(ctx, idParam(ctx))
}

// PUT /api/admin/playlists/:id
func (p *PlaylistController) updatePlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := idParam(ctx)
	var request packets.UpdatePlaylistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	fields := map[string]any{}
	if request.Name != nil {
		fields["name"] = *request.Name
	}
	if request.Orientation != nil {
		fields["orientation"] = *request.Orientation
	}
	if request.Items != nil {
		items, apiErr := p.items(ctx, *request.Items)
		if apiErr != nil {
			return nil, apiErr
		}
		fields["items"] = items
	}
	if len(fields) == 0 {
		return nil, api.BadRequest("nothing to update")
	}

	if err := p.store.Patch(ctx.Request.Context(), datastore.CollectionPlaylists, id, fields); err != nil {
		return nil, api.WriteError(datastore.CollectionPlaylists, id, err)
	}
	return p.load(ctx, id)
}

// PUT /api/admin/playlists/:id/schedule
func (p *PlaylistController) setSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := idParam(ctx)
	var request packets.ScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	schedule := request.Schedule()
	if err := schedule.Validate(); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	if err := p.store.Patch(ctx.Request.Context(), datastore.CollectionPlaylists, id, map[string]any{"schedule": schedule}); err != nil {
		return nil, api.WriteError(datastore.CollectionPlaylists, id, err)
	}

	log.Info().Str("playlist_id", id).Bool("active", schedule.Active).Str("by", user.Email).Msg("schedule updated")
	return p.load(ctx, id)
}

// DELETE /api/admin/playlists/:id
// Devices still assigned to it fall back to showing nothing.
func (p *PlaylistController) deletePlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := idParam(ctx)
	if err := p.store.Delete(ctx.Request.Context(), datastore.CollectionPlaylists, id); err != nil {
		return nil, api.WriteError(datastore.CollectionPlaylists, id, err)
	}
	log.Info().Str("playlist_id", id).Str("by", user.Email).Msg("playlist deleted")
	return gin.H{"deleted": id}, nil
}

// items converts request items, rejecting references to unknown media.
func (p *PlaylistController) items(ctx *gin.Context, in []packets.PlaylistItemRequest) ([]model.PlaylistItem, *api.APIError) {
	out := make([]model.PlaylistItem, 0, len(in))
	if len(in) == 0 {
		return out, nil
	}

	docs, err := p.store.List(ctx.Request.Context(), datastore.CollectionMedia)
	if err != nil {
		return nil, api.ReadError(datastore.CollectionMedia, "", err)
	}
	known := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		known[doc.ID] = struct{}{}
	}

	for _, item := range in {
		if _, ok := known[item.MediaID]; !ok {
			return nil, api.BadRequest("unknown media " + item.MediaID)
		}
		out = append(out, model.PlaylistItem{MediaID: item.MediaID, Duration: item.Duration})
	}
	return out, nil
}

func (p *PlaylistController) load(ctx *gin.Context, id string) (any, *api.APIError) {
	doc, err := p.store.Get(ctx.Request.Context(), datastore.CollectionPlaylists, id)
	if err != nil {
		return nil, api.ReadError(datastore.CollectionPlaylists, id, err)
	}
	playlist, err := decodePlaylist(doc)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "stored playlist is malformed"}
	}
	return playlist, nil
}
