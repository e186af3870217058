package endpoints

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/lumen/internal/clock"
	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/api"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
)

type DeviceOptions struct {
	PresenceThreshold time.Duration
	Scheduler         scheduler.Options
}

type DeviceController struct {
	store datastore.Store
	clk   clock.Clock
	opts  DeviceOptions
}

// DeviceModule mounts all authenticated /devices endpoints. Devices create
// themselves on first heartbeat, so there is no POST.
func DeviceModule(store datastore.Store, clk clock.Clock, opts DeviceOptions) api.Module {
	if opts.PresenceThreshold <= 0 {
		opts.PresenceThreshold = model.DefaultPresenceThreshold
	}
	ctl := &DeviceController{store: store, clk: clk, opts: opts}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/devices", ctl.listDevices)
		c.GET("/devices/:id", ctl.getDevice)
		c.PUT("/devices/:id", ctl.updateDevice)
		c.DELETE("/devices/:id", ctl.deleteDevice)
		c.PUT("/devices/:id/playlist", ctl.assignPlaylist)
		c.GET("/devices/:id/active", ctl.activePlaylist)
	})
}

// GET /api/admin/devices
func (d *DeviceController) listDevices(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	docs, err := d.store.List(ctx.Request.Context(), datastore.CollectionDevices)
	if err != nil {
		return nil, api.ReadError(datastore.CollectionDevices, "", err)
	}

	now := d.clk.Now()
	devices := decodeAll(datastore.CollectionDevices, docs, decodeDevice)
	out := make([]packets.DeviceResponse, 0, len(devices))
	for _, dev := range devices {
		out = append(out, packets.NewDeviceResponse(dev, now, d.opts.PresenceThreshold))
	}
	return out, nil
}

// GET /api/admin/devices/:id
func (d *DeviceController) getDevice(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	dev, apiErr := d.load(ctx, idParam(ctx))
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.NewDeviceResponse(dev, d.clk.Now(), d.opts.PresenceThreshold), nil
}

// PUT /api/admin/devices/:id
func (d *DeviceController) updateDevice(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := idParam(ctx)
	var request packets.UpdateDeviceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	fields := map[string]any{}
	if request.Name != nil {
		fields["name"] = *request.Name
	}
	if request.Location != nil {
		fields["location"] = *request.Location
	}
	if len(fields) == 0 {
		return nil, api.BadRequest("nothing to update")
	}

	if err := d.store.Patch(ctx.Request.Context(), datastore.CollectionDevices, id, fields); err != nil {
		return nil, api.WriteError(datastore.CollectionDevices, id, err)
	}
	return d.getDevice(ctx, user)
}

// DELETE /api/admin/devices/:id
// A running player registers itself again on its next start.
func (d *DeviceController) deleteDevice(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := idParam(ctx)
	if err := d.store.Delete(ctx.Request.Context(), datastore.CollectionDevices, id); err != nil {
		return nil, api.WriteError(datastore.CollectionDevices, id, err)
	}
	log.Info().Str("device_id", id).Str("by", user.Email).Msg("device deleted")
	return gin.H{"deleted": id}, nil
}

// PUT /api/admin/devices/:id/playlist
func (d *DeviceController) assignPlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := idParam(ctx)
	var request packets.AssignPlaylistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	if request.PlaylistID != nil {
		if *request.PlaylistID == "" {
			return nil, api.BadRequest("playlist_id must be a playlist id or null")
		}
		_, err := d.store.Get(ctx.Request.Context(), datastore.CollectionPlaylists, *request.PlaylistID)
		if err != nil {
			apiErr := api.ReadError(datastore.CollectionPlaylists, *request.PlaylistID, err)
			if apiErr.Code == http.StatusNotFound {
				apiErr.Code = http.StatusBadRequest
			}
			return nil, apiErr
		}
	}

	fields := map[string]any{"assignedPlaylistId": request.PlaylistID}
	if err := d.store.Patch(ctx.Request.Context(), datastore.CollectionDevices, id, fields); err != nil {
		return nil, api.WriteError(datastore.CollectionDevices, id, err)
	}

	ev := log.Info().Str("device_id", id).Str("by", user.Email)
	if request.PlaylistID != nil {
		ev.Str("playlist_id", *request.PlaylistID).Msg("playlist assigned")
	} else {
		ev.Msg("playlist assignment cleared")
	}
	return d.getDevice(ctx, user)
}

// GET /api/admin/devices/:id/active[?at=RFC3339]
// Runs the same resolution the player runs, in the server's local time.
func (d *DeviceController) activePlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := idParam(ctx)
	now := d.clk.Now()
	if raw := ctx.Query("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, api.BadRequest("at must be an RFC3339 timestamp")
		}
		now = at.In(time.Local)
	}

	dev, apiErr := d.load(ctx, id)
	if apiErr != nil {
		return nil, apiErr
	}
	docs, err := d.store.List(ctx.Request.Context(), datastore.CollectionPlaylists)
	if err != nil {
		return nil, api.ReadError(datastore.CollectionPlaylists, "", err)
	}
	playlists := decodeAll(datastore.CollectionPlaylists, docs, decodePlaylist)

	res := scheduler.Resolve(dev, playlists, now, d.opts.Scheduler)
	return packets.ActiveResponse{
		DeviceID:   id,
		At:         now.Format(time.RFC3339),
		Source:     string(res.Source),
		IdleReason: string(res.Reason),
		Playlist:   res.Playlist,
	}, nil
}

func (d *DeviceController) load(ctx *gin.Context, id string) (model.ScreenDevice, *api.APIError) {
	doc, err := d.store.Get(ctx.Request.Context(), datastore.CollectionDevices, id)
	if err != nil {
		return model.ScreenDevice{}, api.ReadError(datastore.CollectionDevices, id, err)
	}
	dev, err := decodeDevice(doc)
	if err != nil {
		return model.ScreenDevice{}, &api.APIError{Code: http.StatusInternalServerError, Message: "stored device is malformed"}
	}
	return dev, nil
}
