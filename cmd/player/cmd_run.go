package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/lumen/internal/clock"
	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/db"
	"github.com/Nixie-Tech-LLC/lumen/internal/identity"
	"github.com/Nixie-Tech-LLC/lumen/internal/metrics"
	"github.com/Nixie-Tech-LLC/lumen/internal/playback"
	"github.com/Nixie-Tech-LLC/lumen/internal/player"
	"github.com/Nixie-Tech-LLC/lumen/internal/redis"
	"github.com/Nixie-Tech-LLC/lumen/internal/renderer"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
)

var requestedDeviceID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the player until interrupted",
	Long: `Establish the device identity, register with the datastore and play
whatever the schedule resolves to until SIGINT or SIGTERM.

Examples:
  # First run generates and stores an id
  player run

  # Adopt a specific id (stored for later runs)
  player run --device-id lobby-east

Without MQTT_BROKER_URL the player renders to its log. There is no
end-of-stream signal in that mode, so direct video files are reported
finished after the media duration, or DEFAULT_ITEM_DURATION when the media
has none.`,
	RunE: runPlayer,
}

func init() {
	runCmd.Flags().StringVar(&requestedDeviceID, "device-id", "", "use this device id instead of the stored or generated one")
}

func runPlayer(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	deviceID, err := identity.Ensure(identity.NewFile(cfg.DeviceIDPath), requestedDeviceID)
	if err != nil {
		return fmt.Errorf("device identity: %w", err)
	}
	logger.Info().Str("device_id", deviceID).Msg("player starting")

	if err := db.Init(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	defer db.Close()

	redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
	if err := redis.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	store := datastore.NewRemote(db.NewStore(nil), redis.NewFeed(nil), logger)

	clk := clock.Real{}
	var (
		out    playback.Renderer
		listen func(func(playback.RenderEvent)) error
	)
	if cfg.MQTTBrokerURL != "" {
		client, err := renderer.Connect(cfg.MQTTBrokerURL, deviceID, logger)
		if err != nil {
			return err
		}
		bridge := renderer.NewBridge(client, deviceID, logger)
		defer bridge.Close()
		out, listen = bridge, bridge.Listen
	} else {
		headless := renderer.NewLog(clk, cfg.DefaultItemDuration, logger)
		defer headless.Close()
		out = headless
		listen = func(h func(playback.RenderEvent)) error {
			headless.Listen(h)
			return nil
		}
		logger.Warn().Msg("MQTT_BROKER_URL not set, rendering to the log")
	}

	p := player.New(deviceID, store, out, clk, player.Options{
		PollInterval:      cfg.PollInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Scheduler:         scheduler.Options{AllowOvernight: cfg.AllowOvernightWindows},
		Playback: playback.Options{
			FallbackDelay:   cfg.FailureFallbackDelay,
			DefaultDuration: cfg.DefaultItemDuration,
		},
	}, logger)

	if err := listen(p.HandleRenderEvent); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddress != "" {
		srv := &http.Server{Addr: cfg.MetricsAddress, Handler: diagnostics(p)}
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddress).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := p.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("player stopped")
	return nil
}

// diagnostics serves Prometheus metrics and the current playback status.
func diagnostics(p *player.Player) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/status", func(c *gin.Context) {
		st := p.Status()
		mirror := p.Catalog()
		c.JSON(http.StatusOK, gin.H{
			"state":       st.State.String(),
			"playlist_id": st.Cursor.PlaylistID,
			"index":       st.Cursor.Index,
			"reason":      st.Reason,
			"catalog": gin.H{
				"ready":     mirror.Ready(),
				"media":     len(mirror.Media),
				"playlists": len(mirror.Playlists),
				"devices":   len(mirror.Devices),
			},
		})
	})
	return r
}
