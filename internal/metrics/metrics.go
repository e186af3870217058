// Package metrics holds the Prometheus collectors shared by the player and
// the admin server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PlaybackAdvancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_playback_advances_total",
		Help: "Playlist advances by trigger (timer, finished, failure).",
	}, []string{"reason"})

	PlaybackFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_playback_failures_total",
		Help: "Media items that could not be presented, by media source.",
	}, []string{"source"})

	PlaybackState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lumen_playback_state",
		Help: "1 for the playback engine's current state, 0 otherwise.",
	}, []string{"state"})

	ActivePlaylistChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumen_active_playlist_changes_total",
		Help: "Times the resolved active playlist changed identity.",
	})

	HeartbeatErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumen_heartbeat_errors_total",
		Help: "Presence writes that failed and were dropped.",
	})

	AdminWriteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_admin_write_errors_total",
		Help: "Rejected admin writes by collection and kind.",
	}, []string{"collection", "kind"})
)

// SetState marks state as the only active playback state.
func SetState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		PlaybackState.WithLabelValues(s).Set(v)
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
