package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/lumen/internal/clock"
	"github.com/Nixie-Tech-LLC/lumen/internal/config"
	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/api"
	authapi "github.com/Nixie-Tech-LLC/lumen/internal/http/api/admin/auth/endpoints"
	adminapi "github.com/Nixie-Tech-LLC/lumen/internal/http/api/admin/control/endpoints"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/lumen/internal/metrics"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
	"github.com/Nixie-Tech-LLC/lumen/internal/storage"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, cfg *config.Config, store datastore.Store, files storage.Storage, clk clock.Clock) {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	admin := middleware.Admin{Email: cfg.AdminEmail, PasswordHash: cfg.AdminPasswordHash}

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/admin",
		Auth:   false,
	},
		authapi.AuthPublicModule(cfg.JWTSecret, admin),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/admin",
		Auth:      true,
		SecretKey: cfg.JWTSecret,
	},
		adminapi.MediaModule(store, files),
		adminapi.PlaylistModule(store),
		adminapi.DeviceModule(store, clk, adminapi.DeviceOptions{
			Scheduler: scheduler.Options{AllowOvernight: cfg.AllowOvernightWindows},
		}),
		// session endpoints that require auth
		authapi.AuthSessionModule(cfg.JWTSecret, admin),
	)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Static content
	if !cfg.UseSpaces {
		r.Static("/uploads", uploadDir)
	}
}
