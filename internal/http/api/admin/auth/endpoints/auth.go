package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/lumen/internal/http/api"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/api/admin/auth/packets"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

// AuthPublicModule mounts the public login endpoint.
func AuthPublicModule(jwtSecret string, admin middleware.Admin) api.Module {
	ctl := newAccountManager(jwtSecret, admin)
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/auth/login", ctl.login)
	})
}

// AuthSessionModule mounts session endpoints (JWT required).
func AuthSessionModule(jwtSecret string, admin middleware.Admin) api.Module {
	ctl := newAccountManager(jwtSecret, admin)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/auth/current_profile", ctl.getCurrentProfile)
	})
}

type AccountManager struct {
	jwtSecret string
	admin     middleware.Admin
}

func newAccountManager(secret string, admin middleware.Admin) *AccountManager {
	return &AccountManager{jwtSecret: secret, admin: admin}
}

// POST /api/admin/auth/login
func (a *AccountManager) login(ctx *gin.Context) (any, *api.APIError) {
	var request packets.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	user, err := a.admin.Authenticate(request.Email, request.Password)
	if err != nil {
		log.Warn().Str("email", request.Email).Msg("rejected admin login")
		return nil, &api.APIError{Code: http.StatusUnauthorized, Message: "invalid credentials"}
	}

	token, err := middleware.GenerateJWT(user.Email, a.jwtSecret)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not generate token"}
	}

	return packets.LoginResponse{Token: token}, nil
}

// GET /api/admin/auth/current_profile
func (a *AccountManager) getCurrentProfile(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	return packets.ProfileResponse{Email: user.Email}, nil
}
