package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/lumen/internal/datastore"
	"github.com/Nixie-Tech-LLC/lumen/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/lumen/internal/metrics"
	"github.com/Nixie-Tech-LLC/lumen/internal/model"
)

// APIError is returned by handlers. Hint tells the operator how to fix the
// request and is omitted when empty.
type APIError struct {
	Code    int
	Message string
	Hint    string
}

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

type HandlerFuncWithAuth func(ctx *gin.Context, user *model.User) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

func ResolveEndpointWithAuth(h HandlerFuncWithAuth) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}

		result, apiErr := h(ctx, user)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, errorBody{Error: apiErr.Message, Hint: apiErr.Hint})
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, errorBody{Error: apiErr.Message, Hint: apiErr.Hint})
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

// Controller is the gin group a Module mounts its endpoints on.
type Controller struct {
	Group *gin.RouterGroup
}

func (c *Controller) GET(path string, h HandlerFuncWithAuth) {
	c.Group.GET(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) POST(path string, h HandlerFuncWithAuth) {
	c.Group.POST(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PUT(path string, h HandlerFuncWithAuth) {
	c.Group.PUT(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) DELETE(path string, h HandlerFuncWithAuth) {
	c.Group.DELETE(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PUBLIC_POST(path string, h HandlerFunc) {
	c.Group.POST(path, ResolveEndpoint(h))
}

func BadRequest(message string) *APIError {
	return &APIError{Code: http.StatusBadRequest, Message: message}
}

// WriteError turns a failed datastore write into an operator facing error.
// Writes are never retried here; the operator decides what to do.
func WriteError(coll datastore.Collection, id string, err error) *APIError {
	var apiErr *APIError
	kind := "internal"
	switch {
	case errors.Is(err, datastore.ErrPermissionDenied):
		kind = "permission_denied"
		apiErr = &APIError{
			Code:    http.StatusForbidden,
			Message: "the datastore rejected the write: permission denied",
			Hint:    "check that the server's database role may write the documents table",
		}
	case errors.Is(err, datastore.ErrPayloadTooLarge):
		kind = "payload_too_large"
		apiErr = &APIError{
			Code:    http.StatusRequestEntityTooLarge,
			Message: "document exceeds the 1 MiB limit",
			Hint:    "upload the file through /media/upload and reference it by URL instead of embedding it",
		}
	case errors.Is(err, datastore.ErrNotFound):
		kind = "not_found"
		apiErr = &APIError{
			Code:    http.StatusNotFound,
			Message: string(coll) + " " + id + " not found",
			Hint:    "it may have been deleted by another operator; reload and try again",
		}
	default:
		apiErr = &APIError{
			Code:    http.StatusInternalServerError,
			Message: "could not write " + string(coll),
			Hint:    "the datastore may be unreachable; try again once it is back",
		}
	}
	metrics.AdminWriteErrorsTotal.WithLabelValues(string(coll), kind).Inc()
	log.Error().Err(err).Str("collection", string(coll)).Str("id", id).Str("kind", kind).Msg("admin write failed")
	return apiErr
}

// ReadError is WriteError's counterpart for lookups.
func ReadError(coll datastore.Collection, id string, err error) *APIError {
	if errors.Is(err, datastore.ErrNotFound) {
		return &APIError{Code: http.StatusNotFound, Message: string(coll) + " " + id + " not found"}
	}
	log.Error().Err(err).Str("collection", string(coll)).Str("id", id).Msg("admin read failed")
	return &APIError{Code: http.StatusInternalServerError, Message: "could not read " + string(coll)}
}
