package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-restaurant-backend/internal/http/middleware"
)

// HeaderReplayed marks a response served from a stored Idempotency-Key.
const HeaderReplayed = "Idempotency-Replayed"

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code (see errors.go)
	Code string `json:"code" example:"conflict"`
	// Safe to show to users
	Message string `json:"message" example:"Code already exists!"`
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// notModified sets etag and reports whether If-None-Match already names it,
// in which case a 304 has been written. The header may list several tags or
// be "*".
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	inm := c.GetHeader("If-None-Match")
	if inm == "" {
		return false
	}
	for _, tag := range strings.Split(inm, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || tag == etag {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	return false
}

// replay serves a repeated create. When the request carries an
// Idempotency-Key already stored for this client and scope, it loads the
// resource with get, writes it with 200 and the replay header, and returns
// true. Lookup or load failures fall through to a fresh create.
func replay[T any](c *gin.Context, store IdempotencyStore, scope string, get func(context.Context, int64) (T, error), render func(T) any) bool {
	key, hasKey := middleware.GetIdempotencyKey(c)
	if !hasKey || store == nil {
		return false
	}
	ctx := c.Request.Context()
	id, found, err := store.Lookup(ctx, middleware.ClientID(c), scope, key, time.Now().UTC())
	if err != nil || !found {
		return false
	}
	prev, err := get(ctx, id)
	if err != nil {
		return false
	}
	c.Header(HeaderReplayed, "true")
	ok(c, http.StatusOK, render(prev))
	return true
}

// remember stores the created resource id under the request's
// Idempotency-Key. Failures are logged and otherwise ignored.
func remember(c *gin.Context, store IdempotencyStore, scope string, id int64) {
	key, hasKey := middleware.GetIdempotencyKey(c)
	if !hasKey || store == nil {
		return
	}
	if err := store.Save(c.Request.Context(), middleware.ClientID(c), scope, key, id, http.StatusCreated); err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Warn().Err(err).Str("scope", scope).Msg("idempotency save failed")
	}
}
