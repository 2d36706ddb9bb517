// Package middleware contains the Gin middleware shared by the HTTP layer:
// request correlation, access logging, panic recovery, client identity,
// idempotency keys, rate limiting, metrics and security headers.
//
// Recommended order is RequestID, Logger, Recovery so that every log line
// and error envelope carries the request id.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey      = "requestID"
	requestIDHeader   = "X-Request-ID"
	loggerKey         = "logger"
	maxQueryLogLength = 2048

	// ClientIDHeader identifies the calling terminal (POS, tablet, tablectl).
	ClientIDHeader = "X-Client-ID"
	// clientIDKey may be set by an upstream auth layer.
	clientIDKey       = "clientID"
	maxClientIDLength = 64
)

// probePaths are polled by orchestrators and scrapers; successful hits log at
// debug so they do not drown the access log.
var probePaths = map[string]bool{"/health": true, "/metrics": true}

// ClientID returns the caller identity: the "clientID" context value when an
// upstream layer set one, else the X-Client-ID header, else "anonymous".
func ClientID(c *gin.Context) string {
	if v, ok := c.Get(clientIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader(ClientIDHeader)); h != "" && len(h) <= maxClientIDLength {
			return h
		}
	}
	return "anonymous"
}

// RequestID reuses the caller's X-Request-ID or generates a UUID, echoes it
// on the response and stores it in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger attaches a request-scoped zerolog.Logger (see LoggerFrom) and writes
// one access line per request. Route parameters such as the table code or
// item id are logged under "params". Level follows the outcome: error for 5xx
// or gin errors, warn for 4xx, debug for successful probes, info otherwise.
// Websocket streams log once when they end, with their lifetime.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		stream := c.IsWebsocket()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		lc := log.With().
			Str("request_id", asString(rid)).
			Str("client_id", ClientID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP())
		if ua := c.Request.UserAgent(); ua != "" {
			lc = lc.Str("user_agent", ua)
		}
		if q := c.Request.URL.RawQuery; q != "" {
			lc = lc.Str("query", truncate(q, maxQueryLogLength))
		}
		if len(c.Params) > 0 {
			params := zerolog.Dict()
			for _, p := range c.Params {
				params = params.Str(p.Key, p.Value)
			}
			lc = lc.Dict("params", params)
		}
		l := lc.Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= http.StatusInternalServerError:
			ev = l.Error()
		case status >= http.StatusBadRequest:
			ev = l.Warn()
		case probePaths[path]:
			ev = l.Debug()
		default:
			ev = l.Info()
		}
		ev = ev.Int("status", status).Dur("latency", time.Since(start))
		if stream {
			ev.Msg("stream closed")
			return
		}
		ev.Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Msg("request")
	}
}

// Recovery turns a panic into a 500 error envelope, unless a response was
// already started, and logs the stack with the request-scoped logger.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			v, _ := c.Get(requestIDKey)
			rid := asString(v)
			lg := LoggerFrom(c)
			lg.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the logger attached by Logger, or the global logger when
// none is attached.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
