package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// HeaderIdempotencyKey carries the client's key for a create request. Clients
// send a fresh key per logical create and reuse it on retries.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the key was already used for a completed create.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures key validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a still-valid record exists for
// (clientID, scope, key). Errors never block the request.
type IdempotencyLookup func(ctx context.Context, clientID, scope, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator handles Idempotency-Key on POST, the only method that
// creates tables and items. Other methods ignore the header. A malformed key
// is rejected with 400. A valid key is stashed for the handler and, when
// lookup finds it already stored for this client and collection, the request
// is flagged as a replay so the rate limiter lets it through.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if scope := IdempotencyScope(c); lookup != nil && scope != "" {
			if exists, _ := lookup(c.Request.Context(), ClientID(c), scope, key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

var collections = map[string]bool{
	domain.CollectionTables:     true,
	domain.CollectionItems:      true,
	domain.CollectionCategories: true,
}

// IdempotencyScope returns the collection a request targets, taken from the
// route template ("/api/v1/items/:id" -> "items") or, for unrouted requests,
// the raw path. It is empty when no known collection appears.
func IdempotencyScope(c *gin.Context) string {
	p := c.FullPath()
	if p == "" && c.Request != nil {
		p = c.Request.URL.Path
	}
	for _, seg := range strings.Split(p, "/") {
		if collections[seg] {
			return seg
		}
	}
	return ""
}
