package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-restaurant-backend/internal/config"
	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/http/middleware"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
	"github.com/tbourn/go-restaurant-backend/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if _, err := repo.SeedCategories(context.Background(), db, []string{"food:Food", "drink:Drink"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      100,
		CORS:           config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:       config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
		IdempotencyTTL: time.Hour,
		PriceLocale:    "vi",
		Timezone:       "UTC",
		Version:        "test",
		Realtime:       config.RealtimeConfig{PingInterval: time.Second},
	}
}

func serve(r http.Handler, method, path string, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), Realtime{}, testConfig())

	// /health works
	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"version":"test"`) {
		t.Fatalf("GET /health = %d %s", w.Code, w.Body)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = serve(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w := serve(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w := serve(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger disabled by default
	if w := serve(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off, got %d", w.Code)
	}

	// Realtime without a broker
	if w := serve(r, http.MethodGet, "/api/v1/realtime?collection=tables", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("realtime without broker expected 503, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	RegisterRoutes(r, newTestDB(t), Realtime{}, cfg)

	w := serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	// API mounted under the configured base.
	if w := serve(r, http.MethodGet, "/api/v2/categories", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /api/v2/categories = %d", w.Code)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	RegisterRoutes(r, newTestDB(t), Realtime{}, cfg)

	w := serve(r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"basePath": "/api/v1"`) {
		t.Fatalf("swagger doc: %d %s", w.Code, w.Body)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, http.MethodPost, "/echo", "0123456789AB", nil) // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix_and_joinPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	// non-root prefix
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := serve(r, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}

	if joinPath("/", "/realtime") != "/realtime" || joinPath("/api/v1", "/realtime") != "/api/v1/realtime" {
		t.Fatalf("joinPath mismatch")
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	RegisterRoutes(r, newTestDB(t), Realtime{}, cfg)

	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	// Export is never cached.
	w = serve(r, http.MethodGet, "/api/v1/items/export", "", nil)
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("export: %d cache=%q", w.Code, w.Header().Get("Cache-Control"))
	}
}

func TestRegisterRoutes_TableFlowPublishesEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	b := realtime.NewBroker(8)
	sub := b.Subscribe(domain.CollectionTables)
	defer b.Unsubscribe(sub)
	RegisterRoutes(r, newTestDB(t), Realtime{Broker: b}, testConfig())

	w := serve(r, http.MethodPost, "/api/v1/tables", `{"code":4821,"date":"2024/05/01"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	select {
	case ev := <-sub.C():
		if ev.Type != realtime.Insert {
			t.Fatalf("event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no insert event")
	}

	w = serve(r, http.MethodGet, "/api/v1/tables?date=2024/05/01", "", nil)
	var list struct {
		Tables []domain.Table `json:"tables"`
	}
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &list) != nil || len(list.Tables) != 1 {
		t.Fatalf("list: %d %s", w.Code, w.Body)
	}
	etag := w.Header().Get("ETag")
	if w := serve(r, http.MethodGet, "/api/v1/tables?date=2024/05/01", "", map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("etag round trip: %d", w.Code)
	}

	if w := serve(r, http.MethodDelete, "/api/v1/tables?code=4821", "", nil); w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	select {
	case ev := <-sub.C():
		if ev.Type != realtime.Delete {
			t.Fatalf("event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no delete event")
	}
}

func TestRegisterRoutes_ItemDuplicateCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), Realtime{}, testConfig())

	body := `{"code":"P01","name":"Pho bo","price":45,"category_id":1}`
	if w := serve(r, http.MethodPost, "/api/v1/items", body, nil); w.Code != http.StatusCreated {
		t.Fatalf("first create: %d %s", w.Code, w.Body)
	}
	w := serve(r, http.MethodPost, "/api/v1/items", body, nil)
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), "Code already exists!") {
		t.Fatalf("duplicate: %d %s", w.Code, w.Body)
	}
}

func TestIdempotencyShim_LookupAndSave(t *testing.T) {
	db := newTestDB(t)
	shim := idempotencyShim{db: db, ttl: time.Hour}
	ctx := context.Background()
	now := time.Now().UTC()

	if _, found, err := shim.Lookup(ctx, "pos-1", "tables", "k1", now); err != nil || found {
		t.Fatalf("miss: found=%v err=%v", found, err)
	}
	if err := shim.Save(ctx, "pos-1", "tables", "k1", 42, http.StatusCreated); err != nil {
		t.Fatalf("save: %v", err)
	}
	// duplicate save is swallowed
	if err := shim.Save(ctx, "pos-1", "tables", "k1", 43, http.StatusCreated); err != nil {
		t.Fatalf("duplicate save: %v", err)
	}
	id, found, err := shim.Lookup(ctx, "pos-1", "tables", "k1", now)
	if err != nil || !found || id != 42 {
		t.Fatalf("hit: id=%d found=%v err=%v", id, found, err)
	}
	if ok, _ := shim.exists(ctx, "pos-1", "items", "k1", now); ok {
		t.Fatalf("scope must isolate keys")
	}
	// expired
	if _, found, _ := shim.Lookup(ctx, "pos-1", "tables", "k1", now.Add(2*time.Hour)); found {
		t.Fatalf("expired record should miss")
	}
}

func TestRegisterRoutes_IdempotentTableCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, Realtime{}, testConfig())

	hdr := map[string]string{middleware.HeaderIdempotencyKey: "open-4821", middleware.ClientIDHeader: "pos-1"}
	w1 := serve(r, http.MethodPost, "/api/v1/tables", `{"code":4821}`, hdr)
	w2 := serve(r, http.MethodPost, "/api/v1/tables", `{"code":4821}`, hdr)
	if w1.Code != http.StatusCreated || w2.Code != http.StatusOK {
		t.Fatalf("codes %d then %d", w1.Code, w2.Code)
	}
	var n int64
	db.Model(&domain.Table{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected a single table, got %d", n)
	}
}

func TestRegisterRoutes_IdempotencyLookupErrorIsIgnored(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, Realtime{}, testConfig())

	// Force queries to fail by closing the underlying connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// The lookup fails; the request still reaches the handler, which rejects
	// the missing code before touching storage.
	w := serve(r, http.MethodPost, "/api/v1/tables", "{}", map[string]string{middleware.HeaderIdempotencyKey: "force-error"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
