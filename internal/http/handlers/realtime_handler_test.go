package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
)

func newRealtimeServer(t *testing.T, b *realtime.Broker) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := New(Options{Tables: &stubTables{}, Items: &stubItems{}, Realtime: b, PingInterval: time.Second})
	r := gin.New()
	r.GET("/realtime", h.Realtime)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime?" + query
}

func waitSubscribers(t *testing.T, b *realtime.Broker, collection string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.Subscribers(collection) != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers(%s)=%d, want %d", collection, b.Subscribers(collection), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRealtime_StreamsMatchingEvents(t *testing.T) {
	b := realtime.NewBroker(8)
	srv := newRealtimeServer(t, b)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "collection=tables&events=INSERT,DELETE"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitSubscribers(t, b, domain.CollectionTables, 1)

	ctx := context.Background()
	upd, _ := realtime.NewEvent(realtime.Update, domain.CollectionTables, domain.Table{ID: 1})
	ins, _ := realtime.NewEvent(realtime.Insert, domain.CollectionTables, domain.Table{ID: 2, Code: 4821})
	other, _ := realtime.NewEvent(realtime.Insert, domain.CollectionItems, domain.Item{ID: 3})
	_ = b.Publish(ctx, upd)   // filtered by type
	_ = b.Publish(ctx, other) // other collection
	_ = b.Publish(ctx, ins)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got realtime.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != realtime.Insert || got.Collection != domain.CollectionTables || got.ID != ins.ID {
		t.Fatalf("unexpected event %+v", got)
	}

	// Closing the client releases the subscription.
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitSubscribers(t, b, domain.CollectionTables, 0)
}

func TestRealtime_BrokerCloseEndsStream(t *testing.T) {
	b := realtime.NewBroker(1)
	srv := newRealtimeServer(t, b)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "collection=items"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitSubscribers(t, b, domain.CollectionItems, 1)

	b.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

func TestRealtime_RejectsBadRequests(t *testing.T) {
	r := newRouter(t, fixture{}) // no subscriber wired

	if w := do(r, http.MethodGet, "/realtime?collection=chats", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown collection: %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/realtime?collection=tables&events=UPSERT", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown event: %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/realtime?collection=tables", nil, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled: %d", w.Code)
	}
}
