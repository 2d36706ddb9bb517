// Change-stream websocket handler.
//
// GET /realtime?collection=tables&events=INSERT,DELETE upgrades to a
// websocket and writes one JSON realtime.Event per text frame. Clients
// refetch on every frame; frames carry the changed row for convenience only.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/http/middleware"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
)

const (
	wsWriteWait = 10 * time.Second
	// wsMaxMessage bounds client frames; clients only send pongs and close.
	wsMaxMessage = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin policy is enforced by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

func knownCollection(name string) bool {
	switch name {
	case domain.CollectionTables, domain.CollectionItems, domain.CollectionCategories:
		return true
	}
	return false
}

// Realtime godoc
// @ID          realtime
// @Summary     Subscribe to collection changes
// @Description Upgrades to a websocket that streams change events for one collection. Each frame is a JSON event {id,type,collection,payload,at}.
// @Tags        Realtime
//
// @Param       collection  query  string  true   "Collection"            Enums(tables, items, categories)
// @Param       events      query  string  false  "Comma-separated types" example(INSERT,DELETE)
//
// @Success     101  {string} string "Switching Protocols"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     503  {object} handlers.ErrorResponse "Realtime disabled"
// @Router      /realtime [get]
func (h *Handlers) Realtime(c *gin.Context) {
	collection := c.Query("collection")
	if !knownCollection(collection) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown collection")
		return
	}
	types, err := realtime.ParseEventTypes(c.Query("events"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if h.subs == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "realtime disabled")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}
	defer conn.Close()

	sub := h.subs.Subscribe(collection, types...)
	defer h.subs.Unsubscribe(sub)

	lg := middleware.LoggerFrom(c).With().
		Str("collection", collection).
		Str("subscription", sub.ID()).
		Logger()
	lg.Debug().Msg("realtime subscribed")

	pongWait := h.ping * 2
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader: drains control frames and notices the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				lg.Debug().Err(err).Msg("realtime write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-done:
			lg.Debug().Msg("realtime peer closed")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
