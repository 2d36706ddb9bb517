package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tbourn/go-restaurant-backend/internal/realtime"
	"github.com/tbourn/go-restaurant-backend/internal/viewmodel"
)

const closeWait = time.Second

// Stream is a live change-stream websocket for one collection.
type Stream struct {
	conn   *websocket.Conn
	closed atomic.Bool
	once   sync.Once
	done   chan struct{}
}

// Unsubscribe closes the websocket. No callback starts after it returns.
// It does not wait for a callback already running, so it may be called from
// inside one.
func (s *Stream) Unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait))
		_ = s.conn.Close()
	})
}

// Done is closed when the read loop has exited, either after Unsubscribe or
// because the server ended the stream.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Subscribe opens the change stream for collection and calls fn for every
// event, on a single goroutine, until the stream is released or ends.
func (c *Client) Subscribe(ctx context.Context, collection string, types []realtime.EventType, fn func(realtime.Event)) (viewmodel.Subscription, error) {
	return c.Stream(ctx, collection, types, fn)
}

// Stream is Subscribe returning the concrete *Stream.
func (c *Client) Stream(ctx context.Context, collection string, types []realtime.EventType, fn func(realtime.Event)) (*Stream, error) {
	q := url.Values{"collection": {collection}}
	if len(types) > 0 {
		parts := make([]string, len(types))
		for i, t := range types {
			parts[i] = string(t)
		}
		q.Set("events", strings.Join(parts, ","))
	}
	u := c.endpoint("/realtime", q)
	u = "ws" + strings.TrimPrefix(u, "http")

	hdr := http.Header{}
	if c.clientID != "" {
		hdr.Set(headerClientID, c.clientID)
	}
	conn, resp, err := c.dialer.DialContext(ctx, u, hdr)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, err
	}

	s := &Stream{conn: conn, done: make(chan struct{})}
	lg := c.log.With().Str("collection", collection).Logger()
	go func() {
		defer close(s.done)
		for {
			var ev realtime.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					lg.Warn().Err(err).Msg("change stream ended")
				}
				return
			}
			if s.closed.Load() {
				return
			}
			fn(ev)
		}
	}()
	return s, nil
}
