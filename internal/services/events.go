package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-restaurant-backend/internal/realtime"
)

// publish emits a change event for row. Failures are logged: the write has
// already been committed and subscribers recover on the next event.
func publish(ctx context.Context, p realtime.Publisher, t realtime.EventType, collection string, row any) {
	if p == nil {
		return
	}
	ev, err := realtime.NewEvent(t, collection, row)
	if err == nil {
		err = p.Publish(ctx, ev)
	}
	if err != nil {
		log.Warn().Err(err).
			Str("collection", collection).
			Str("type", string(t)).
			Msg("publish change event failed")
	}
}
