package handlers

import (
	"bufio"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/realtime"
	"github.com/localnerve/jam-build-recordsdb/internal/services"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// DefaultKeepAlive is the idle interval between keep-alive frames
const DefaultKeepAlive = 30 * time.Second

// RealtimeHandler streams bus events to clients as server-sent events
type RealtimeHandler struct {
	Bus         *realtime.Bus
	Collections *services.CollectionService
	KeepAlive   time.Duration
	Log         *zap.SugaredLogger
}

// Subscribe handles GET /api/realtime and GET /api/realtime/:collection
// @Summary Subscribe to change events
// @Description Server-sent events for one collection, or all collections when none is named.
// @Description Frames are "event: <type>" with a JSON data line; ": keep-alive" comments are sent when idle.
// @Tags Realtime
// @Produce text/event-stream
// @Param collection path string false "Collection name"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /realtime/{collection} [get]
func (h *RealtimeHandler) Subscribe(c *fiber.Ctx) error {
	name := c.Params("collection")
	if name != "" {
		if _, err := h.Collections.GetByName(c.UserContext(), name); err != nil {
			return err
		}
	}

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	log := h.Log
	if log == nil {
		log = zap.S()
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.Bus.Subscribe(name)
	bus := h.Bus

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer bus.Unsubscribe(sub)

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		if err := realtime.WriteConnected(w, name, bus.SubscriberCount(name)); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case e, ok := <-sub.Events():
				if !ok {
					log.Debugw("realtime stream ended by bus", "collection", name)
					return
				}
				if err := e.WriteSSE(w); err != nil {
					return
				}
			case <-ticker.C:
				if err := realtime.WriteKeepAlive(w); err != nil {
					return
				}
			}

			// A failed flush means the client is gone
			if err := w.Flush(); err != nil {
				log.Debugw("realtime client disconnected", "collection", name, "error", err)
				return
			}
		}
	}))

	return nil
}
