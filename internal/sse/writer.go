package sse

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arcanelabs/tarot-backend/internal/logger"
)

const heartbeatInterval = 15 * time.Second

// Stream drains the event channel onto an SSE response, flushing after every
// event and emitting a comment heartbeat during quiet stretches so proxies
// keep the connection open. It returns when the channel closes or the client
// disconnects.
func Stream(c *gin.Context, events <-chan Event, log *logger.Logger) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			log.Info("SSE client disconnected")
			return
		case <-heartbeat.C:
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			raw, err := ev.Marshal()
			if err != nil {
				log.Warn("Dropping unmarshalable event", "event_type", ev.Type(), "error", err)
				continue
			}
			if _, err := c.Writer.WriteString("data: " + string(raw) + "\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
