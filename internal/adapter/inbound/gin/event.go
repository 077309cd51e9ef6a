package gin

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/henjicc/henji-server/internal/infra/events"
	"github.com/henjicc/henji-server/internal/port/inbound"
)

const (
	defaultHeartbeat = 15 * time.Second
	subscriberBuffer = 64
)

// eventAdapter implements inbound.EventHttpPort.
type eventAdapter struct {
	bus       *events.Bus
	heartbeat time.Duration
}

// NewEventAdapter creates a new SSE adapter streaming task events from bus.
func NewEventAdapter(bus *events.Bus, heartbeat time.Duration) inbound.EventHttpPort {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &eventAdapter{bus: bus, heartbeat: heartbeat}
}

// StreamEvents streams task events.
//
//	@Summary		Task event stream
//	@Description	Server-Sent Events carrying TaskUpdated, TaskProgress and TaskRemoved. EventSource clients may pass the token as access_token.
//	@Tags			Tasks
//	@Produce		text/event-stream
//	@Security		BearerAuth
//	@Success		200	"SSE stream of task events"
//	@Router			/events [get]
func (a *eventAdapter) StreamEvents(c *gin.Context) {
	ch := make(chan events.Event, subscriberBuffer)
	types := []string{events.TaskUpdatedType, events.TaskProgressType, events.TaskRemovedType}
	unregister := a.bus.Register(events.NewHandlerFunc(types, func(e events.Event) error {
		// Slow clients miss events and resync from GET /tasks.
		select {
		case ch <- e:
		default:
		}
		return nil
	}))
	defer unregister()

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"time": time.Now().Unix()})
	c.Writer.Flush()

	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e := <-ch:
			c.SSEvent(e.EventType(), e)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().Unix()})
			return true
		}
	})
}
