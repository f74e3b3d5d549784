package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/zyalhor1961/corematch-web-sub006/internal/liveevents"
)

const sseHeartbeatInterval = 15 * time.Second

// DocumentEvents streams pipeline frames for a single document as
// server-sent events. The replay buffer is flushed first, then live
// frames until the client hangs up.
func (s *Server) DocumentEvents(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("document_id"))
	if err != nil || id == 0 {
		AbortWithError(c, newValidationError("document_id", "invalid_document_id", "invalid document id"))
		return
	}

	// Existence and tenancy are checked before the stream opens.
	if _, err := s.documentSvc.GetByID(c.Request.Context(), id.String()); err != nil {
		AbortWithError(c, err)
		return
	}

	sub, backlog, err := s.hub.Subscribe(liveevents.DocumentTopic(id))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return
	}

	fmt.Fprint(c.Writer, "retry: 2000\n\n")
	for _, frame := range backlog {
		writeSSEFrame(c, frame)
	}
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.Events():
			if !ok {
				return
			}
			writeSSEFrame(c, frame)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEFrame(c *gin.Context, frame liveevents.Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
}
