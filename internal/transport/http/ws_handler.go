package http

import (
	"net/http"
	"time"

	"corrode-course/internal/app"
	"corrode-course/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

// WSHandler streams a participant's progress view, re-derived after every change.
type WSHandler struct {
	service  *app.CourseService
	feed     *app.Feed
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.CourseService, feed *app.Feed, m *metrics.Metrics) *WSHandler {
	return &WSHandler{
		service: service,
		feed:    feed,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS handles GET /ws/progress/{ulid}.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	participantID := r.PathValue("ulid")
	logger := zerolog.Ctx(r.Context()).With().Str("participant", participantID).Logger()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before the first read so no change slips between the two.
	updates, cancel := h.feed.Subscribe(participantID)
	defer cancel()
	h.metrics.IncStreams()
	defer h.metrics.DecStreams()

	// The client never sends anything meaningful; reading only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !h.pushProgress(r, conn, logger) {
		return
	}
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
			if !h.pushProgress(r, conn, logger) {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *WSHandler) pushProgress(r *http.Request, conn *websocket.Conn, logger zerolog.Logger) bool {
	progress, err := h.service.Status(r.Context(), r.PathValue("ulid"))
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err != nil {
		logger.Error().Err(err).Msg("progress refresh failed")
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "progress unavailable"}})
		return true
	}
	if err := conn.WriteJSON(outboundMessage[ProgressResponse]{Type: "progress", Payload: toProgressResponse(progress)}); err != nil {
		logger.Debug().Err(err).Msg("ws write error")
		return false
	}
	return true
}
