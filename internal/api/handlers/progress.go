package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/reelcut/video-editor/backend/internal/services"
	"go.uber.org/zap"
)

const progressWriteWait = 10 * time.Second

// ProgressHandler streams export progress over a websocket
type ProgressHandler struct {
	services *services.Services
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewProgressHandler(services *services.Services, cfg *config.Config, logger *zap.Logger) *ProgressHandler {
	origins := cfg.Server.CorsOrigins
	return &ProgressHandler{
		services: services,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
			},
		},
		logger: logger,
	}
}

func (h *ProgressHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := h.services.Progress.Subscribe()
	defer unsubscribe()

	// the client never sends; reading only notices when it goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("Progress subscriber dropped", zap.Error(err))
				return
			}
		}
	}
}
