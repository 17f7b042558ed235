package ws

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livedemo/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livedemo/internal/livedemo"
	"github.com/GriffinCanCode/livedemo/internal/logging"
	"github.com/GriffinCanCode/livedemo/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // frame hosts are served from arbitrary preview origins
	},
}

// Handler attaches websocket frame hosts to iframe demos
type Handler struct {
	catalogue *livedemo.Catalogue
	metrics   *monitoring.Metrics
	logger    *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(catalogue *livedemo.Catalogue, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		catalogue: catalogue,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleFrame upgrades the request and makes the connection the demo's
// frame. The latest source is replayed so the new peer catches up.
func (h *Handler) HandleFrame(c *gin.Context) {
	demoID := id.DemoID(c.Param("id"))

	d, ok := h.catalogue.Demo(demoID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown demo", "demo_id": demoID.String()})
		return
	}
	if !d.Iframe {
		c.JSON(http.StatusConflict, gin.H{"error": "demo renders in the page, not in a frame"})
		return
	}

	ctrl, err := h.catalogue.Open(demoID)
	if err != nil {
		if errors.Is(err, livedemo.ErrUnknownDemo) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	frame, _ := h.catalogue.Frame(demoID)
	relay, ok := frame.(*bridge.Relay)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "demo frame is hosted in-process"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("demo", demoID.String()), zap.Error(err), tracing.Field(c.Request.Context()))
		return
	}

	peerID, done := relay.Attach(conn)
	h.metrics.IncFrameConnections()
	defer h.metrics.DecFrameConnections()

	if err := ctrl.SetSource(ctrl.Source()); err != nil {
		h.logger.Debug("replay source", zap.String("demo", demoID.String()), zap.Error(err), tracing.Field(c.Request.Context()))
	}

	select {
	case <-done:
	case <-c.Request.Context().Done():
	}
	h.logger.Debug("frame handler finished",
		zap.String("demo", demoID.String()),
		zap.String("peer", peerID),
		tracing.Field(c.Request.Context()))
}
