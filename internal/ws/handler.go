package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/domain/widget"
	"github.com/inthisone/dashcore/internal/events"
	"github.com/inthisone/dashcore/internal/infrastructure/monitoring"
	"github.com/inthisone/dashcore/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The shell connects from an ephemeral local port
	},
}

// StreamQueueSize bounds the per-connection event backlog
const StreamQueueSize = 256

// Message is the inbound frame envelope
type Message struct {
	Type       string          `json:"type"`
	InstanceID string          `json:"instance_id,omitempty"`
	Geometry   *types.Geometry `json:"geometry,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	bus     *events.Bus
	widgets *widget.Manager
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(bus *events.Bus, widgets *widget.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bus:     bus,
		widgets: widgets,
		metrics: metrics,
		logger:  logger,
	}
}

// client serializes frame writes; gorilla connections allow one writer at a
// time and both the read loop and the event pump reply on this socket
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(data)
}

// HandleConnection handles WebSocket upgrade and the frame loop
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := h.logger.With(zap.String("conn_id", connID))
	log.Debug("stream connected")
	defer log.Debug("stream closed")

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	cl := &client{conn: conn}

	// One wildcard subscription carries every event topic to this shell.
	// Subscribing before the welcome frame means a client that has seen the
	// banner is already receiving events.
	sub := h.bus.SubscribeBuffered(types.TopicAll, StreamQueueSize)
	defer h.bus.Unsubscribe(sub)
	go h.pump(cl, sub)

	// Send welcome message
	h.send(cl, map[string]interface{}{
		"type":    "system",
		"message": "Connected to dashcore",
		"conn_id": connID,
	})

	// Listen for messages
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read ended", zap.Error(err))
			}
			break
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "geometry":
			h.handleGeometry(cl, msg)
		case "refresh":
			h.handleRefresh(cl)
		case "ping":
			h.send(cl, map[string]interface{}{"type": "pong"})
		default:
			h.sendError(cl, "unknown message type")
		}
	}
}

// pump forwards bus events to the peer until the subscription or the
// connection goes away
func (h *Handler) pump(cl *client, sub *events.Subscription) {
	for ev := range sub.C {
		err := h.send(cl, map[string]interface{}{
			"type":      ev.Type,
			"topic":     ev.Topic,
			"payload":   ev.Payload,
			"timestamp": ev.Time.Unix(),
		})
		if err != nil {
			// Peer is gone; unblock the read loop too
			cl.conn.Close()
			return
		}
		h.metrics.RecordWSMessage("out", ev.Type)
	}
}

func (h *Handler) handleGeometry(cl *client, msg Message) {
	if msg.InstanceID == "" || msg.Geometry == nil {
		h.sendError(cl, "geometry frame needs instance_id and geometry")
		return
	}

	if err := h.widgets.UpdateGeometry(msg.InstanceID, *msg.Geometry); err != nil {
		h.sendError(cl, err.Error())
		return
	}

	h.send(cl, map[string]interface{}{
		"type":        "geometry_ack",
		"instance_id": msg.InstanceID,
		"timestamp":   time.Now().Unix(),
	})
}

func (h *Handler) handleRefresh(cl *client) {
	refreshed := h.widgets.RefreshAll()

	h.send(cl, map[string]interface{}{
		"type":      "refreshed",
		"widgets":   refreshed,
		"timestamp": time.Now().Unix(),
	})
}

func (h *Handler) send(cl *client, data interface{}) error {
	return cl.write(data)
}

func (h *Handler) sendError(cl *client, msg string) error {
	return h.send(cl, map[string]interface{}{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}
