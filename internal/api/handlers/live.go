package handlers

import (
	"net/http"
	"time"

	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Clients only send control frames
	maxMessageSize = 4096
)

// LiveMessage is pushed to live clients on every list change
type LiveMessage struct {
	Type    string               `json:"type"`
	Payload controllers.ListView `json:"payload"`
}

// LiveHandler pushes the movie list over a websocket as it changes
type LiveHandler struct {
	registry *controllers.SessionRegistry
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewLiveHandler creates a new live handler
func NewLiveHandler(registry *controllers.SessionRegistry, logger *logrus.Logger) *LiveHandler {
	return &LiveHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// ServeHTTP handles GET /api/live?filter=&sort=
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withClient(h.registry, h.serve)(w, r)
}

func (h *LiveHandler) serve(w http.ResponseWriter, r *http.Request, client *controllers.ClientSession) {
	filter, order, ok := parseViewQuery(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	// Changes are coalesced: the writer always sends the latest view
	changed := make(chan struct{}, 1)
	changed <- struct{}{}
	unwatch := client.Movies.Watch(func(controllers.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, client, filter, order, changed, done)

	unwatch()
	conn.Close()
}

// keepAlivePeriod is how often an open socket pings and refreshes the
// session's idle deadline
func (h *LiveHandler) keepAlivePeriod() time.Duration {
	period := pingPeriod
	if idle := h.registry.IdleTimeout() / 2; idle > 0 && idle < period {
		period = idle
	}
	return period
}

// closeSignedOut tells the client its session ended
func closeSignedOut(conn *websocket.Conn) {
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out")
	conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
}

// readPump consumes control frames until the client goes away
func (h *LiveHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("Unexpected websocket close")
			}
			return
		}
	}
}

func (h *LiveHandler) writePump(conn *websocket.Conn, client *controllers.ClientSession, filter controllers.Filter, order controllers.SortOrder, changed <-chan struct{}, done <-chan struct{}) {
	ticker := time.NewTicker(h.keepAlivePeriod())
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-changed:
			message := LiveMessage{Type: "state", Payload: client.Movies.View(filter, order)}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				h.logger.WithError(err).Debug("Failed to push live update")
				return
			}
			if message.Payload.State == controllers.StateUnauthenticated {
				closeSignedOut(conn)
				return
			}

		case <-ticker.C:
			// A watching client counts as active
			if _, ok := h.registry.Get(client.Token); !ok {
				closeSignedOut(conn)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
