package fanout

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Origin policy is enforced by the HTTP layer's CORS and token checks.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// joinMessage is the observer-to-server wire message. Identity is accepted
// as an alias for Topic.
type joinMessage struct {
	Action   string `json:"action"`
	Topic    string `json:"topic"`
	Identity string `json:"identity"`
}

// ServeWS upgrades the request and attaches the connection as an observer.
// The pumps run until either side closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("remote", r.RemoteAddr).Err(err).Msg("fanout_upgrade_failed")
		return err
	}
	o := h.Attach("")
	log.Info().Str("observer", o.id).Str("remote", r.RemoteAddr).Msg("fanout_ws_connected")

	go h.writePump(o, conn)
	go h.readPump(o, conn)
	return nil
}

func (h *Hub) readPump(o *Observer, conn *websocket.Conn) {
	defer func() {
		h.Detach(o)
		_ = conn.Close()
		log.Info().Str("observer", o.id).Msg("fanout_ws_disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Str("observer", o.id).Err(err).Msg("fanout_ws_read_failed")
			}
			return
		}
		handleMessage(o, message)
	}
}

func handleMessage(o *Observer, data []byte) {
	var msg joinMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Str("observer", o.id).Err(err).Msg("fanout_ws_bad_message")
		return
	}
	switch strings.ToLower(strings.TrimSpace(msg.Action)) {
	case "join":
		topic := msg.Topic
		if strings.TrimSpace(topic) == "" {
			topic = msg.Identity
		}
		if !o.Join(topic) {
			log.Debug().Str("observer", o.id).Msg("fanout_ws_join_empty")
		}
	default:
		log.Debug().Str("observer", o.id).Str("action", msg.Action).Msg("fanout_ws_unknown_action")
	}
}

func (h *Hub) writePump(o *Observer, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-o.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
