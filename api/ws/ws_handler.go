package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zlnvch/drawroom/metrics"
	"github.com/zlnvch/drawroom/models"
	"github.com/zlnvch/drawroom/service"
)

// Longest a chat frame holds its connection's read loop waiting on the store.
var chatPersistTimeout = 5 * time.Second

type Handler struct {
	Service *service.Service
	Hub     *Hub
	metrics *metrics.Metrics
}

func NewHandler(svc *service.Service, hub *Hub, m *metrics.Metrics) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
		metrics: m,
	}
}

// NewWsUpgrader accepts the origins originAllowed approves. Requests without
// an Origin header (non-browser clients) are accepted.
func (h *Handler) NewWsUpgrader(originAllowed func(origin string) bool) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(origin)
		},
	}
}

// ServeWS handles websocket requests from the peer. The token comes from the
// ?token= query parameter.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	token := r.URL.Query().Get("token")
	userId, authErr := h.Service.AuthenticateToken(token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		log.Printf("Rejecting ws connection: %v", authErr)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, userId, h.HandleWsMessage)
	h.Hub.Open(client)

	// Start pumps
	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

// Websocket message structs
type message struct {
	Type     string          `json:"type"`
	RoomId   models.RoomID   `json:"roomId"`
	Code     json.RawMessage `json:"code"`
	Username string          `json:"username"`
	Msg      json.RawMessage `json:"msg"`
	Message  string          `json:"message"`
}

type codeChangeMessage struct {
	Type   string          `json:"type"`
	Code   json.RawMessage `json:"code"`
	RoomId string          `json:"roomId"`
}

type textMessage struct {
	Type     string          `json:"type"`
	Status   string          `json:"status"`
	Username string          `json:"username"`
	Msg      json.RawMessage `json:"msg"`
	RoomId   string          `json:"roomId"`
}

type chatMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	RoomId  string `json:"roomId"`
}

// HandleWsMessage routes one inbound envelope. Bad envelopes are logged and
// dropped; the connection stays open.
func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON from connection %s: %v", client.Id, err)
		h.metrics.Dropped("malformed")
		return
	}

	roomId := string(msg.RoomId)
	if msg.Type != "" && service.ValidateRoomId(roomId) != nil {
		log.Printf("Dropping %s from connection %s: invalid room id %q", msg.Type, client.Id, roomId)
		h.metrics.Dropped("malformed")
		return
	}

	switch msg.Type {
	case "join_room":
		h.Hub.Join(client, roomId)

	case "leave_room":
		h.Hub.Leave(client, roomId)

	case "offer", "answer", "ice-candidate":
		// Signaling is relayed verbatim
		h.relay(client, msg.Type, Delivery{RoomId: roomId, Mode: DeliverOthers, Payload: messageBytes})

	case "code_change":
		payload, err := json.Marshal(codeChangeMessage{Type: "code_change", Code: orNull(msg.Code), RoomId: roomId})
		if err != nil {
			log.Printf("Error marshaling code_change: %v", err)
			return
		}
		h.relay(client, msg.Type, Delivery{RoomId: roomId, Mode: DeliverOthers, Payload: payload})

	case "messages":
		h.handleMessages(client, roomId, msg)

	case "chat":
		h.handleChat(client, roomId, msg.Message)

	default:
		log.Printf("Unknown message type from connection %s: %q", client.Id, msg.Type)
		h.metrics.Dropped("unknown_type")
	}
}

func (h *Handler) relay(client *Client, msgType string, d Delivery) {
	d.Origin = client.Id
	h.Hub.Deliver(context.Background(), d)
	h.metrics.Relayed(msgType)
}

func (h *Handler) handleMessages(client *Client, roomId string, msg message) {
	received, err := json.Marshal(textMessage{
		Type:     "messages",
		Status:   "received",
		Username: msg.Username,
		Msg:      orNull(msg.Msg),
		RoomId:   roomId,
	})
	if err != nil {
		log.Printf("Error marshaling messages: %v", err)
		return
	}
	sent, err := json.Marshal(textMessage{
		Type:     "messages",
		Status:   "sent",
		Username: "me",
		Msg:      orNull(msg.Msg),
		RoomId:   roomId,
	})
	if err != nil {
		log.Printf("Error marshaling messages: %v", err)
		return
	}

	h.relay(client, msg.Type, Delivery{RoomId: roomId, Mode: DeliverTagged, Payload: received, OriginPayload: sent})
}

// handleChat persists before broadcasting. Only this connection's read loop
// waits on the store.
func (h *Handler) handleChat(client *Client, roomId, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), chatPersistTimeout)
	defer cancel()

	_, err := h.Service.PostChat(ctx, roomId, client.UserId, text)
	if errors.Is(err, service.ErrUserNotFound) {
		log.Printf("User %s does not exist, dropping chat", client.UserId)
		h.metrics.Dropped("unknown_user")
		return
	}
	if err != nil {
		log.Printf("PostChat failed for room %s: %v", roomId, err)
		return
	}

	payload, err := json.Marshal(chatMessage{Type: "chat", Message: text, RoomId: roomId})
	if err != nil {
		log.Printf("Error marshaling chat: %v", err)
		return
	}
	h.relay(client, "chat", Delivery{RoomId: roomId, Mode: DeliverAll, Payload: payload})
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
