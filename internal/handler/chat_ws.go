package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/vgc-community/board-backend/internal/realtime"
	"github.com/vgc-community/board-backend/internal/repository"
	"github.com/vgc-community/board-backend/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced at the HTTP layer.
		return true
	},
}

// TokenVerifier validates a bearer credential and returns the subject uid.
// *middleware.AuthMiddleware is the production implementation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// ChatWSHandler is the realtime side of the delivery gateway. A client
// authenticates at connect time, subscribes to conversation topics, and can
// send messages that are persisted through the conversation service before
// being fanned out.
//
// Client protocol (JSON frames):
//
//	-> {"type": "subscribe", "conversationId": N}
//	-> {"type": "unsubscribe", "conversationId": N}
//	-> {"type": "message", "conversationId": N, "content": string}
//	<- {"type": "error", "error": string}
//	<- message payloads in the same shape as the REST send response
type ChatWSHandler struct {
	svc      service.ConversationService
	users    repository.UserRepository
	hub      *realtime.Hub
	verifier TokenVerifier
}

func NewChatWSHandler(svc service.ConversationService, users repository.UserRepository, hub *realtime.Hub, verifier TokenVerifier) *ChatWSHandler {
	return &ChatWSHandler{svc: svc, users: users, hub: hub, verifier: verifier}
}

type wsClientFrame struct {
	Type           string `json:"type"`
	ConversationID uint64 `json:"conversationId"`
	Content        string `json:"content"`
}

type wsErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (h *ChatWSHandler) Serve(c echo.Context) error {
	// Browsers cannot set headers on websocket requests, so the token is
	// accepted from either the Authorization header or ?token=.
	tokenStr := strings.TrimSpace(c.QueryParam("token"))
	if tokenStr == "" {
		if authz := c.Request().Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
			tokenStr = strings.TrimPrefix(authz, "Bearer ")
		}
	}
	if tokenStr == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing token"))
	}
	uid, err := h.verifier.Verify(c.Request().Context(), tokenStr)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "invalid token"))
	}
	user, err := resolveUser(c.Request().Context(), h.users, uid)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "no registered profile"))
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return nil
	}

	conn := realtime.NewConnection(user.ID, ws)
	conn.Start()
	h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(conn.ID())
		conn.Close(websocket.CloseNormalClosure, "session ended")
	}()

	ws.SetReadLimit(1 << 20)
	_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return nil
		}
		_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))

		var frame wsClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.sendError(conn, "invalid frame")
			continue
		}
		ctx := c.Request().Context()
		switch strings.ToLower(frame.Type) {
		case "subscribe":
			if _, err := h.svc.Conversation(ctx, frame.ConversationID, user); err != nil {
				h.sendError(conn, "cannot subscribe: "+serviceErrorText(err))
				continue
			}
			h.hub.Subscribe(frame.ConversationID, conn.ID())
		case "unsubscribe":
			h.hub.Unsubscribe(frame.ConversationID, conn.ID())
		case "message":
			msg, err := h.svc.SendMessage(ctx, frame.ConversationID, user, frame.Content)
			if err != nil {
				h.sendError(conn, serviceErrorText(err))
				continue
			}
			publishMessage(h.hub, NewMessageResponse(msg))
		default:
			h.sendError(conn, "unknown frame type")
		}
	}
}

func (h *ChatWSHandler) sendError(conn *realtime.Connection, text string) {
	payload, err := json.Marshal(wsErrorFrame{Type: "error", Error: text})
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}

// publishMessage fans a persisted message out on its conversation's topic.
// Publication happens only after the service call succeeded, so subscribers
// never see writes that rolled back.
func publishMessage(hub *realtime.Hub, resp MessageResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Printf("[ws] marshal message %d: %v", resp.ID, err)
		return
	}
	hub.Publish(resp.ConversationID, payload)
}

func serviceErrorText(err error) string {
	switch err {
	case service.ErrNotFound, service.ErrNotParticipant, service.ErrPeerLeft,
		service.ErrEmptyContent, service.ErrConflict:
		return err.Error()
	default:
		return "unexpected error"
	}
}
