package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vgc-community/board-backend/internal/model"
	"github.com/vgc-community/board-backend/internal/realtime"
	"github.com/vgc-community/board-backend/internal/repository"
	"github.com/vgc-community/board-backend/internal/service"
)

type ConversationHandler struct {
	svc   service.ConversationService
	users repository.UserRepository
	hub   *realtime.Hub
}

func NewConversationHandler(svc service.ConversationService, users repository.UserRepository, hub *realtime.Hub) *ConversationHandler {
	return &ConversationHandler{svc: svc, users: users, hub: hub}
}

type StartConversationRequest struct {
	Nickname string `json:"nickname"`
}

type StartConversationResponse struct {
	ConversationID uint64 `json:"conversationId"`
}

type MessageRequest struct {
	Content string `json:"content"`
}

type MessageResponse struct {
	ID              uint64    `json:"id"`
	ConversationID  uint64    `json:"conversationId"`
	SenderNickname  *string   `json:"senderNickname"`
	Content         string    `json:"content"`
	IsSystemMessage bool      `json:"isSystemMessage"`
	CreatedAt       time.Time `json:"createdAt"`
}

func NewMessageResponse(m *model.Message) MessageResponse {
	return MessageResponse{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderNickname:  m.SenderNickname,
		Content:         m.Content,
		IsSystemMessage: m.IsSystem,
		CreatedAt:       m.CreatedAt,
	}
}

func (h *ConversationHandler) Start(c echo.Context) error {
	user, ok := h.currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "no registered profile"))
	}
	var req StartConversationRequest
	if err := c.Bind(&req); err != nil || req.Nickname == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "nickname is required"))
	}
	cv, err := h.svc.StartOrResume(c.Request().Context(), user, req.Nickname)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, StartConversationResponse{ConversationID: cv.ID})
}

func (h *ConversationHandler) List(c echo.Context) error {
	user, ok := h.currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "no registered profile"))
	}
	summaries, err := h.svc.ListActive(c.Request().Context(), user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch conversations"))
	}
	return c.JSON(http.StatusOK, summaries)
}

func (h *ConversationHandler) ListMessages(c echo.Context) error {
	user, ok := h.currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "no registered profile"))
	}
	convID, err := parseConversationID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	msgs, err := h.svc.Messages(c.Request().Context(), convID, user)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		resp = append(resp, NewMessageResponse(&msgs[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ConversationHandler) CreateMessage(c echo.Context) error {
	user, ok := h.currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "no registered profile"))
	}
	convID, err := parseConversationID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	msg, err := h.svc.SendMessage(c.Request().Context(), convID, user, req.Content)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := NewMessageResponse(msg)
	publishMessage(h.hub, resp)
	return c.JSON(http.StatusOK, resp)
}

func (h *ConversationHandler) Leave(c echo.Context) error {
	user, ok := h.currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "no registered profile"))
	}
	convID, err := parseConversationID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	if err := h.svc.Leave(c.Request().Context(), convID, user); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "left"})
}

func (h *ConversationHandler) currentUser(c echo.Context) (*model.User, bool) {
	uid, _ := c.Get("uid").(string)
	user, err := resolveUser(c.Request().Context(), h.users, uid)
	if err != nil {
		return nil, false
	}
	return user, true
}

func parseConversationID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrPeerNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "conversation not found"))
	case errors.Is(err, service.ErrSelfConversation):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	case errors.Is(err, service.ErrEmptyContent):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	case errors.Is(err, service.ErrNotParticipant):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not a participant"))
	case errors.Is(err, service.ErrPeerLeft):
		return c.JSON(http.StatusConflict, NewErrorResponse("peer_left", err.Error()))
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", err.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "unexpected error"))
	}
}
