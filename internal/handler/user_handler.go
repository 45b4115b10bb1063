package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vgc-community/board-backend/internal/model"
	"github.com/vgc-community/board-backend/internal/repository"
	"gorm.io/gorm"
)

type UserHandler struct {
	users repository.UserRepository
}

func NewUserHandler(users repository.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

type RegisterRequest struct {
	Nickname string `json:"nickname"`
}

// Register binds the authenticated firebase uid to a nickname. Registration
// is idempotent for the same uid.
func (h *UserHandler) Register(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "nickname is required"))
	}
	ctx := c.Request().Context()
	if existing, err := h.users.FindByFirebaseUID(ctx, uid); err == nil {
		return c.JSON(http.StatusOK, existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to look up profile"))
	}
	u := &model.User{FirebaseUID: uid, Nickname: nickname}
	if err := h.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.JSON(http.StatusConflict, NewErrorResponse("conflict", "nickname already taken"))
		}
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to register"))
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Me(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	user, err := resolveUser(c.Request().Context(), h.users, uid)
	if err != nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "profile not registered"))
	}
	return c.JSON(http.StatusOK, user)
}
