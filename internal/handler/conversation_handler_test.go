package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vgc-community/board-backend/internal/model"
	"github.com/vgc-community/board-backend/internal/realtime"
	"github.com/vgc-community/board-backend/internal/service"
	"gorm.io/gorm"
)

type stubUserRepo struct {
	user *model.User
}

func (r *stubUserRepo) Create(ctx context.Context, u *model.User) error { return nil }

func (r *stubUserRepo) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) FindByFirebaseUID(ctx context.Context, uid string) (*model.User, error) {
	if r.user != nil && r.user.FirebaseUID == uid {
		return r.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) FindByNickname(ctx context.Context, nickname string) (*model.User, error) {
	if r.user != nil && r.user.Nickname == nickname {
		return r.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) SetDB(db *gorm.DB) {}

type stubService struct {
	sendErr  error
	sent     *model.Message
	leaveErr error
	startErr error
	conv     *model.Conversation
}

func (s *stubService) StartOrResume(ctx context.Context, user *model.User, peerNickname string) (*model.Conversation, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	return s.conv, nil
}

func (s *stubService) ListActive(ctx context.Context, user *model.User) ([]service.ConversationSummary, error) {
	return nil, nil
}

func (s *stubService) Conversation(ctx context.Context, convID uint64, user *model.User) (*model.Conversation, error) {
	return s.conv, nil
}

func (s *stubService) Messages(ctx context.Context, convID uint64, user *model.User) ([]model.Message, error) {
	return nil, nil
}

func (s *stubService) SendMessage(ctx context.Context, convID uint64, sender *model.User, content string) (*model.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return s.sent, nil
}

func (s *stubService) Leave(ctx context.Context, convID uint64, user *model.User) error {
	return s.leaveErr
}

type recordingSession struct {
	id       string
	received [][]byte
}

func (s *recordingSession) ID() string { return s.id }

func (s *recordingSession) Send(payload []byte) error {
	s.received = append(s.received, payload)
	return nil
}

func newTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", "fb-1")
	return c, rec
}

func TestCreateMessagePublishesToTopic(t *testing.T) {
	nickname := "alice"
	user := &model.User{ID: 1, FirebaseUID: "fb-1", Nickname: nickname}
	msg := &model.Message{
		ID:             10,
		ConversationID: 7,
		SenderNickname: &nickname,
		Content:        "hi",
		CreatedAt:      time.Now(),
	}
	hub := realtime.NewHub()
	sub := &recordingSession{id: "sub"}
	hub.Register(sub)
	hub.Subscribe(7, "sub")

	h := NewConversationHandler(&stubService{sent: msg}, &stubUserRepo{user: user}, hub)

	c, rec := newTestContext(t, http.MethodPost, "/api/conversations/7/messages", `{"content":"hi"}`)
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := h.CreateMessage(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	if len(sub.received) != 1 {
		t.Fatalf("subscriber received %d payloads, want 1", len(sub.received))
	}
	var pushed MessageResponse
	if err := json.Unmarshal(sub.received[0], &pushed); err != nil {
		t.Fatal(err)
	}
	if pushed.Content != "hi" || pushed.ConversationID != 7 {
		t.Fatalf("pushed payload %+v", pushed)
	}

	var replied MessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &replied); err != nil {
		t.Fatal(err)
	}
	if replied.ID != pushed.ID {
		t.Fatal("REST response and pushed payload must describe the same message")
	}
}

func TestCreateMessageErrorsDoNotPublish(t *testing.T) {
	user := &model.User{ID: 1, FirebaseUID: "fb-1", Nickname: "alice"}
	hub := realtime.NewHub()
	sub := &recordingSession{id: "sub"}
	hub.Register(sub)
	hub.Subscribe(7, "sub")

	h := NewConversationHandler(&stubService{sendErr: service.ErrPeerLeft}, &stubUserRepo{user: user}, hub)

	c, rec := newTestContext(t, http.MethodPost, "/api/conversations/7/messages", `{"content":"hi"}`)
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := h.CreateMessage(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	if len(sub.received) != 0 {
		t.Fatal("failed send must not reach subscribers")
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"peer not found", service.ErrPeerNotFound, http.StatusNotFound},
		{"conversation not found", service.ErrNotFound, http.StatusNotFound},
		{"self conversation", service.ErrSelfConversation, http.StatusBadRequest},
		{"empty content", service.ErrEmptyContent, http.StatusBadRequest},
		{"not participant", service.ErrNotParticipant, http.StatusForbidden},
		{"peer left", service.ErrPeerLeft, http.StatusConflict},
		{"conflict", service.ErrConflict, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext(t, http.MethodGet, "/", "")
			if err := writeServiceError(c, tt.err); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tt.code {
				t.Fatalf("status %d, want %d", rec.Code, tt.code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code == "" {
				t.Fatal("error response must carry a code")
			}
		})
	}
}

func TestStartRequiresRegisteredProfile(t *testing.T) {
	h := NewConversationHandler(&stubService{}, &stubUserRepo{}, realtime.NewHub())

	c, rec := newTestContext(t, http.MethodPost, "/api/conversations", `{"nickname":"bob"}`)
	if err := h.Start(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestLeaveReturnsStatus(t *testing.T) {
	user := &model.User{ID: 1, FirebaseUID: "fb-1", Nickname: "alice"}
	h := NewConversationHandler(&stubService{}, &stubUserRepo{user: user}, realtime.NewHub())

	c, rec := newTestContext(t, http.MethodPost, "/api/conversations/7/leave", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := h.Leave(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "left" {
		t.Fatalf("status field %q, want left", resp["status"])
	}
}
