package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/vgc-community/board-backend/internal/handler"
	appmw "github.com/vgc-community/board-backend/internal/middleware"
	"github.com/vgc-community/board-backend/internal/realtime"
	"github.com/vgc-community/board-backend/internal/repository"
	"github.com/vgc-community/board-backend/internal/service"
	"gorm.io/gorm"
)

type Server struct {
	e        *echo.Echo
	hub      *realtime.Hub
	userRepo repository.UserRepository
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
}

func New(db *gorm.DB) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			return strings.HasSuffix(u.Hostname(), "vercel.app"), nil
		},
	}))

	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	hub := realtime.NewHub()

	convSvc := service.NewConversationService(convRepo, msgRepo, userRepo)
	convHandler := handler.NewConversationHandler(convSvc, userRepo, hub)
	userHandler := handler.NewUserHandler(userRepo)

	authMw, err := appmw.NewAuthMiddleware(context.Background())
	if err != nil {
		return nil, err
	}
	wsHandler := handler.NewChatWSHandler(convSvc, userRepo, hub, authMw)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
	})

	api := e.Group("/api")
	api.POST("/users", userHandler.Register, authMw.RequireAuth)
	api.GET("/me", userHandler.Me, authMw.RequireAuth)
	api.POST("/conversations", convHandler.Start, authMw.RequireAuth)
	api.GET("/conversations", convHandler.List, authMw.RequireAuth)
	api.GET("/conversations/:id/messages", convHandler.ListMessages, authMw.RequireAuth)
	api.POST("/conversations/:id/messages", convHandler.CreateMessage, authMw.RequireAuth)
	api.POST("/conversations/:id/leave", convHandler.Leave, authMw.RequireAuth)
	api.GET("/ws", wsHandler.Serve)

	return &Server{e: e, hub: hub, userRepo: userRepo, convRepo: convRepo, msgRepo: msgRepo}, nil
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.e.Shutdown(ctx)
}

func (s *Server) SetDB(db *gorm.DB) {
	s.userRepo.SetDB(db)
	s.convRepo.SetDB(db)
	s.msgRepo.SetDB(db)
}
