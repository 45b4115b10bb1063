package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/vgc-community/board-backend/internal/config"
	"github.com/vgc-community/board-backend/internal/db"
	"github.com/vgc-community/board-backend/internal/model"
	"github.com/vgc-community/board-backend/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	if err := conn.AutoMigrate(&model.User{}, &model.Conversation{}, &model.Message{}); err != nil {
		log.Fatalf("auto migrate error: %v", err)
	}

	srv, err := server.New(conn)
	if err != nil {
		log.Fatalf("server init error: %v", err)
	}

	addr := ":" + cfg.Port
	log.Printf("starting server on %s", addr)
	if err := srv.Start(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
