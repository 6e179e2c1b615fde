package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/petits-plats/api/internal/config"
	"github.com/petits-plats/api/internal/router"
	"github.com/petits-plats/api/internal/session"
	"github.com/petits-plats/api/internal/storage"
	"github.com/petits-plats/api/internal/ws"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	sessions := session.NewStore()

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, store, sessions, hub)

	log.Printf("Starting server on :%s (data dir %s)", cfg.Port, cfg.DataDir)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
