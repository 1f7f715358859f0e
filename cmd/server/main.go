package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/avbaranovs/schoolcast/internal/server"
	"github.com/avbaranovs/schoolcast/internal/server/config"
)

func main() {
	// optional .env for local development
	_ = godotenv.Load()

	cfg := config.LoadConfig()

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}

	app.Run(ctx)
}
