package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/avdeev/usersvc/internal/server"
	"github.com/avdeev/usersvc/internal/server/config"
)

func main() {

	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
