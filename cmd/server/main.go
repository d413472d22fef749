package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/voicegate/internal/server"
	"github.com/dmitrijs2005/voicegate/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment overlay is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("loading .env: %v", err)
	}

	cfg := config.LoadConfig()
	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
