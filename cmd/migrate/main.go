package main

import (
	"log"

	"github.com/finvault/ledger-service/internal/config"
	"github.com/finvault/ledger-service/internal/storage/postgres"
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(postgres.Schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	log.Println("schema applied")
}
