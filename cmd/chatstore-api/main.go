package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/mparedes/chatstore/internal/adapters/http"
	dynamostore "github.com/mparedes/chatstore/internal/adapters/storage/dynamodb"
	firestorestore "github.com/mparedes/chatstore/internal/adapters/storage/firestore"
	memstore "github.com/mparedes/chatstore/internal/adapters/storage/memory"
	sqlitestore "github.com/mparedes/chatstore/internal/adapters/storage/sqlite"
	"github.com/mparedes/chatstore/internal/app/history"
	"github.com/mparedes/chatstore/internal/config"
	"github.com/mparedes/chatstore/internal/domain"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	var repo domain.Repository

	switch cfg.StorageBackend {
	case "firestore":
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		store, err := firestorestore.NewRepository(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore repository: %v", err)
		}
		defer store.Close()
		repo = store

	case "dynamodb":
		log.Printf("[STORE] Using DynamoDB storage (table=%s region=%s)", cfg.DynamoTable, cfg.AWSRegion)
		store, err := dynamostore.NewRepository(ctx, cfg.DynamoTable, cfg.AWSRegion, cfg.TTLAttribute)
		if err != nil {
			log.Fatalf("error initializing DynamoDB repository: %v", err)
		}
		repo = store

	case "sqlite":
		log.Printf("[STORE] Using SQLite storage (path=%s)", cfg.SQLitePath)
		store, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("error initializing SQLite repository: %v", err)
		}
		defer store.Close()
		repo = store

	default:
		log.Println("[STORE] Using in-memory storage")
		repo = memstore.NewRepository()
	}

	svc := history.NewService(repo, history.Options{
		CacheTTL: cfg.CacheTTL,
		ItemTTL:  cfg.ItemTTL,
	})

	handler := httpadapter.NewServer(svc, cfg.MaxHistorySize)

	addr := ":" + cfg.Port
	log.Println("chatstore API listening on", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}
