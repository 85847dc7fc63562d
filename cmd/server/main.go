package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/openloop/pkg/archive"
	"github.com/mikeboe/openloop/pkg/chat"
	"github.com/mikeboe/openloop/pkg/clients"
	"github.com/mikeboe/openloop/pkg/config"
	"github.com/mikeboe/openloop/pkg/database"
	"github.com/mikeboe/openloop/pkg/embeddings"
	"github.com/mikeboe/openloop/pkg/search"
	"github.com/mikeboe/openloop/pkg/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	// Database Connection
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Schema
	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Loop models
	queryLLM, err := clients.GoogleAI(ctx, cfg.GoogleApiKey, cfg.QueryModel)
	if err != nil {
		log.Fatalf("Failed to init query model: %v", err)
	}
	reflectionLLM, err := clients.GoogleAI(ctx, cfg.GoogleApiKey, cfg.ReflectionModel)
	if err != nil {
		log.Fatalf("Failed to init reflection model: %v", err)
	}
	answerLLM, err := clients.GoogleAI(ctx, cfg.GoogleApiKey, cfg.AnswerModel)
	if err != nil {
		log.Fatalf("Failed to init answer model: %v", err)
	}

	// Web search
	searcher := search.NewClient(cfg.TavilyApiKey)
	searcher.Depth = cfg.SearchDepth
	searcher.MaxResults = cfg.MaxSearchResults

	// Evidence archive
	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey)
	if err != nil {
		log.Fatalf("Failed to init embedder: %v", err)
	}
	archiver := archive.NewArchiver(db, embedder, cfg.CollectionName, cfg.ChunkSize, cfg.ChunkOverlap)

	// Initialize Chat Service
	chatSvc, err := chat.NewService(ctx, db, cfg)
	if err != nil {
		log.Fatalf("Failed to init chat service: %v", err)
	}
	evidenceTools := chat.NewEvidenceToolset(db, embedder, cfg)

	// Initialize Service & Handler
	svc := server.NewService(db, cfg, queryLLM, reflectionLLM, answerLLM, searcher)
	svc.Archiver = archiver
	handler := server.NewHandler(svc, chatSvc, evidenceTools)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
