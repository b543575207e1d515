package main

import (
	"context"
	"fmt"
	"os"

	"github.com/verityops/compliance-backend/internal/clients/gcp"
	"github.com/verityops/compliance-backend/internal/clients/openai"
	"github.com/verityops/compliance-backend/internal/clients/pinecone"
	"github.com/verityops/compliance-backend/internal/data/db"
	"github.com/verityops/compliance-backend/internal/data/repos"
	apphttp "github.com/verityops/compliance-backend/internal/http"
	"github.com/verityops/compliance-backend/internal/http/handlers"
	"github.com/verityops/compliance-backend/internal/http/middleware"
	"github.com/verityops/compliance-backend/internal/ingestion/chunker"
	"github.com/verityops/compliance-backend/internal/ingestion/extractor"
	"github.com/verityops/compliance-backend/internal/jobs"
	"github.com/verityops/compliance-backend/internal/platform/envutil"
	"github.com/verityops/compliance-backend/internal/platform/logger"
	"github.com/verityops/compliance-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := db.AutoMigrateAll(postgresService.DB()); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	if err := db.EnsureIndexes(postgresService.DB()); err != nil {
		log.Warn("Index creation failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	policyRepo := repos.NewPolicyRepo(thePG, log)
	policyChunkRepo := repos.NewPolicyChunkRepo(thePG, log)
	ruleRepo := repos.NewComplianceRuleRepo(thePG, log)
	auditRepo := repos.NewAuditDocumentRepo(thePG, log)
	violationRepo := repos.NewViolationRepo(thePG, log)

	// External clients
	log.Info("Setting up clients...")
	bucketService, err := gcp.NewBucketService(log)
	if err != nil {
		log.Fatal("Could not init BucketService", "error", err)
	}
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("Could not init OpenAI client", "error", err)
	}
	pineconeClient, err := pinecone.New(log, pinecone.Config{
		APIKey: os.Getenv("PINECONE_API_KEY"),
	})
	if err != nil {
		log.Fatal("Could not init Pinecone client", "error", err)
	}
	vectorStore, err := pinecone.NewVectorStore(log, pineconeClient)
	if err != nil {
		log.Fatal("Could not init vector store", "error", err)
	}

	// Ingestion
	textExtractor := extractor.New(log)
	textChunker, err := chunker.New(
		log,
		envutil.GetEnvAsInt("CHUNK_SIZE", chunker.DefaultChunkSize, log),
		envutil.GetEnvAsInt("CHUNK_OVERLAP", chunker.DefaultChunkOverlap, log),
	)
	if err != nil {
		log.Fatal("Could not init chunker", "error", err)
	}

	// Services
	log.Info("Setting up services...")
	embeddingService := services.NewEmbeddingService(log, openaiClient)
	ruleExtractor := services.NewRuleExtractor(log, openaiClient)
	violationDetector := services.NewViolationDetector(log, openaiClient)
	remediationService := services.NewRemediationService(log, openaiClient, violationRepo, ruleRepo, policyChunkRepo)
	documentService := services.NewDocumentService(log, policyRepo, auditRepo, bucketService, vectorStore)
	policyPipeline := services.NewPolicyPipeline(log, policyRepo, policyChunkRepo, bucketService, textExtractor, textChunker, embeddingService, vectorStore)
	auditPipeline := services.NewAuditPipeline(log, auditRepo, ruleRepo, violationRepo, bucketService, textExtractor, textChunker, embeddingService, vectorStore, violationDetector)
	ruleExtraction := services.NewRuleExtractionService(log, policyRepo, policyChunkRepo, ruleRepo, embeddingService, vectorStore, ruleExtractor)
	searchService := services.NewSearchService(log, embeddingService, vectorStore)

	// Background workers
	dispatcher := jobs.NewDispatcher(log)
	dispatcher.Start(context.Background())
	defer dispatcher.Shutdown()

	// Middleware
	authMiddleware, err := middleware.NewAuthMiddleware(log)
	if err != nil {
		log.Fatal("Could not init auth middleware", "error", err)
	}

	// Handlers
	log.Info("Setting up handlers...")
	healthHandler := handlers.NewHealthHandler(postgresService)
	policyHandler := handlers.NewPolicyHandler(log, documentService, policyChunkRepo, policyPipeline, dispatcher)
	auditHandler := handlers.NewAuditHandler(log, documentService, violationRepo, auditPipeline, dispatcher)
	ruleHandler := handlers.NewRuleHandler(log, ruleRepo, policyChunkRepo, documentService, ruleExtraction, dispatcher)
	violationHandler := handlers.NewViolationHandler(log, remediationService)
	searchHandler := handlers.NewSearchHandler(log, searchService)

	// Router
	server := apphttp.NewServer(apphttp.RouterConfig{
		AuthMiddleware:   authMiddleware,
		PolicyHandler:    policyHandler,
		AuditHandler:     auditHandler,
		RuleHandler:      ruleHandler,
		ViolationHandler: violationHandler,
		SearchHandler:    searchHandler,
		HealthHandler:    healthHandler,
	})

	port := envutil.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
