package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inkwell/api/internal/analysis"
	"inkwell/api/internal/app"
	"inkwell/api/internal/authpw"
	"inkwell/api/internal/config"
	"inkwell/api/internal/docrepo"
	"inkwell/api/internal/email"
	"inkwell/api/internal/export"
	"inkwell/api/internal/search"
	"inkwell/api/internal/session"
	"inkwell/api/internal/storage"
	"inkwell/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	historyService := docrepo.New(cfg.ReposDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	var analysisService analysis.Service = analysis.NewClient(analysis.Config{
		BaseURL:          cfg.AnalysisBaseURL,
		APIKey:           cfg.AnalysisAPIKey,
		ProofreadModel:   cfg.ProofreadModel,
		ReadabilityModel: cfg.ReadabilityModel,
		RewriteModel:     cfg.RewriteModel,
		MaxTextBytes:     cfg.MaxAnalyzeBytes,
		Timeout:          cfg.AnalysisTimeout,
	})

	// Refresh sessions live in Redis when available, Postgres otherwise. The
	// same Redis connection caches analysis results.
	var redisStore *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err = session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: redis unavailable, falling back to PostgreSQL sessions: %v", err)
			redisStore = nil
		}
	}
	if redisStore != nil {
		log.Printf("Using Redis for refresh token storage")
		defer redisStore.Close()
		analysisService = analysis.NewCachedClient(analysisService, redisStore.Client(), cfg.AnalysisCacheTTL)
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
	}

	var objects *storage.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		objects, err = storage.New(ctx, storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
	} else {
		log.Printf("MINIO_ENDPOINT not set, sample file uploads disabled")
	}

	emailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !emailService.IsConfigured() {
		log.Printf("SMTP not configured, verification and reset tokens are returned in API responses")
	}

	deps := app.Deps{
		Store:    dataStore,
		AuthPw:   authpw.NewService(dataStore),
		Email:    emailService,
		Analysis: analysisService,
		History:  historyService,
		Search:   searchService,
		Export:   export.NewService(),
	}
	if redisStore != nil {
		deps.Sessions = redisStore
	} else {
		deps.Sessions = dataStore
	}
	if objects != nil {
		deps.Objects = objects
	}

	service := app.New(cfg, deps)
	go service.Run(ctx)

	// Backfill the search indexes from Postgres so Meilisearch starts warm.
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Inkwell API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
