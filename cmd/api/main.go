package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bofu/api/internal/app"
	"bofu/api/internal/authpw"
	"bofu/api/internal/config"
	"bofu/api/internal/docstore"
	"bofu/api/internal/export"
	"bofu/api/internal/gitrepo"
	"bofu/api/internal/product"
	"bofu/api/internal/search"
	"bofu/api/internal/session"
	"bofu/api/internal/store"
	"bofu/api/internal/viewstate"
	"bofu/api/internal/webhook"
)

// exportStore adapts the Postgres store to the export service's view of a
// research result.
type exportStore struct {
	store *store.PostgresStore
}

func (e *exportStore) GetResearch(ctx context.Context, researchID, userID string) (export.ResearchInfo, error) {
	row, err := e.store.GetResearchResult(ctx, researchID, userID)
	if err != nil {
		return export.ResearchInfo{}, err
	}
	var records []product.Analysis
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &records); err != nil {
			return export.ResearchInfo{}, fmt.Errorf("decode records for %s: %w", researchID, err)
		}
	}
	author := ""
	if user, err := e.store.GetUserByID(ctx, row.UserID); err == nil {
		author = user.DisplayName
	}
	return export.ResearchInfo{
		ID:        row.ID,
		Title:     row.Title,
		Author:    author,
		Records:   records,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

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
	gitService := gitrepo.New(cfg.ReposDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	sessionStore, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer sessionStore.Close()

	snapshotStore, err := viewstate.NewStore(cfg.RedisURL, cfg.TabStateTTL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer snapshotStore.Close()

	var docs *docstore.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		docs, err = docstore.New(ctx, docstore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
	} else {
		log.Printf("object storage not configured, document uploads disabled")
	}

	hooks := webhook.NewClient(webhook.Config{
		AnalysisURL:    cfg.AnalysisWebhookURL,
		CompetitorsURL: cfg.CompetitorsWebhookURL,
		AnalyzeURL:     cfg.AnalyzeWebhookURL,
		Timeout:        cfg.WebhookTimeout,
	})

	deps := app.Deps{
		Store:    dataStore,
		Sessions: sessionStore,
		Creds:    authpw.NewService(dataStore),
		Hooks:    hooks,
		Git:      gitService,
		Search:   searchService,
		Export:   export.NewService(&exportStore{store: dataStore}),
		Snaps:    snapshotStore,
	}
	if docs != nil {
		deps.Docs = docs
	}
	service := app.New(cfg, deps)

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
		log.Printf("BOFU research API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
