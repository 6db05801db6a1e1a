package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"propsync/config"
	"propsync/httputil"
	"propsync/ingest"
	"propsync/logging"
	"propsync/provider"
	"propsync/ratelimit"
	"propsync/scheduler"
	"propsync/server"
	"propsync/storage"
)

var (
	syncTarget = flag.String("sync", "", "Run one configured target (or \"all\") once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting propsync...")
	log.Printf("Database: %s", maskConnectionString(cfg.DatabaseURL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	clients := httputil.NewClients(cfg.Provider.ProxyURL)

	client := provider.NewClient(provider.ClientConfig{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Host:    cfg.Provider.Host,
	}, clients.Provider)

	var uploader ingest.Uploader
	if cfg.Media.Bucket != "" {
		mediaStore, err := storage.NewMediaStore(ctx, storage.MediaStoreConfig{
			Bucket:          cfg.Media.Bucket,
			Region:          cfg.Media.Region,
			Endpoint:        cfg.Media.Endpoint,
			AccessKeyID:     cfg.Media.AccessKeyID,
			SecretAccessKey: cfg.Media.SecretAccessKey,
			PublicBaseURL:   cfg.Media.PublicBaseURL,
		})
		if err != nil {
			log.Fatalf("Failed to set up media storage: %v", err)
		}
		uploader = mediaStore
	} else {
		log.Println("Warning: MEDIA_BUCKET not set, rehosted images will not be persisted")
		uploader = ingest.NewNoOpUploader()
	}

	media := ingest.NewMediaStrategist(uploader, clients.Media)
	orch := ingest.NewOrchestrator(store, client, media, cfg.Provider.Source)

	sched := scheduler.New(cfg, orch)

	if *syncTarget != "" {
		if *syncTarget == "all" {
			sched.TriggerAll(ctx)
		} else if err := sched.TriggerTarget(ctx, *syncTarget); err != nil {
			log.Fatalf("One-shot sync: %v", err)
		}
		log.Println("One-shot sync complete")
		return
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	limiter := ratelimit.New(store)
	srv := server.New(orch, client, limiter, store)

	go cleanupRateLimitWindows(ctx, store)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(cfg.AllowedOrigins),
	}

	go func() {
		log.Printf("HTTP API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: HTTP shutdown: %v", err)
	}
	cancel()
	log.Println("Shutdown complete")
}

func cleanupRateLimitWindows(ctx context.Context, store *storage.PostgresStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpiredWindows(ctx)
			if err != nil {
				log.Printf("Warning: rate limit window cleanup: %v", err)
			} else if n > 0 {
				log.Printf("Removed %d expired rate limit windows", n)
			}
		}
	}
}

// maskConnectionString hides the password portion of a database URL for logging.
func maskConnectionString(connStr string) string {
	atIdx := strings.LastIndex(connStr, "@")
	if atIdx == -1 {
		return connStr
	}
	schemeIdx := strings.Index(connStr, "://")
	if schemeIdx == -1 {
		return connStr[atIdx:]
	}
	userInfo := connStr[schemeIdx+3 : atIdx]
	if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
		userInfo = userInfo[:colonIdx] + ":****"
	}
	return connStr[:schemeIdx+3] + userInfo + connStr[atIdx:]
}
