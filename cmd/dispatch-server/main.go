package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetloop/lastmile-dispatch/internal/api"
	"github.com/fleetloop/lastmile-dispatch/internal/config"
	"github.com/fleetloop/lastmile-dispatch/internal/database"
	"github.com/fleetloop/lastmile-dispatch/internal/metrics"
	"github.com/fleetloop/lastmile-dispatch/pkg/engine"
)

func main() {
	var (
		dbPath        = flag.String("db", "", "Path to SQLite database file (overrides DB_PATH)")
		addr          = flag.String("addr", "", "Listen address (overrides SERVER_HOST/SERVER_PORT)")
		retentionDays = flag.Int("retention-days", 0, "Prune cycle history older than N days at startup (0 disables)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}
	listenAddr := cfg.Server.ServerAddr()
	if *addr != "" {
		listenAddr = *addr
	}

	gin.SetMode(cfg.Server.GinMode)

	// Ensure database directory exists
	dbDir := filepath.Dir(cfg.DB.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	log.Printf("Connecting to database at %s", cfg.DB.Path)
	db, err := database.NewDatabase(cfg.DB.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	if *retentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -*retentionDays)
		if err := repo.PruneBefore(cutoff); err != nil {
			log.Fatalf("Failed to prune cycle history: %v", err)
		}
		log.Printf("Pruned cycle history older than %s", cutoff.Format(time.RFC3339))
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	eng := engine.New(cfg.Engine)

	log.Printf("Starting dispatch API server on %s", listenAddr)
	server := api.NewServer(eng, repo, collector, listenAddr)

	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
