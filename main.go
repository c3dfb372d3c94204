package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakline-data/activity.report/internal/api"
	"github.com/oakline-data/activity.report/internal/config"
	"github.com/oakline-data/activity.report/internal/db"
	"github.com/oakline-data/activity.report/internal/har"
	"github.com/oakline-data/activity.report/internal/timeutil"
	"github.com/oakline-data/activity.report/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "activity.db", "SQLite database file ('' disables persistence)")
	configFile = flag.String("config", "", "Tuning config JSON (defaults used when empty)")
)

func main() {
	flag.Parse()

	log.Printf("activity.report %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	tuning := config.EmptyTuningConfig()
	if *configFile != "" {
		loaded, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		tuning = loaded
		log.Printf("loaded tuning config from %s", *configFile)
	}

	var database *db.DB
	if *dbFile != "" {
		var err error
		database, err = db.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()

		if err := database.MigrateUp(); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		if v, dirty, err := database.MigrateVersion(); err == nil {
			log.Printf("database %s at schema version %d (dirty=%v)", *dbFile, v, dirty)
		}
	} else {
		log.Printf("persistence disabled")
	}

	engine := har.NewEngine(har.ConfigFromTuning(tuning))
	log.Printf("engine session %s", engine.SessionID())

	server := api.NewServer(engine, database, tuning)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go server.RunMaintenance(ctx, timeutil.RealClock{})

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: mux,
	}
	go func() {
		log.Printf("listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}
