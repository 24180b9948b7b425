package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orgdir.org/internal/access"
	"orgdir.org/internal/directory"
	"orgdir.org/internal/httpapi"
	"orgdir.org/internal/obs"
	"orgdir.org/internal/scope"
	"orgdir.org/internal/store/memory"
	"orgdir.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Postgres when a DSN is configured, in-memory otherwise. The memory
	// store keeps local runs and demos free of external services.
	var (
		store directory.Store
		db    *sql.DB
	)
	if dsn := os.Getenv("ORGDIR_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		log.Print("ORGDIR_PG_DSN not set, using in-memory store")
		store = memory.New()
	}

	dir, err := directory.NewService(store)
	if err != nil {
		log.Fatalf("directory service: %v", err)
	}
	resolver, err := scope.NewResolver(store)
	if err != nil {
		log.Fatalf("scope resolver: %v", err)
	}
	engine, err := access.NewEngine(store, resolver)
	if err != nil {
		log.Fatalf("access engine: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, dir, engine)

	addr := os.Getenv("ORGDIR_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting orgdir-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
