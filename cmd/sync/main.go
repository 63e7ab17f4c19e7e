package main

// Run one sync pass over the pending input rows:
//   go run ./cmd/sync
//
// With -serve the ops server keeps running after the pass so metrics and
// job status stay inspectable.

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"partsync-backend/internal/bootstrap"
	"partsync-backend/internal/shared/config"
	"partsync-backend/internal/shared/server"
	"partsync-backend/internal/shared/telemetry"
)

func main() {
	serve := flag.Bool("serve", false, "keep the ops server running after the sync pass")
	flag.Parse()

	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	if app.Pipeline == nil {
		log.Fatal("REMOTE_BASE_URL, REMOTE_USERNAME and REMOTE_PASSWORD are required to run a sync pass")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := server.Addr(cfg.OpsPort)
	srv := &http.Server{Addr: addr, Handler: app.Router}
	go func() {
		log.Printf("ops server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ops server: %v", err)
		}
	}()

	sum, err := app.Pipeline.Run(ctx, app.RunConfig())
	if err != nil {
		telemetry.Error("sync.aborted", map[string]any{
			"job_id": sum.JobID,
			"error":  err.Error(),
		})
		shutdown(srv)
		os.Exit(1)
	}

	log.Printf("sync complete job=%s rows=%d created=%d patched=%d conflicts=%d failed=%d",
		sum.JobID, sum.TotalRows, sum.Created, sum.Patched, sum.ConflictCount, len(sum.Failed))

	if *serve {
		<-ctx.Done()
	}
	shutdown(srv)
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
