package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiv248/kolabcore/pkg/brokertransport"
	"github.com/shiv248/kolabcore/pkg/config"
	"github.com/shiv248/kolabcore/pkg/database"
	"github.com/shiv248/kolabcore/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference buffer-sync broker",
	Long: `serve hosts pkg/brokertransport's Hub over WebSocket: the
authoritative owner/epoch/seq ledger editors connect to for cross-process
buffer sync. A database is optional; when configured, documents persist
across restarts and a cleanup sweep drops ones that have gone stale.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Init()
	log := logger.With("serve")

	var db *database.Database
	if cfg.Database.SQLiteURI != "" {
		db, err = database.New(cfg.Database.SQLiteURI)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		log.Info("database: %s", cfg.Database.SQLiteURI)
	} else {
		log.Info("database: disabled, documents are in-memory only")
	}

	hub := brokertransport.NewHub()
	if db != nil {
		hub.SetLoader(func(uri string) (string, uint64, uint64, bool) {
			persisted, err := db.Load(uri)
			if err != nil || persisted == nil {
				return "", 0, 0, false
			}
			return persisted.Text, persisted.Epoch, persisted.Seq, true
		})
	}

	srv := brokertransport.NewServer(hub)
	mux := http.NewServeMux()
	mux.Handle("/broker", srv)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if db != nil {
		go persistLoop(ctx, hub, db, log)
		go cleanupLoop(ctx, db, cfg.Database.ExpiryDays, cfg.Database.CleanupIntervalHours, log)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening on :%s", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if db != nil {
		persistAll(hub, db, log)
	}
	return httpSrv.Shutdown(shutdownCtx)
}

// persistLoop periodically snapshots every tracked document to the
// database, jittered to avoid a thundering herd of writes, mirroring the
// teacher's persister goroutine generalized from one document to the hub's
// whole tracked set.
func persistLoop(ctx context.Context, hub *brokertransport.Hub, db *database.Database, log logger.Component) {
	const interval = 3 * time.Second
	const jitter = 1 * time.Second
	for {
		wait := interval + time.Duration(rand.Int63n(int64(jitter)))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		persistAll(hub, db, log)
	}
}

func persistAll(hub *brokertransport.Hub, db *database.Database, log logger.Component) {
	for uri, snap := range hub.Snapshot() {
		doc := &database.PersistedDocument{
			URI:   uri,
			Text:  snap.Content,
			Epoch: snap.Epoch,
			Seq:   snap.Seq,
		}
		if err := db.Store(doc); err != nil {
			log.Warn("persisting %s: %v", uri, err)
		}
	}
}

func cleanupLoop(ctx context.Context, db *database.Database, expiryDays, intervalHours int, log logger.Component) {
	ticker := time.NewTicker(time.Duration(intervalHours) * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Duration(expiryDays) * 24 * time.Hour).Unix()
			stale, err := db.StaleBefore(cutoff)
			if err != nil {
				log.Warn("listing stale documents: %v", err)
				continue
			}
			for _, uri := range stale {
				if err := db.Delete(uri); err != nil {
					log.Warn("deleting stale document %s: %v", uri, err)
				}
			}
			if len(stale) > 0 {
				log.Info("cleaner removed %d stale documents", len(stale))
			}
		}
	}
}
