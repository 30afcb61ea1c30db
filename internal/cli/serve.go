package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vistoria/vistoria/internal/config"
	"github.com/vistoria/vistoria/internal/engine"
	"github.com/vistoria/vistoria/internal/notify"
	"github.com/vistoria/vistoria/internal/provider"
	"github.com/vistoria/vistoria/internal/server"
	"github.com/vistoria/vistoria/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Resolve database path
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Create provider client and engine. Without an API key the engine
	// still serves stored pins; it just cannot fetch new ones.
	var client provider.Client
	client, err = provider.NewClient(cfg.Provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: provider not configured (%v), feed generation disabled\n", err)
		client = nil
	} else {
		fmt.Fprintf(os.Stderr, "  provider: gemini (%s)\n", cfg.Provider.Model)
	}

	eng := engine.New(db, client)
	eng.StartRetentionTimer()
	defer eng.Stop()

	// Activity log with simulated social events
	var notices *notify.Feed
	notifyCtx, cancelNotify := context.WithCancel(context.Background())
	defer cancelNotify()
	if cfg.Notify.Enabled {
		notices = notify.NewFeed()
		go notify.Run(notifyCtx, notices, notify.NewSimulator(0), cfg.Notify.Interval)
	}

	srv := server.New(db, eng, notices, VersionString())
	srv.SetPageSize(cfg.Feed.PageSize)
	defer srv.WSHub().Close()
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "vistoria serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
