package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vistoria/vistoria/internal/config"
	"github.com/vistoria/vistoria/internal/engine"
	"github.com/vistoria/vistoria/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge trashed pins past the 30-day retention window",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
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

	eng := engine.New(db, nil)
	n, err := eng.Sweep()
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	remaining, err := db.CountTrashed()
	if err != nil {
		return fmt.Errorf("count trashed: %w", err)
	}

	fmt.Printf("purged %d pins, %d still in trash\n", n, remaining)
	return nil
}
