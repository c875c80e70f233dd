package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/a9lim/shannon/internal/config"
	"github.com/a9lim/shannon/internal/convostore"
	"github.com/a9lim/shannon/internal/memory"
	"github.com/a9lim/shannon/internal/scheduler"
)

// migrateCmd applies pending schema migrations to every store ahead of a
// deploy, without starting the assistant. Each store already applies its
// own migrations on Open (internal/storage.Migrate), so this just forces
// that Open/Close cycle up front for the conversation, memory and
// scheduler databases. The plan database is not opened here; it is
// migrated when serve opens the plan engine.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to every data store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func runMigrate() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	convo, err := convostore.Open(filepath.Join(cfg.DataDir, "convo.db"), convostore.Options{})
	if err != nil {
		return fmt.Errorf("migrate conversation store: %w", err)
	}
	convo.Close()
	fmt.Println("conversation store: up to date")

	memStore, err := memory.Open(filepath.Join(cfg.DataDir, "memory.db"))
	if err != nil {
		return fmt.Errorf("migrate memory store: %w", err)
	}
	memStore.Close()
	fmt.Println("memory store: up to date")

	schedStore, err := scheduler.OpenStore(filepath.Join(cfg.DataDir, "scheduler.db"))
	if err != nil {
		return fmt.Errorf("migrate scheduler store: %w", err)
	}
	schedStore.Close()
	fmt.Println("scheduler store: up to date")

	fmt.Println("all stores migrated")
	return nil
}
