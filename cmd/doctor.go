package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/a9lim/shannon/internal/config"
	"github.com/a9lim/shannon/internal/convostore"
	"github.com/a9lim/shannon/internal/memory"
	"github.com/a9lim/shannon/internal/scheduler"
)

var (
	doctorHeading = lipgloss.NewStyle().Bold(true)
	doctorOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	doctorFail    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	doctorWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and data store health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println(doctorHeading.Render("shannon doctor"))
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  OS:      %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:      %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Printf("  Config:  %s %s\n", cfgPath, doctorWarn.Render("(not found, running on defaults)"))
	} else {
		fmt.Printf("  Config:  %s %s\n", cfgPath, doctorOK.Render("(found)"))
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", doctorFail.Render(err.Error()))
		return
	}

	fmt.Printf("  Data dir: %s\n", cfg.DataDir)
	fmt.Println()

	fmt.Println(doctorHeading.Render("  Stores:"))
	checkConvoStore(cfg)
	checkMemoryStore(cfg)
	checkSchedulerStore(cfg)

	fmt.Println()
	switch cfg.LLM.Provider {
	case "local":
		fmt.Printf("  LLM provider: local (%s)\n", cfg.LLM.LocalEndpoint)
	default:
		fmt.Printf("  LLM provider: anthropic (model %s)", cfg.LLM.Model)
		if cfg.LLM.APIKey == "" {
			fmt.Print(" " + doctorWarn.Render("(NO API KEY SET)"))
		}
		fmt.Println()
	}

	fmt.Println()
	fmt.Println(doctorHeading.Render("  Transports:"))
	fmt.Printf("    Discord:  %s\n", presence(cfg.Discord.Token != ""))
	fmt.Printf("    Signal:   %s\n", presence(cfg.Signal.PhoneNumber != ""))
	fmt.Printf("    Webhooks: %s\n", presence(cfg.Webhooks.Enabled))
}

func checkConvoStore(cfg *config.Config) {
	path := filepath.Join(cfg.DataDir, "convo.db")
	store, err := convostore.Open(path, convostore.Options{})
	if err != nil {
		fmt.Printf("    conversation (%s): %s\n", path, doctorFail.Render("FAILED ("+err.Error()+")"))
		return
	}
	defer store.Close()
	fmt.Printf("    conversation (%s): %s\n", path, doctorOK.Render("OK"))
}

func checkMemoryStore(cfg *config.Config) {
	path := filepath.Join(cfg.DataDir, "memory.db")
	store, err := memory.Open(path)
	if err != nil {
		fmt.Printf("    memory (%s): %s\n", path, doctorFail.Render("FAILED ("+err.Error()+")"))
		return
	}
	defer store.Close()
	fmt.Printf("    memory (%s): %s\n", path, doctorOK.Render("OK"))
}

func checkSchedulerStore(cfg *config.Config) {
	path := filepath.Join(cfg.DataDir, "scheduler.db")
	store, err := scheduler.OpenStore(path)
	if err != nil {
		fmt.Printf("    scheduler (%s): %s\n", path, doctorFail.Render("FAILED ("+err.Error()+")"))
		return
	}
	defer store.Close()
	fmt.Printf("    scheduler (%s): %s\n", path, doctorOK.Render("OK"))
}

func presence(ok bool) string {
	if ok {
		return doctorOK.Render("configured")
	}
	return doctorWarn.Render("not configured")
}
