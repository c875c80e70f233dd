package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/a9lim/shannon/internal/auth"
	"github.com/a9lim/shannon/internal/bus"
	"github.com/a9lim/shannon/internal/commands"
	"github.com/a9lim/shannon/internal/config"
	"github.com/a9lim/shannon/internal/convostore"
	"github.com/a9lim/shannon/internal/executor"
	"github.com/a9lim/shannon/internal/llmprovider"
	"github.com/a9lim/shannon/internal/logging"
	"github.com/a9lim/shannon/internal/memory"
	"github.com/a9lim/shannon/internal/pause"
	"github.com/a9lim/shannon/internal/pipeline"
	"github.com/a9lim/shannon/internal/planner"
	"github.com/a9lim/shannon/internal/scheduler"
	"github.com/a9lim/shannon/internal/toolkit"
	"github.com/a9lim/shannon/internal/transport/discord"
	signaltransport "github.com/a9lim/shannon/internal/transport/signal"
	"github.com/a9lim/shannon/internal/webhook"

	"log/slog"
)

func serveCmd() *cobra.Command {
	var dryRun bool
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant: transports, scheduler, webhooks, and the reasoning loop",
		Run: func(cmd *cobra.Command, args []string) {
			runServeWithDryRun(dryRun)
		},
	}
	c.Flags().BoolVar(&dryRun, "dry-run", false, "echo what would be processed instead of calling the LLM")
	return c
}

func runServe() {
	runServeWithDryRun(false)
}

func runServeWithDryRun(dryRun bool) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "shannon: load config: %s\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	slog.SetDefault(logging.New(cfg.LogLevel))

	llm := buildProvider(cfg.LLM)

	convo, err := convostore.Open(dataPath(cfg, "convo.db"), convostore.Options{
		RetrieveLimit: 50,
		TokenBudget:   cfg.LLM.MaxContextTokens,
		Counter:       llm.CountTokens,
		Summarize:     summarizeWithProvider(llm),
	})
	if err != nil {
		slog.Error("open conversation store", "err", err)
		os.Exit(1)
	}
	defer convo.Close()

	memStore, err := memory.Open(dataPath(cfg, "memory.db"))
	if err != nil {
		slog.Error("open memory store", "err", err)
		os.Exit(1)
	}
	defer memStore.Close()

	schedStore, err := scheduler.OpenStore(dataPath(cfg, "scheduler.db"))
	if err != nil {
		slog.Error("open scheduler store", "err", err)
		os.Exit(1)
	}
	defer schedStore.Close()

	b := bus.New(256)

	ledger := auth.NewLedger(auth.Config{
		AdminUsers:         cfg.Auth.AdminUsers,
		OperatorUsers:      cfg.Auth.OperatorUsers,
		TrustedUsers:       cfg.Auth.TrustedUsers,
		DefaultLevel:       auth.ParseLevel(cfg.Auth.DefaultLevel),
		RateLimitPerMinute: cfg.Auth.RateLimitPerMinute,
		SudoTimeoutSeconds: cfg.Auth.SudoTimeoutSeconds,
	})
	gate := pause.New()

	registry := toolkit.NewRegistry()
	registry.Register(toolkit.NewShellTool())
	registry.Register(toolkit.NewMemorySetTool(memStore))
	registry.Register(toolkit.NewMemoryGetTool(memStore))
	registry.Register(toolkit.NewMemoryDeleteTool(memStore))

	planEngine, err := planner.Open(dataPath(cfg, "plans.db"), llm, registry)
	if err != nil {
		slog.Error("open plan engine", "err", err)
		os.Exit(1)
	}
	defer planEngine.Close()
	registry.Register(planner.NewTool(planEngine))

	exec := executor.New(llm, registry)

	heartbeat := time.Duration(cfg.Scheduler.HeartbeatInterval) * time.Second
	sched := scheduler.New(schedStore, b, heartbeat, cfg.Scheduler.HeartbeatFile)

	sendFunc := func(platform, channel, content string) error {
		b.Publish(bus.KindMessageOutgoing, bus.OutgoingMessage{Transport: platform, Channel: channel, Content: content})
		return nil
	}
	dispatcher := commands.New(convo, sched, ledger, memStore, gate, b, sendFunc)

	handler := pipeline.New(pipeline.Config{
		Auth:             ledger,
		Context:          convo,
		Memory:           memStore,
		Executor:         exec,
		Registry:         registry,
		Commands:         dispatcher,
		Gate:             gate,
		Bus:              b,
		DryRun:           dryRun,
		ControlTransport: cfg.Control.Transport,
		ControlChannel:   cfg.Control.Channel,
	})

	// Subscriptions must be registered before bus.Start (§4.13).
	b.Subscribe(bus.KindMessageIncoming, handler.Handle)
	b.Subscribe(bus.KindSchedulerTrigger, handler.HandleSchedulerTrigger)
	b.Subscribe(bus.KindWebhookReceived, handler.HandleWebhookReceived)

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Scheduler.Enabled {
		sched.Start(ctx)
	}

	var discordTransport *discord.Transport
	if cfg.Discord.Token != "" {
		discordTransport, err = discord.New(discord.Config{
			Token:         cfg.Discord.Token,
			GuildIDs:      cfg.Discord.GuildIDs,
			CommandPrefix: cfg.Discord.CommandPrefix,
			ChunkLimit:    cfg.Chunker.DiscordLimit,
		}, b)
		if err != nil {
			slog.Error("construct discord transport", "err", err)
			os.Exit(1)
		}
		if err := discordTransport.Start(ctx); err != nil {
			slog.Error("start discord transport", "err", err)
			os.Exit(1)
		}
	}

	var signalTransport *signaltransport.Transport
	if cfg.Signal.PhoneNumber != "" {
		signalTransport = signaltransport.New(signaltransport.Config{
			PhoneNumber:   cfg.Signal.PhoneNumber,
			Mode:          signaltransport.Mode(cfg.Signal.Mode),
			SignalCLIPath: cfg.Signal.SignalCliPath,
			RESTAPIURL:    cfg.Signal.RestAPIURL,
			DataDir:       cfg.Signal.DataDir,
			ChunkLimit:    cfg.Chunker.SignalLimit,
			TypingDelayMS: cfg.Chunker.TypingDelay,
		}, b)
		if err := signalTransport.Start(ctx); err != nil {
			slog.Error("start signal transport", "err", err)
			os.Exit(1)
		}
	}

	var webhookServer *webhook.Server
	if cfg.Webhooks.Enabled {
		webhookServer = webhook.New(cfg.Webhooks, b)
		if err := webhookServer.Start(); err != nil {
			slog.Error("start webhook server", "err", err)
			os.Exit(1)
		}
	}

	b.Start(ctx)

	stopWatch, err := config.Watch(resolveConfigPath(), func(next *config.Config) {
		slog.Info("config file changed, reload detected", "log_level", next.LogLevel)
	})
	if err != nil {
		slog.Warn("config hot-reload disabled", "err", err)
		stopWatch = func() {}
	}

	slog.Info("shannon started", "data_dir", cfg.DataDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	stopWatch()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if webhookServer != nil {
		if err := webhookServer.Stop(shutdownCtx); err != nil {
			slog.Error("stop webhook server", "err", err)
		}
	}
	if signalTransport != nil {
		if err := signalTransport.Stop(shutdownCtx); err != nil {
			slog.Error("stop signal transport", "err", err)
		}
	}
	if discordTransport != nil {
		if err := discordTransport.Stop(shutdownCtx); err != nil {
			slog.Error("stop discord transport", "err", err)
		}
	}
	if cfg.Scheduler.Enabled {
		sched.Stop()
	}
	b.Stop()
	cancel()
}

func dataPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.DataDir, name)
}

func buildProvider(cfg config.LLMConfig) llmprovider.Provider {
	if cfg.Provider == "local" {
		return llmprovider.NewLocal(llmprovider.LocalConfig{
			Endpoint:    cfg.LocalEndpoint,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
	}
	return llmprovider.NewAnthropic(llmprovider.AnthropicConfig{
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
		RateLimitRPM: cfg.RateLimitRPM,
	})
}

// summarizeWithProvider adapts llm into a convostore.Summarizer, matching
// spec.md §4.3's "summarize the older half into <=500 words" instruction.
// Disabling further summarization within the call itself isn't needed here
// since this closure never re-enters convostore.Get.
func summarizeWithProvider(llm llmprovider.Provider) convostore.Summarizer {
	return func(ctx context.Context, text string) (string, error) {
		resp, err := llm.Complete(ctx, llmprovider.CompletionRequest{
			Messages: []llmprovider.Message{llmprovider.TextMessage(llmprovider.RoleUser, text)},
			System:   "Summarize the following conversation history in 500 words or fewer. Respond with only the summary.",
		})
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}
}
