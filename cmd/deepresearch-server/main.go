package main

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"deepresearch/internal/config"
	"deepresearch/internal/llm"
	"deepresearch/internal/logging"
	"deepresearch/internal/observability"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/search"
	serverapp "deepresearch/internal/server/app"
	serverhttp "deepresearch/internal/server/http"
	"deepresearch/internal/session"
	"deepresearch/internal/session/filestore"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "deepresearch-server",
		Short: "AI deep-research workflow server",
		Long:  "Runs the research session API: topic clarification, report planning, concurrent search execution, and report synthesis, with live event streaming.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("deepresearch-server %s\n", version)
		},
	})

	return rootCmd
}

func run(cfg *config.Config) error {
	logger := logging.NewComponentLogger("Main")
	logger.Info("Starting deepresearch server...")
	logger.Info("LLM: provider=%s model=%s", cfg.LLM.Provider, cfg.LLM.Model)
	logger.Info("Search: provider=%s max_results=%d", cfg.Search.Provider, cfg.Search.MaxResults)
	logger.Info("Sessions: storage=%s ttl=%s parallelism=%d", cfg.Session.Storage, cfg.Session.TTL, cfg.Session.Parallelism)

	store, err := buildSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	llmClient := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if rpm := cfg.LLM.UserRequestsPerMinute; rpm > 0 {
		llmClient = llm.WrapWithUserRateLimit(llmClient, rate.Limit(float64(rpm)/60.0), cfg.LLM.UserBurst)
	}

	searchProvider := search.NewTavilyProvider(search.Config{
		APIKey:  cfg.Search.APIKey,
		BaseURL: cfg.Search.BaseURL,
	})

	metrics := observability.DefaultMetrics()
	broadcaster := serverapp.NewStreamBroadcaster(metrics)
	sessions := serverapp.NewSessionService(store, broadcaster, cfg.Session.TTL)

	opts := []serverapp.ResearchServiceOption{
		serverapp.WithParallelism(cfg.Session.Parallelism),
		serverapp.WithStepTimeout(cfg.Session.StepTimeout),
		serverapp.WithDefaultModel(cfg.LLM.Model),
	}
	if cfg.Search.FetchPages {
		opts = append(opts, serverapp.WithPageFetcher(search.NewPageFetcher()))
	}
	workflow := serverapp.NewResearchService(store, llmClient, searchProvider, broadcaster, metrics, opts...)

	router := serverhttp.NewRouter(sessions, workflow, ratelimit.New(), serverhttp.RouterConfig{
		Debug:              cfg.Server.Debug,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		CreateSessionQuota: serverhttp.Quota{Limit: cfg.Limits.CreateSessionPerMinute, Window: time.Minute},
		WorkflowQuota:      serverhttp.Quota{Limit: cfg.Limits.WorkflowPerMinute, Window: time.Minute},
		StreamQuota:        serverhttp.Quota{Limit: cfg.Limits.StreamPerMinute, Window: time.Minute},
	})

	srv := &nethttp.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// No write timeout: SSE connections are long-lived.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background expiry sweep.
	go func() {
		interval := cfg.Session.SweepInterval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := sessions.SweepExpired(ctx); err != nil {
					logger.Warn("Session sweep failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func buildSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Storage {
	case "file":
		return filestore.New(cfg.Session.Dir)
	default:
		return session.NewMemoryStore(), nil
	}
}
