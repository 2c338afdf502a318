package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nexus/internal/agent"
	"nexus/internal/background"
	"nexus/internal/browser"
	"nexus/internal/config"
	"nexus/internal/gateway"
	"nexus/internal/logging"
	"nexus/internal/market"
	"nexus/internal/mission"
	"nexus/internal/oracle"
	"nexus/internal/persona"
	"nexus/internal/store"
	"nexus/internal/tools"
	"nexus/internal/tools/deploy"
	"nexus/internal/tools/repo"
	"nexus/internal/tools/shell"
)

const version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Nexus - always-on multi-department agent server",
	Long: `Nexus is an always-on agent server. Operator commands arrive over
WebSocket, are routed to a department persona (CENTRAL, DEV, TRADING,
INFRA), and drive a tool-calling loop against the Gemini API. Tool
outcomes feed a per-department KPI score that shapes each persona's
tone, and a background scanner watches the markets between commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nexus %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "nexus.yaml", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.DebugMode, cfg.Logging.Level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()
	logging.Boot("nexus %s starting", version)

	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	if err := st.SeedReputation(); err != nil {
		return fmt.Errorf("failed to seed reputation: %w", err)
	}

	gemini := oracle.New(oracle.Config{
		APIKey:     cfg.Oracle.APIKey,
		Model:      cfg.Oracle.Model,
		BaseURL:    cfg.Oracle.BaseURL,
		Timeout:    cfg.GetOracleTimeout(),
		MaxRetries: cfg.Oracle.MaxRetries,
	})

	missions := mission.NewManager(st)
	marketClient := market.NewClient(cfg.Market.BaseURL, cfg.Market.DepthLimit)
	session := browser.NewSession(browser.Config{
		Headless:      cfg.Browser.Headless,
		ActionTimeout: cfg.GetBrowserTimeout(),
		WindowWidth:   cfg.Browser.WindowWidth,
		WindowHeight:  cfg.Browser.WindowHeight,
	})
	defer session.Close()

	hub := gateway.NewHub(st)
	tasks := background.NewRunner(marketClient, st, hub, background.Options{
		Coins:            cfg.Market.Coins,
		ScanInterval:     cfg.GetScanInterval(),
		ADXThreshold:     cfg.Market.ADXThreshold,
		StrongConfidence: cfg.Market.StrongSignalConfidence,
	})

	server := gateway.NewServer(hub, gateway.Options{
		Store:    st,
		Router:   persona.NewRouter(gemini),
		Composer: persona.NewComposer(st, missions),
		Oracle:   gemini,
		Scanner:  tasks,
		NewRegistry: func(channel string) *tools.Registry {
			return buildRegistry(cfg, channel, st, missions, marketClient, session)
		},
		LoopConfig: agent.Config{
			MaxTurns:      cfg.Agent.MaxTurns,
			StallRetries:  cfg.Agent.StallRetries,
			StallKeywords: cfg.Agent.StallKeywords,
		},
		KPI:           st,
		HistoryWindow: cfg.Agent.HistoryWindow,
		Name:          cfg.Name,
		Version:       version,
		StaticDir:     cfg.Server.StaticDir,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Boot("listening on %s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logging.Boot("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return ignoreCancel(tasks.RunMarketScan(ctx)) })
	g.Go(func() error { return ignoreCancel(tasks.RunRiskCheck(ctx)) })
	g.Go(func() error { return ignoreCancel(tasks.RunKPIHeartbeat(ctx)) })

	if err := g.Wait(); err != nil {
		return err
	}
	logging.Boot("stopped")
	return nil
}

// buildRegistry assembles the tool set for one channel. Mission and
// browser-login tools bind the channel; everything else is shared.
func buildRegistry(cfg *config.Config, channel string, st *store.Store, missions *mission.Manager, mc *market.Client, session *browser.Session) *tools.Registry {
	reg := tools.NewRegistry()

	reg.MustRegister(mission.Tool(missions, channel))
	reg.MustRegister(shell.ExecuteTool())
	reg.MustRegister(shell.TestRunTool())
	reg.MustRegister(market.SignalTool(mc, cfg.Market.ADXThreshold, firstCoin(cfg.Market.Coins)))

	for _, tool := range browser.Tools(session, st, channel) {
		reg.MustRegister(tool)
	}

	if cfg.GitHub.Token != "" && cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		gh := repo.NewClient(cfg.GitHub.BaseURL, cfg.GitHub.Token, cfg.GitHub.Owner, cfg.GitHub.Repo)
		for _, tool := range repo.Tools(gh) {
			reg.MustRegister(tool)
		}
	}

	if cfg.Render.APIKey != "" {
		reg.MustRegister(deploy.StatusTool(deploy.NewClient(cfg.Render.BaseURL, cfg.Render.APIKey)))
	}

	return reg
}

func firstCoin(coins []string) string {
	if len(coins) == 0 {
		return "BTCUSDT"
	}
	return coins[0]
}

func ignoreCancel(err error) error {
	if err == context.Canceled {
		return nil
	}
	return err
}
