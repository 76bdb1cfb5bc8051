package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/memstore"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/postgres"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/config"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
	"github.com/phamhung075/dhafnck-mcp-sub000/server/mcptools"
)

var version = "dev"

func main() {
	cmd := createRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dhafnck-mcp",
		Short: "Task orchestration and hierarchical context server over MCP",
		Long: `dhafnck-mcp exposes task, subtask, project, branch, agent and
hierarchical context management as MCP tools, over stdio or SSE.`,
		RunE: runServer,
	}
	root.PersistentFlags().String("config", "", "Path to the YAML config file")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	root.PersistentFlags().Bool("log-source", false, "Include source locations in logs")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("dhafnck-mcp version %s\n", version)
		},
	})
	return root
}

func runServer(cmd *cobra.Command, _ []string) error {
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(logLevel, logJSON, logSource)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	repos, cleanup, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	contexts := buildContextService(cfg, repos)
	if err := contexts.BootstrapGlobal(ctx); err != nil {
		return fmt.Errorf("bootstrapping global context: %w", err)
	}

	srv := mcptools.NewServer(repos, contexts, cfg)
	log.Info("starting server",
		"transport", cfg.Server.Transport,
		"driver", cfg.Database.Driver,
		"version", version,
	)
	switch cfg.Server.Transport {
	case "sse":
		return srv.ServeSSE(ctx)
	default:
		return srv.ServeStdio(ctx)
	}
}

func buildProvider(ctx context.Context, cfg *config.Config) (repo.Provider, func(), error) {
	if cfg.Database.Driver == "memory" {
		return memstore.NewStore(nil), func() {}, nil
	}
	db, err := postgres.NewDB(ctx, &postgres.Config{
		ConnString: cfg.Database.ConnString,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		DBName:     cfg.Database.Name,
		SSLMode:    cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close(ctx)
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	cleanup := func() { db.Close(context.Background()) }
	return postgres.NewProvider(db), cleanup, nil
}

func buildContextService(cfg *config.Config, repos repo.Provider) *hierctx.Service {
	var cache *hierctx.InheritanceCache
	if cfg.Performance.Cache.Enabled {
		cache = hierctx.NewInheritanceCache(
			cfg.Performance.Cache.MaxEntries,
			time.Duration(cfg.Performance.Cache.TTLSeconds)*time.Second,
		)
	}
	return hierctx.NewService(
		repos.ContextRepo(),
		repos.DelegationRepo(),
		repo.NewBranchLookup(repos),
		repo.NewTaskLookup(repos),
		hierctx.Options{
			AutoCreateParents: cfg.Context.AutoCreateParents,
			Cache:             cache,
		},
		nil,
	)
}
