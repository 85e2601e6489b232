package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stemchat/internal/agent"
	"stemchat/internal/auth"
	"stemchat/internal/chat"
	"stemchat/internal/config"
	"stemchat/internal/index"
	"stemchat/internal/llm"
	"stemchat/internal/seed"
	"stemchat/internal/server"
	"stemchat/internal/store"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "stemchat",
		Short:   "stemchat: STEM center group chat with agent routing",
		Long:    "stemchat is a group chat server whose '#' messages are routed to inventory and lesson plan agents backed by a local LLM.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.stemchat/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(agentsCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	return cfg
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

// buildApp assembles the object graph shared by serve and seed.
type app struct {
	cfg    *config.Config
	store  *store.Store
	llm    *llm.Client
	index  *index.Index
	router *agent.Router
}

func buildApp(cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	client := llm.NewClient(llm.Config{
		APIBase:        cfg.LLM.APIBase,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})

	ix := index.New(index.Config{
		Storage:   st.Session(),
		Embedder:  client,
		ChunkSize: cfg.Knowledge.ChunkSize,
		Overlap:   cfg.Knowledge.Overlap,
		Logger:    logger,
	})

	router := agent.NewRouter(client, logger)
	router.Register(agent.NewInventoryAgent(client, logger))
	router.Register(agent.NewLessonPlanAgent(ix, client, client, logger))

	return &app{cfg: cfg, store: st, llm: client, index: ix, router: router}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Server.LogLevel)}))

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.store.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hub := server.NewHub(logger)
			chatSvc := chat.NewService(a.store, a.router, hub, logger)
			tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.ExpireMinutes)

			srv := server.New(cfg.Server, a.store, chatSvc, tokens, a.router, hub, logger)
			return srv.Run(ctx)
		},
	}
}

func seedCmd() *cobra.Command {
	var (
		fixturesFile string
		lessonsDir   string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with sample data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.store.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			seeder := seed.New(a.store, a.index, logger)
			sum, err := seeder.Run(ctx, fixturesFile)
			if err != nil {
				return err
			}
			if lessonsDir != "" {
				n, err := seeder.IndexDir(ctx, lessonsDir)
				if err != nil {
					return err
				}
				sum.Lessons += n
			}
			fmt.Printf("Seeded %d users, %d items, %d suppliers, %d lesson plans\n",
				sum.Users, sum.Items, sum.Suppliers, sum.Lessons)
			return nil
		},
	}
	cmd.Flags().StringVarP(&fixturesFile, "file", "f", "", "YAML fixtures file (default: embedded sample data)")
	cmd.Flags().StringVarP(&lessonsDir, "lessons-dir", "l", "", "directory of .txt/.md lesson plans to index")
	return cmd
}

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List registered agents and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.store.Close()

			out, err := json.MarshalIndent(a.router.AgentInfos(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
