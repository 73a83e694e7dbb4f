package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/flowerdesk/internal/agent"
	"github.com/kalambet/flowerdesk/internal/analysis"
	"github.com/kalambet/flowerdesk/internal/api"
	"github.com/kalambet/flowerdesk/internal/chatbot"
	"github.com/kalambet/flowerdesk/internal/config"
	"github.com/kalambet/flowerdesk/internal/engine"
	"github.com/kalambet/flowerdesk/internal/inventory"
	"github.com/kalambet/flowerdesk/internal/kol"
	"github.com/kalambet/flowerdesk/internal/logging"
	"github.com/kalambet/flowerdesk/internal/marketing"
	"github.com/kalambet/flowerdesk/internal/prompts"
	"github.com/kalambet/flowerdesk/internal/retrieval"
	"github.com/kalambet/flowerdesk/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Start the flowerdesk server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running flowerdesk server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show flowerdesk system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "flowerdesk.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// services is everything the HTTP and MCP surfaces are built from.
type services struct {
	deps api.Deps
	bot  *chatbot.Bot
}

// buildServices wires the model backend and the store into the domain
// services.
func buildServices(cfg config.Config, eng engine.Engine, store *storage.Store, logger *slog.Logger) (*services, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	catalog, err := prompts.Load()
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	gen := engine.NewGenerator(eng, cfg.LLM.Model, float32(cfg.LLM.Temperature))
	embedder := retrieval.NewEmbedder(eng, cfg.LLM.EmbedModel)

	// Each analysis run gets a fresh in-memory index; documents persist.
	newIndex := func() agent.SimilarityIndex {
		return retrieval.NewIndex(embedder, retrieval.NewMemoryStore(), "run")
	}
	tools := analysis.New(gen, catalog, logger.With("component", "analysis"))
	executor := agent.New(tools, gen, catalog, newIndex, agent.Config{
		Location:  cfg.Pipeline.Location,
		Timeframe: cfg.Pipeline.Timeframe,
		ContextK:  cfg.Pipeline.ContextK,
	}, logger.With("component", "agent"))

	docStore := retrieval.NewSQLiteStore(store.DB())
	bot := chatbot.New(gen, retrieval.NewIndex(embedder, docStore, "docs"), catalog, logger.With("component", "chatbot"))

	finder := kol.New(gen, catalog, kol.Config{
		Cookie:   cfg.KOL.Cookie,
		Interval: time.Duration(cfg.KOL.IntervalSeconds) * time.Second,
	}, logger.With("component", "kol"))

	return &services{
		deps: api.Deps{
			Inventory: inventory.New(executor, gen, catalog, store, logger.With("component", "inventory")),
			Marketing: marketing.New(gen, catalog, logger.With("component", "marketing")),
			Chat:      bot,
			KOL:       finder,
			Records:   store,
			APIKey:    cfg.Server.APIKey,
			Logger:    logger.With("component", "api"),
		},
		bot: bot,
	}, nil
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "flowerdesk version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.RequireLLM(cfg); err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Log.Level, cfg.Log.Dir)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("flowerdesk is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("flowerdesk is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.Detect(engine.DetectConfig{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		RPM:      cfg.LLM.RPM,
		Retries:  cfg.LLM.Retries,
		Logger:   logger.With("component", "engine"),
	})
	if err != nil {
		return fmt.Errorf("detecting inference engine: %w", err)
	}
	if err := engine.EnsureReady(ctx, eng, []string{cfg.LLM.Model, cfg.LLM.EmbedModel}, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	svc, err := buildServices(cfg, eng, store, logger)
	if err != nil {
		return err
	}

	if cfg.Chat.DocsDir != "" {
		n, err := svc.bot.LoadDir(ctx, cfg.Chat.DocsDir)
		if err != nil {
			logger.Warn("loading knowledge base failed", "dir", cfg.Chat.DocsDir, "error", err)
		} else {
			logger.Info("knowledge base loaded", "dir", cfg.Chat.DocsDir, "chunks", n)
		}
	}

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(svc.deps, version))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(svc.deps),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("flowerdesk listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("flowerdesk is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop flowerdesk (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to flowerdesk (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient = &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("LLM provider", "%s", cfg.LLM.Provider)
	printStatus("Model", "%s", cfg.LLM.Model)
	printStatus("Embed model", "%s", cfg.LLM.EmbedModel)

	if running {
		if resp, err := client.get(ctx, "/api/records?limit=100"); err == nil {
			var recs []json.RawMessage
			if decodeJSON(resp, &recs) == nil {
				printStatus("Records", "%s", countLabel(len(recs), 100))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Docs dir", "%s", cfg.Chat.DocsDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
