// Command filer runs the Document Filing Pipeline's orchestrator: the
// single-process scheduler that drives documents and files through OCR,
// classification, summarization, scoring, and filing (spec §4.G).
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/pkg/config"
	"github.com/codeready-toolchain/docfiler/pkg/database"
	"github.com/codeready-toolchain/docfiler/pkg/flow"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/llmclient"
	"github.com/codeready-toolchain/docfiler/pkg/ocr"
	"github.com/codeready-toolchain/docfiler/pkg/queue"
	"github.com/codeready-toolchain/docfiler/pkg/services"
	"github.com/codeready-toolchain/docfiler/pkg/stages"
	"github.com/codeready-toolchain/docfiler/pkg/typelock"
	"github.com/codeready-toolchain/docfiler/pkg/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:     "filer",
		Short:   "Document Filing Pipeline orchestrator",
		Version: version.Full(),
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	root.SetVersionTemplate("{{.Version}}\n")

	root.AddCommand(newServeCmd(&configDir))
	root.AddCommand(newRunOnceCmd(&configDir))
	root.AddCommand(newProcessOneCmd(&configDir))
	root.AddCommand(newVersionCmd())

	return root
}

// newVersionCmd prints the same build identifier the --version flag
// reports, for scripts that prefer a subcommand over a flag.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}

// newServeCmd runs the orchestrator continuously until SIGINT/SIGTERM.
func newServeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator continuously",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd.Context(), *configDir)
			if err != nil {
				return err
			}
			defer app.client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.orchestrator.Start(ctx); err != nil {
				return fmt.Errorf("start orchestrator: %w", err)
			}

			<-ctx.Done()
			slog.Info("shutdown signal received")
			app.orchestrator.Stop()
			return nil
		},
	}
}

// newRunOnceCmd drains the currently-launchable backlog once and exits.
func newRunOnceCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Launch every currently-launchable document/file once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd.Context(), *configDir)
			if err != nil {
				return err
			}
			defer app.client.Close()

			if err := app.orchestrator.RunOnce(cmd.Context()); err != nil {
				return fmt.Errorf("run once: %w", err)
			}
			slog.Info("run-once complete")
			return nil
		},
	}
}

// newProcessOneCmd drives a single document through Document Flow
// synchronously, for operator debugging and manual reprocessing.
func newProcessOneCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "process-one <document-id>",
		Short: "Drive a single document through Document Flow and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd.Context(), *configDir)
			if err != nil {
				return err
			}
			defer app.client.Close()

			documentID := args[0]
			if err := flow.RunDocument(cmd.Context(), app.deps, documentID); err != nil {
				return fmt.Errorf("process document %s: %w", documentID, err)
			}

			doc, err := app.deps.Documents.GetByID(cmd.Context(), documentID)
			if err != nil {
				return fmt.Errorf("reload document %s: %w", documentID, err)
			}
			slog.Info("process-one complete", "document_id", documentID, "status", doc.Status)
			return nil
		},
	}
}

// app bundles every wired collaborator the three commands share.
type app struct {
	client       *ent.Client
	deps         stages.Deps
	orchestrator *queue.Orchestrator
}

// bootstrap loads .env, connects to the State Store, and wires every
// service, external-collaborator stub, and the Concurrency Gate/Per-Type
// Serializer into a Deps and Orchestrator.
func bootstrap(ctx context.Context, configDir string) (*app, error) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment", "path", envPath)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}

	client, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	slog.Info("connected to database")

	gateCfg := config.DefaultGateConfig()
	g, err := gate.New(map[string]int{
		gate.OCR:     gateCfg.OCRPermits,
		gate.LLM:     gateCfg.LLMPermits,
		gate.FileGen: gateCfg.FileGenPermits,
	})
	if err != nil {
		return nil, fmt.Errorf("build concurrency gate: %w", err)
	}

	typeLockCfg := config.DefaultTypeLockConfig()
	typeLocks := typelock.New(client.DB(), typeLockCfg.PollInterval, typeLockCfg.Timeout)

	promptCfg := stages.DefaultPromptConfig()
	promptCfg.KnownDocumentTypes = knownDocumentTypesFromEnv()
	if v := os.Getenv("POPULAR_TAG_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			promptCfg.PopularTagLimit = n
		}
	}
	if v := os.Getenv("MIN_DOCUMENTS_FOR_SCORING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			promptCfg.MinDocumentsForScoring = n
		}
	}

	deps := stages.NewDeps(
		services.NewDocumentService(client.Client),
		services.NewFileService(client.Client),
		services.NewTagService(client.Client),
		services.NewSeriesService(client.Client),
		services.NewPromptService(client.Client),
		llmclient.NewStubClient(nil),
		ocr.NewStubClient("", 0),
		g,
		typeLocks,
		promptCfg,
	)

	orchCfg := config.DefaultOrchestratorConfig()
	if err := orchCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	orchestrator := queue.NewOrchestrator(client.Client, deps, orchCfg)

	return &app{client: client.Client, deps: deps, orchestrator: orchestrator}, nil
}

func knownDocumentTypesFromEnv() []string {
	raw := os.Getenv("KNOWN_DOCUMENT_TYPES")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			types = append(types, p)
		}
	}
	return types
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
