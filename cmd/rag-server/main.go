// Command rag-server answers questions over a document corpus with
// retrieval-augmented generation.
//
// Usage:
//
//	rag-server [serve]          run the HTTP service (default)
//	rag-server ask <question>   build the pipeline in-process and print one answer
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/app"
	"github.com/upb/rag-pipeline/config"
	"github.com/upb/rag-pipeline/internal/observability"
	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/routes"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the result as JSON",
		Long: `Load the corpus, build the index and answer a single question
without starting the HTTP server. Useful for checking a corpus.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
	ask.Flags().Int("top-k", 0, "number of documents to retrieve (0 uses RETRIEVAL_TOP_K)")

	root := &cobra.Command{
		Use:           "rag-server",
		Short:         "Retrieval-augmented question answering service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(serve, ask)
	return root
}

// initLogger builds the process logger from the observability settings
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
}

func setup(ctx context.Context) (*app.Dependencies, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("configuration loaded",
		zap.String("environment", cfg.Environment),
		zap.String("corpus", cfg.Corpus.Source),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("generation", cfg.Generation.Provider))

	return app.NewDependencies(ctx, cfg, logger)
}

func newHTTPServer(deps *app.Dependencies) *http.Server {
	cfg := deps.Config.Server
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())
	logger := deps.Logger

	// The server starts at once so liveness is visible during the build
	srv := newHTTPServer(deps)
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	buildErr := make(chan error, 1)
	go func() { buildErr <- deps.Build(ctx) }()

	var runErr error
	select {
	case runErr = <-serveErr:
	case err := <-buildErr:
		if err != nil {
			runErr = fmt.Errorf("build pipeline: %w", err)
			break
		}
		select {
		case runErr = <-serveErr:
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	return runErr
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	topK, err := cmd.Flags().GetInt("top-k")
	if err != nil {
		return fmt.Errorf("failed to read 'top-k' flag: %w", err)
	}

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	if err := deps.Build(ctx); err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	resp, err := deps.RAG.Answer(ctx, models.Query{Text: strings.Join(args, " "), TopK: topK})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
