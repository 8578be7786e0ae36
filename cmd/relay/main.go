package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lojasmm/relay/internal/ai"
	"github.com/lojasmm/relay/internal/bot"
	"github.com/lojasmm/relay/internal/config"
	"github.com/lojasmm/relay/internal/line"
	"github.com/lojasmm/relay/internal/logging"
	"github.com/lojasmm/relay/internal/store"
)

const (
	ledgerRetention = 24 * time.Hour
	writeMargin     = 10 * time.Second
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Relay LINE messages to an AI provider and reply with its answer",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file (default: $CONFIG_FILE)")

	root.AddCommand(serveCmd())
	root.AddCommand(signCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE:  runServe,
	}
}

func signCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Print the X-Line-Signature for a payload (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("LINE_CHANNEL_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("no secret: pass --secret or set LINE_CHANNEL_SECRET")
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			body, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line.Sign(secret, body))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "channel secret (default: $LINE_CHANNEL_SECRET)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := store.NewBoltLedger(filepath.Join(cfg.DataDir, "relay.db"))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer ledger.Close()

	asker, err := ai.New(ctx, cfg.AI, logger.Named("ai"))
	if err != nil {
		return fmt.Errorf("ai: %w", err)
	}

	lineClient := line.NewClient(cfg.LineAPIBase, cfg.LineChannelAccessToken)
	dispatcher := bot.NewDispatcher(asker, lineClient, ledger, logger.Named("bot"))

	// Periodic pruning keeps the ledger to the redelivery window.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := ledger.Prune(ledgerRetention); err != nil {
					logger.Warn("relay: ledger prune failed", zap.Error(err))
				} else if n > 0 {
					logger.Debug("relay: ledger pruned", zap.Int("removed", n))
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg.LineChannelSecret, dispatcher.HandleBatch, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout(cfg.AI.Timeout),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay: listening", zap.String("addr", srv.Addr), zap.String("provider", cfg.AI.Provider))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("relay: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("relay: stopped")
	return nil
}

// writeTimeout leaves room for the slowest event: one AI call, then one reply.
func writeTimeout(aiTimeout time.Duration) time.Duration {
	return aiTimeout + line.ReplyTimeout + writeMargin
}

func newRouter(channelSecret string, onBatch line.BatchHandler, logger *zap.Logger) http.Handler {
	webhookHandler := line.NewWebhookHandler(onBatch, logger.Named("webhook"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.With(line.SignatureMiddleware(channelSecret, logger.Named("webhook"))).
		Post("/webhook", webhookHandler.HandleIncoming)

	return r
}
