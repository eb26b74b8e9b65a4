package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ISL270/multi-agent-ai-realtor/internal/api"
	"github.com/ISL270/multi-agent-ai-realtor/internal/hermes"
	"github.com/ISL270/multi-agent-ai-realtor/internal/turn"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when NATS is configured, the chat subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := setupLogging(cfg.LogLevel, os.Stdout)
		logger.Info("realtor starting", "port", cfg.Port, "backend", cfg.Storage.Backend)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		be, closeBackend, err := openBackend(ctx, cfg.Storage, logger)
		if err != nil {
			return err
		}
		defer closeBackend()

		var (
			hc  *hermes.Client
			pub turn.Publisher
		)
		if cfg.NATS.URL != "" {
			hc, err = hermes.NewClient(ctx, cfg.NATS.URL, cfg.NATS.Token, logger)
			if err != nil {
				return err
			}
			defer hc.Close()
			pub = hc
			logger.Info("NATS connected", "url", cfg.NATS.URL)
		} else {
			logger.Warn("nats not configured, running without events")
		}

		svc, err := buildService(cfg, be, nil, pub, logger)
		if err != nil {
			return err
		}

		if hc != nil {
			if err := hc.Serve(hermes.SubjectChatInbound, "realtor", hermes.SubjectChatReply, svc.HandleChat); err != nil {
				return err
			}
		}

		srv := api.NewServer(api.Options{
			Port:         cfg.Port,
			APIToken:     cfg.APIToken,
			CORSAllowAll: cfg.CORS.AllowAll,
		}, svc, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if hc != nil {
				if err := hc.Drain(); err != nil {
					logger.Warn("nats drain failed", "error", err)
				}
			}
			return srv.Shutdown(shutdownCtx)
		})

		logger.Info("realtor ready", "port", cfg.Port)
		err = g.Wait()
		logger.Info("realtor stopped")
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
