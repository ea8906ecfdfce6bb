package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/internal/api"
	"github.com/kmsv-2726/federated-socmed/internal/api/handler"
	"github.com/kmsv-2726/federated-socmed/pkg/auth"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
	"github.com/kmsv-2726/federated-socmed/pkg/monitor"
	"github.com/kmsv-2726/federated-socmed/pkg/tracing"
)

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the federation delivery workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if port > 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			flush, err := monitor.Init(cfg.Sentry, version)
			if err != nil {
				return fmt.Errorf("init sentry: %w", err)
			}
			defer flush()

			shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Federation.ServerName)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.close()

			var stopReplicator func(context.Context) error
			if a.replicator != nil {
				stopReplicator = a.replicator.Start(4)
			}
			stopWorker := a.worker.Start()

			gin.SetMode(cfg.Server.Mode)
			h := handler.NewHandler(a.users, a.relations, a.channels, a.postSvc, a.moderation, a.inbox, a.interactions)
			router, err := api.NewRouter(cfg, h, auth.NewManager(cfg.JWT), a.metrics)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening",
					zap.String("addr", srv.Addr),
					zap.String("server_name", cfg.Federation.ServerName))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case err := <-errCh:
				if err != nil {
					logger.Error("http server failed", zap.Error(err))
				}
			}

			// 先停入口，再停后台 worker；未完成的投递靠租约过期后由下次启动接手
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			if err := stopWorker(sctx); err != nil {
				logger.Warn("delivery worker shutdown", zap.Error(err))
			}
			if stopReplicator != nil {
				if err := stopReplicator(sctx); err != nil {
					logger.Warn("index replicator shutdown", zap.Error(err))
				}
			}
			if err := shutdownTracing(sctx); err != nil {
				logger.Warn("tracing shutdown", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}
