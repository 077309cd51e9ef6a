package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/henjicc/henji-server/internal/app"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.address)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the generation scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := app.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Address = addr
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	log := application.Dependencies().ZapLogger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		application.Stop()
		return err
	}
	application.Watch(loader)

	srv := application.Server()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		// SSE streams end when their request contexts are cancelled by Shutdown.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	application.Stop()
	log.Info("Server exited")
	return err
}
