package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"smartrecipe/internal/api"
	"smartrecipe/internal/config"
	"smartrecipe/internal/logging"
	"smartrecipe/internal/platform/spoonacular"
	"smartrecipe/internal/recipe"
	"smartrecipe/internal/session"
)

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:   "smartrecipe",
		Short: "Recipe aggregation API backed by Spoonacular",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfgPath)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is $SMARTRECIPE_CONFIG or ./config.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfgPath)
		},
	})
	return root
}

func serve(ctx context.Context, cfgPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	gin.SetMode(gin.ReleaseMode)

	client := spoonacular.NewClient(cfg.Spoonacular.APIKey,
		spoonacular.WithBaseURL(cfg.Spoonacular.BaseURL),
		spoonacular.WithTimeout(cfg.Spoonacular.Timeout),
	)
	service := recipe.NewService(client, recipe.WithDetailConcurrency(cfg.Spoonacular.DetailConcurrency))

	store, err := session.New(ctx, cfg.Session)
	if err != nil {
		return fmt.Errorf("error creating session store: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(service, store, cfg.Server.RequestTimeout)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(handler, cfg.Server, cfg.Session),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Str("session_store", cfg.Session.Store).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
