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

	"tierd/internal/config"
	"tierd/internal/httpapi"
)

type serveFlags struct {
	addr        string
	swagger     bool
	corsOrigins string
}

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") || os.Getenv("TIERD_ADDR") != "" {
				cfg.Server.Addr = f.addr
			}
			if cmd.Flags().Changed("swagger") {
				cfg.Server.Swagger = f.swagger
			}
			if origins := splitCSV(f.corsOrigins); len(origins) > 0 {
				cfg.Server.CORS.Enabled = true
				cfg.Server.CORS.Origins = origins
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", envOr("TIERD_ADDR", ":8080"), "HTTP listen address (defaults TIERD_ADDR)")
	cmd.Flags().BoolVar(&f.swagger, "swagger", false, "Serve Swagger UI at /swagger/")
	cmd.Flags().StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log, logCloser, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := svc.Start(ctx); err != nil {
		return errors.Join(err, svc.Stop(context.Background()))
	}

	configureHTTP(cfg.Server, cfg.Logging, log)
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("tierd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.Server.ShutdownTimeoutSec))
		defer cancel()
		return errors.Join(srv.Shutdown(sctx), svc.Stop(sctx))
	})
	return g.Wait()
}
