package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"xdao.co/gridstore/api"
)

const shutdownGrace = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var listen string
	var submit bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the marketplace HTTP API",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Server.Listen = listen
			}
			if cmd.Flags().Changed("submit") {
				a.cfg.Server.Submit = submit
			}
			ctx, stop := signal.NotifyContext(a.context(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lis, err := net.Listen("tcp", a.cfg.Server.Listen)
			if err != nil {
				return err
			}
			return a.serve(ctx, lis)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "listen address")
	cmd.Flags().BoolVar(&submit, "submit", false, "accept presigned apply transactions and broadcast them")
	return cmd
}

// serve runs the API on lis until ctx ends, then drains in-flight requests.
func (a *app) serve(ctx context.Context, lis net.Listener) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	opts := api.Options{
		Logger:  a.log,
		Network: a.net,
		Timeout: a.cfg.Server.RequestTimeout,
	}
	if a.cfg.Server.Submit {
		opts.Store = a.store
	}
	srv := &http.Server{
		Handler:           api.NewRouter(svc, opts),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("server starting",
			zap.String("addr", lis.Addr().String()),
			zap.String("network", a.net.Name),
			zap.Bool("submit", opts.Store != nil),
			zap.Bool("mirror", a.cfg.Mirror.Enabled()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	a.log.Info("server stopped")
	return err
}
