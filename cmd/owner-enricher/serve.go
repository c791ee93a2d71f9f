package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/owner-enricher/pkg/csvio"
	"github.com/Sternrassler/owner-enricher/pkg/server"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		port  string
		input string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control API",
		Long:  "Starts an HTTP API to upload a CSV, start, pause, resume and stop the run, watch progress and export the result.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return serve(ctx, opts, port, input)
		},
	}

	cmd.Flags().StringVar(&port, "port", "8080", "Port to listen on")
	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV file to preload (optional)")

	return cmd
}

func serve(ctx context.Context, opts *options, port, input string) error {
	sess, err := newSession(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		records, err := csvio.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", input, err)
		}
		if err := sess.ctrl.Load(records); err != nil {
			return fmt.Errorf("load records: %w", err)
		}
		sess.logger.Info().Int("total", len(records)).Str("input", input).Msg("Records preloaded")
	}

	cfg := server.DefaultConfig()
	cfg.Addr = ":" + port
	cfg.Redis = sess.redis
	srv, err := server.New(cfg, sess.ctrl)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		// The server cancels its runs on shutdown; record where they stood.
		logProgress(sess, "Shutting down")
		return nil
	})

	return g.Wait()
}
