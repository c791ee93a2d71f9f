package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/owner-enricher/pkg/csvio"
	"github.com/Sternrassler/owner-enricher/pkg/engine"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		input            string
		output           string
		progressInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich a CSV file and write the result",
		Long: "Reads businesses from --input, looks up every row that has no owner yet and writes all rows to --output.\n" +
			"Ctrl-C stops the run; rows finished so far are still written. A second Ctrl-C exits immediately.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnrich(cmd.Context(), opts, input, output, progressInterval, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV file to enrich (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Where to write the enriched CSV (- for stdout)")
	cmd.Flags().DurationVar(&progressInterval, "progress-interval", 5*time.Second, "How often to log progress")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runEnrich(ctx context.Context, opts *options, input, output string, progressInterval time.Duration, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	records, err := csvio.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", input, err)
	}

	sess, err := newSession(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.ctrl.Load(records); err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if err := superviseRun(ctx, sigCtx, stopSignals, sess, progressInterval); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if err := writeOutput(output, sess.ctrl, stdout); err != nil {
		return err
	}
	logProgress(sess, "Run complete")
	return nil
}

// superviseRun launches the session and waits for it to end. When interrupt
// is done the run is stopped and disarm is called so that the next signal
// terminates the process. The run is Running before interrupt is watched,
// so an early signal always finds a run to stop.
func superviseRun(ctx, interrupt context.Context, disarm func(), sess *session, progressInterval time.Duration) error {
	// the run gets its own context: an interrupt stops it without aborting
	// lookups already in flight
	runDone, err := sess.ctrl.Launch(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}

	g := new(errgroup.Group)

	g.Go(func() error {
		select {
		case <-interrupt.Done():
			disarm()
			sess.logger.Warn().Msg("Interrupted - stopping run, press Ctrl-C again to exit immediately")
			if err := sess.ctrl.Stop(); err != nil {
				sess.logger.Debug().Err(err).Msg("Run ended before the interrupt was handled")
			}
		case <-runDone:
		}
		return nil
	})

	g.Go(func() error {
		if progressInterval <= 0 {
			return nil
		}
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logProgress(sess, "Progress")
			case <-runDone:
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	<-runDone
	return nil
}

func logProgress(sess *session, msg string) {
	p := sess.ctrl.Progress()
	sess.logger.Info().
		Str("state", string(p.State)).
		Int("completed", p.Completed).
		Int("total", p.Total).
		Int("found", p.Found).
		Float64("percent", p.Percent).
		Msg(msg)
}

func writeOutput(path string, ctrl *engine.Controller, stdout io.Writer) error {
	if path == "-" || path == "" {
		return csvio.Write(stdout, ctrl.Records())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := csvio.Write(f, ctrl.Records()); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
