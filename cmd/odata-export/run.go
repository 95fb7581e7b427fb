package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/odata-export/pkg/config"
	"github.com/Sternrassler/odata-export/pkg/logging"
	"github.com/Sternrassler/odata-export/pkg/metrics"
	"github.com/Sternrassler/odata-export/pkg/pipeline"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type runFlags struct {
	schedule    string
	metricsAddr string
}

func newRunCmd(global *globalFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the export once, or on a cron schedule",
		Long: `Run fetches every configured endpoint in dependency order, applies the
transform steps, formats the result and writes the export.

With --schedule the export is repeated on a cron expression
(e.g. "0 6 * * *" or "@hourly") until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			release, err := global.setupLogging(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer release()

			cfg, err := global.load()
			if err != nil {
				log.Error().Err(err).Str("config", global.configFile).Msg("Invalid pipeline file")
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if flags.metricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, flags.metricsAddr); err != nil {
						log.Error().Err(err).Str("addr", flags.metricsAddr).Msg("Metrics server failed")
					}
				}()
			}

			p, err := pipeline.New(cfg, pipeline.Options{})
			if err != nil {
				return err
			}

			if flags.schedule == "" {
				return runOnce(ctx, cmd, p)
			}
			return runScheduled(ctx, cmd, p, flags.schedule)
		},
	}

	cmd.Flags().StringVar(&flags.schedule, "schedule", "", "Cron expression for repeated runs")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func runOnce(ctx context.Context, cmd *cobra.Command, p *pipeline.Pipeline) error {
	res, err := p.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rows, %d columns)\n", res.Path, res.Rows, len(res.Columns))
	return nil
}

// cronLogger routes cron's job-wrapper messages to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func runScheduled(ctx context.Context, cmd *cobra.Command, p *pipeline.Pipeline, spec string) error {
	// A tick that fires while the previous run is still going is skipped.
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{logger: logging.NewLogger("scheduler")}),
	))
	_, err := c.AddFunc(spec, func() {
		// Failures are logged by the pipeline; the schedule keeps going.
		runOnce(ctx, cmd, p)
	})
	if err != nil {
		return &config.ConfigError{Field: "schedule", Reason: fmt.Sprintf("invalid cron expression %q", spec), Err: err}
	}

	c.Start()
	log.Info().Str("schedule", spec).Msg("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Msg("Scheduler stopped")
	return nil
}
