package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"botscript.ai/internal/config"
	"botscript.ai/internal/logging"
	"botscript.ai/internal/runner"
)

type RunOptions struct {
	*RootOptions
	Config   string
	Ticks    int
	Realtime bool
	TraceDir string
	DB       string
	Listen   string
}

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every configured actor plan",
		Long: `Run builds the world from the config, starts one script per actor and
ticks until every plan ends or the tick limit is reached. Flags override the
matching config keys.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runRun(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to botrun YAML config (required)")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", -1, "tick limit, 0 for none (overrides max_ticks)")
	cmd.Flags().BoolVar(&opts.Realtime, "realtime", false, "pace ticks at tick_rate_hz")
	cmd.Flags().StringVar(&opts.TraceDir, "trace-dir", "", "write the step trace here (overrides trace.dir)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite index path (overrides trace.db)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "observer websocket address (overrides observer.listen)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runRun(ctx context.Context, opts *RunOptions, out io.Writer) error {
	f := formatter{format: opts.Format, out: out}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return f.fail(WrapExitError(ExitCommandError, "load config", err))
	}
	if opts.Ticks >= 0 {
		cfg.MaxTicks = opts.Ticks
	}
	if opts.TraceDir != "" {
		cfg.Trace.Dir = opts.TraceDir
	}
	if opts.DB != "" {
		cfg.Trace.DB = opts.DB
	}
	if opts.Listen != "" {
		cfg.Observer.Listen = opts.Listen
	}

	r, err := runner.New(cfg,
		runner.WithLogger(logging.Component("botrun")),
		runner.WithRealtime(opts.Realtime),
	)
	if err != nil {
		return f.fail(WrapExitError(ExitCommandError, "build runner", err))
	}
	rep, runErr := r.Run(ctx)
	if runErr != nil && !errors.Is(runErr, runner.ErrTickLimit) && !errors.Is(runErr, context.Canceled) {
		return f.fail(WrapExitError(ExitCommandError, "run", runErr))
	}

	status := "ok"
	if !rep.OK() {
		status = "failed"
	}
	if err := f.emit(status, rep, func(w io.Writer) { printReport(w, rep, runErr) }); err != nil {
		return err
	}
	if !rep.OK() {
		return &ExitError{Code: ExitFailure, Message: "one or more plans did not finish"}
	}
	return nil
}

func printReport(w io.Writer, rep runner.Report, runErr error) {
	fmt.Fprintf(w, "ticks: %d  resumptions: %d  steps: %d  failed steps: %d\n", rep.Ticks, rep.Resumptions, rep.Steps, rep.FailedSteps)
	if runErr != nil {
		fmt.Fprintf(w, "stopped early: %v\n", runErr)
	}
	for _, a := range rep.Actors {
		switch {
		case a.FailedStep >= 0:
			fmt.Fprintf(w, "  %-12s %-8s step %d (%s) on pass %d\n", a.Actor, a.State, a.FailedStep, a.FailedName, a.Pass)
		case a.Error != "":
			fmt.Fprintf(w, "  %-12s %-8s %s\n", a.Actor, a.State, a.Error)
		default:
			fmt.Fprintf(w, "  %-12s %-8s %d steps\n", a.Actor, a.State, a.Steps)
		}
	}
	fmt.Fprintf(w, "world: applied %d inputs, rejected %d\n", rep.World.Applied, rep.World.Rejected)
}
