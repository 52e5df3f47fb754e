package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"botscript.ai/internal/config"
	"botscript.ai/internal/runner"
)

type validateSummary struct {
	Actors int `json:"actors"`
	Steps  int `json:"steps"`
	Agents int `json:"agents"`
}

func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:           "validate",
		Short:         "Check a config without running it",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, path, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "path to botrun YAML config (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runValidate(opts *RootOptions, path string, out io.Writer) error {
	f := formatter{format: opts.Format, out: out}
	cfg, err := config.Load(path)
	if err != nil {
		return f.fail(WrapExitError(ExitFailure, "invalid config", err))
	}
	sum := validateSummary{Actors: len(cfg.Actors), Agents: len(cfg.World.Agents)}
	for _, a := range cfg.Actors {
		if _, err := runner.Compile(a); err != nil {
			return f.fail(WrapExitError(ExitFailure, "invalid plan", err))
		}
		sum.Steps += len(a.Steps)
	}
	return f.emit("ok", sum, func(w io.Writer) {
		fmt.Fprintf(w, "ok: %d actors, %d steps, %d agents\n", sum.Actors, sum.Steps, sum.Agents)
	})
}
