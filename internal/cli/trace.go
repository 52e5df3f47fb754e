package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	plog "botscript.ai/internal/persistence/log"
	"botscript.ai/internal/persistence/indexdb"
	"botscript.ai/internal/protocol"
)

func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded step traces",
	}
	cmd.AddCommand(newTraceCatCommand(rootOpts))
	cmd.AddCommand(newTraceStepsCommand(rootOpts))
	cmd.AddCommand(newTraceFailuresCommand(rootOpts))
	return cmd
}

func newTraceCatCommand(rootOpts *RootOptions) *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:           "cat <file.jsonl.zst>...",
		Short:         "Decompress and print trace files",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceCat(rootOpts, args, only, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&only, "type", "", "only print lines of this type (STEP, TASK, TICK, AUDIT)")
	return cmd
}

func runTraceCat(opts *RootOptions, files []string, only string, out io.Writer) error {
	for _, path := range files {
		err := plog.ReadFile(path, func(b []byte) error {
			l, err := plog.DecodeLine(b)
			if err != nil {
				return err
			}
			if only != "" && l.Type != only {
				return nil
			}
			if opts.Format == "json" {
				_, err = fmt.Fprintf(out, "%s\n", b)
				return err
			}
			printLine(out, l)
			return nil
		})
		if err != nil {
			return WrapExitError(ExitCommandError, path, err)
		}
	}
	return nil
}

func printLine(w io.Writer, l plog.Line) {
	switch {
	case l.Step != nil:
		printStep(w, *l.Step)
	case l.Task != nil:
		t := l.Task
		fmt.Fprintf(w, "TASK  %-10s %-8s ticks %d-%d resumes=%d %s\n", t.Actor, t.State, t.StartTick, t.EndTick, t.Resumes, t.Error)
	case l.Tick != nil:
		fmt.Fprintf(w, "TICK  %d inputs=%d\n", l.Tick.Tick, len(l.Tick.Actions))
	case l.Audit != nil:
		a := l.Audit
		fmt.Fprintf(w, "AUDIT %d %-10s %-10s ok=%t %s\n", a.Tick, a.Actor, a.Action, a.OK, a.Code)
	}
}

func printStep(w io.Writer, s protocol.StepMsg) {
	res := "ok"
	if !s.OK {
		res = "FAIL " + s.Reason
	}
	fmt.Fprintf(w, "STEP  %-10s %-14s ticks %d-%d %s %s\n", s.Actor, s.Step, s.StartTick, s.EndTick, s.Detail, res)
}

// openIndex opens an existing index; OpenSQLite alone would create one.
func openIndex(path string) (*indexdb.SQLiteIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "open index", err)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open index", err)
	}
	return idx, nil
}

func newTraceStepsCommand(rootOpts *RootOptions) *cobra.Command {
	var db, actor string
	cmd := &cobra.Command{
		Use:           "steps",
		Short:         "List indexed steps",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex(db)
			if err != nil {
				return err
			}
			defer idx.Close()
			steps, err := idx.Steps(cmd.Context(), actor)
			if err != nil {
				return WrapExitError(ExitCommandError, "query steps", err)
			}
			f := formatter{format: rootOpts.Format, out: cmd.OutOrStdout()}
			return f.emit("ok", steps, func(w io.Writer) {
				for _, s := range steps {
					printStep(w, s)
				}
			})
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "SQLite index path (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "only this actor")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

type failureSummary struct {
	Steps      map[string]int `json:"steps"`
	Rejections map[string]int `json:"rejections"`
}

func newTraceFailuresCommand(rootOpts *RootOptions) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:           "failures",
		Short:         "Count failed steps and rejected inputs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex(db)
			if err != nil {
				return err
			}
			defer idx.Close()
			sum, err := failures(cmd.Context(), idx)
			if err != nil {
				return WrapExitError(ExitCommandError, "query failures", err)
			}
			f := formatter{format: rootOpts.Format, out: cmd.OutOrStdout()}
			return f.emit("ok", sum, func(w io.Writer) {
				fmt.Fprintln(w, "failed steps:")
				printCounts(w, sum.Steps)
				fmt.Fprintln(w, "rejected inputs:")
				printCounts(w, sum.Rejections)
			})
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "SQLite index path (required)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func failures(ctx context.Context, idx *indexdb.SQLiteIndex) (failureSummary, error) {
	steps, err := idx.FailureCounts(ctx)
	if err != nil {
		return failureSummary{}, err
	}
	rej, err := idx.Rejections(ctx)
	if err != nil {
		return failureSummary{}, err
	}
	return failureSummary{Steps: steps, Rejections: rej}, nil
}

func printCounts(w io.Writer, m map[string]int) {
	if len(m) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %d\n", k, m[k])
	}
}
