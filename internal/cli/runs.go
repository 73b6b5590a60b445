package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kgbridge/internal/convert"
	"github.com/roach88/kgbridge/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	QueryID  string
}

// RunSummary is one run in the runs listing.
type RunSummary struct {
	ID         string         `json:"id"`
	InputPath  string         `json:"input_path"`
	OutputPath string         `json:"output_path,omitempty"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Examples   int            `json:"examples"`
	Converted  int            `json:"converted"`
	Tally      map[string]int `json:"tally,omitempty"`
}

// RunList is the result of listing runs.
type RunList struct {
	Runs []RunSummary `json:"runs"`
}

func (l RunList) String() string {
	if len(l.Runs) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	for i, r := range l.Runs {
		if i > 0 {
			b.WriteByte('\n')
		}
		status := r.Status
		if r.Status == string(store.StatusFinished) {
			status = fmt.Sprintf("%d/%d converted", r.Converted, r.Examples)
		}
		fmt.Fprintf(&b, "%s  %s  %s  %s", r.ID, r.StartedAt.Format(time.RFC3339), r.InputPath, status)
	}
	return b.String()
}

// RunDetail is the result of inspecting one run.
type RunDetail struct {
	RunSummary
	Attempts         int      `json:"attempts"`
	MissingEntities  []string `json:"missing_entities"`
	MissingRelations []string `json:"missing_relations"`
}

func (d RunDetail) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", d.ID)
	fmt.Fprintf(&b, "Input:    %s\n", d.InputPath)
	if d.OutputPath != "" {
		fmt.Fprintf(&b, "Output:   %s\n", d.OutputPath)
	}
	fmt.Fprintf(&b, "Started:  %s\n", d.StartedAt.Format(time.RFC3339))
	switch {
	case d.FinishedAt == nil:
		fmt.Fprintln(&b, "Finished: (open)")
	case d.Status == string(store.StatusAborted):
		fmt.Fprintf(&b, "Aborted:  %s\n", d.FinishedAt.Format(time.RFC3339))
	default:
		fmt.Fprintf(&b, "Finished: %s\n", d.FinishedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Converted %d of %d examples (%d attempts)\n", d.Converted, d.Examples, d.Attempts)
	fmt.Fprintln(&b, "Outcomes:")
	for _, o := range convert.Outcomes {
		fmt.Fprintf(&b, "  %-24s %d\n", o, d.Tally[string(o)])
	}
	fmt.Fprintf(&b, "Missing entities (%d): %s\n", len(d.MissingEntities), strings.Join(d.MissingEntities, " "))
	fmt.Fprintf(&b, "Missing relations (%d): %s", len(d.MissingRelations), strings.Join(d.MissingRelations, " "))
	return b.String()
}

// QueryHistory is every recorded attempt of one raw query.
type QueryHistory struct {
	QueryID  string         `json:"query_id"`
	Attempts []QueryAttempt `json:"attempts"`
}

// QueryAttempt is one attempt in a QueryHistory.
type QueryAttempt struct {
	RunID   string `json:"run_id"`
	Example int    `json:"example"`
	Parse   int    `json:"parse"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

func (h QueryHistory) String() string {
	if len(h.Attempts) == 0 {
		return fmt.Sprintf("No attempts recorded for query %s.", h.QueryID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Query %s (%d attempts)", h.QueryID, len(h.Attempts))
	for _, a := range h.Attempts {
		fmt.Fprintf(&b, "\n%s  examples[%d].parses[%d]  %s", a.RunID, a.Example, a.Parse, a.Outcome)
		if a.Detail != "" {
			fmt.Fprintf(&b, "  %s", a.Detail)
		}
	}
	return b.String()
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Inspect recorded conversion runs",
		Long: `List the conversion runs recorded in a run log, or show one run.

A run log is written by "kgbridge convert --db". Without a run id every run
is listed oldest first. With a run id the run's outcome tally (recounted from
its attempts) and its missing identifiers are shown.

With --query-id every attempt of one raw query is listed across runs, oldest
run first. Query ids appear in "kgbridge convert -v" logs.

A convert that is interrupted or fails after starting its run leaves the run
aborted.

Examples:
  kgbridge runs --db runs.db
  kgbridge runs --db runs.db 0192f6c4-8d8a-7b3e-9c1f-2a4b6c8d0e1f --format json
  kgbridge runs --db runs.db --query-id <query-id> --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runRuns(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite run log (required)")
	cmd.Flags().StringVar(&opts.QueryID, "query-id", "", "list the attempts of one raw query across runs")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, runID string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.QueryID != "" && runID != "" {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "--query-id cannot be combined with a run id", nil)
	}

	// Opening creates the file, so a typo would otherwise look like an
	// empty log.
	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Query history across runs
	if opts.QueryID != "" {
		history, err := queryHistory(ctx, st, opts.QueryID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to read attempts", err)
		}
		return formatter.Success(history)
	}

	// List every run
	if runID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to list runs", err)
		}
		list := RunList{Runs: make([]RunSummary, len(runs))}
		for i, r := range runs {
			list.Runs[i] = summarizeRun(r)
		}
		return formatter.Success(list)
	}

	// Show one run
	detail, err := describeRun(ctx, st, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, fmt.Sprintf("run %s not found", runID), err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to read run", err)
	}
	return formatter.Success(detail)
}

func summarizeRun(r store.Run) RunSummary {
	s := RunSummary{
		ID:         r.ID,
		InputPath:  r.InputPath,
		OutputPath: r.OutputPath,
		Status:     string(r.Status),
		StartedAt:  r.StartedAt,
		Examples:   r.Examples,
		Converted:  r.Converted,
		Tally:      r.Tally,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		s.FinishedAt = &finished
	}
	return s
}

func describeRun(ctx context.Context, st *store.Store, runID string) (RunDetail, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}

	// Recount from attempts; an open or aborted run has an empty tally
	counts, err := st.OutcomeCounts(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	entities, err := st.ReadMissing(ctx, runID, store.KindEntity)
	if err != nil {
		return RunDetail{}, err
	}
	relations, err := st.ReadMissing(ctx, runID, store.KindRelation)
	if err != nil {
		return RunDetail{}, err
	}

	detail := RunDetail{
		RunSummary:       summarizeRun(run),
		MissingEntities:  entities,
		MissingRelations: relations,
	}
	detail.Tally = counts
	for _, n := range counts {
		detail.Attempts += n
	}
	return detail, nil
}

func queryHistory(ctx context.Context, st *store.Store, queryID string) (QueryHistory, error) {
	rows, err := st.AttemptsForQuery(ctx, queryID)
	if err != nil {
		return QueryHistory{}, err
	}
	history := QueryHistory{QueryID: queryID, Attempts: make([]QueryAttempt, len(rows))}
	for i, r := range rows {
		history.Attempts[i] = QueryAttempt{
			RunID:   r.RunID,
			Example: r.Example,
			Parse:   r.Parse,
			Outcome: r.Outcome,
			Detail:  r.Detail,
		}
	}
	return history, nil
}
