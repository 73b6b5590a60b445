package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/kgbridge/internal/convert"
	"github.com/roach88/kgbridge/internal/dataset"
	"github.com/roach88/kgbridge/internal/mapping"
	"github.com/roach88/kgbridge/internal/store"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	EntityMap   string
	RelationMap string
	MissingDir  string
	Config      string
	Database    string
	Workers     int

	// IDGenerator and Clock override run ids and timestamps in the run log
	// (for testing). Nil uses UUIDv7 ids and the wall clock.
	IDGenerator store.IDGenerator
	Clock       store.Clock
}

// ConvertSummary is the result printed after a conversion.
type ConvertSummary struct {
	Input     string         `json:"input"`
	Output    string         `json:"output"`
	Examples  int            `json:"examples"`
	Converted int            `json:"converted"`
	Attempts  int            `json:"attempts"`
	Tally     map[string]int `json:"tally"`

	// MappingGaps counts failed attempts that a table entry would fix;
	// Unsupported counts those rejected for their query shape.
	MappingGaps int `json:"mapping_gaps"`
	Unsupported int `json:"unsupported"`

	MissingEntities      int    `json:"missing_entities"`
	MissingRelations     int    `json:"missing_relations"`
	MissingEntitiesFile  string `json:"missing_entities_file"`
	MissingRelationsFile string `json:"missing_relations_file"`

	RunID string `json:"run_id,omitempty"`
}

// String renders the summary for text output. Every outcome category is
// listed, including those with a zero count.
func (s ConvertSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Converted %d of %d examples (%d attempts)\n", s.Converted, s.Examples, s.Attempts)
	fmt.Fprintln(&b, "Outcomes:")
	for _, o := range convert.Outcomes {
		fmt.Fprintf(&b, "  %-24s %d\n", o, s.Tally[string(o)])
	}
	fmt.Fprintf(&b, "Failed attempts: %d mapping gaps, %d unsupported\n", s.MappingGaps, s.Unsupported)
	fmt.Fprintf(&b, "Missing entities: %d (%s)\n", s.MissingEntities, s.MissingEntitiesFile)
	fmt.Fprintf(&b, "Missing relations: %d (%s)\n", s.MissingRelations, s.MissingRelationsFile)
	fmt.Fprintf(&b, "Output: %s", s.Output)
	if s.RunID != "" {
		fmt.Fprintf(&b, "\nRun: %s", s.RunID)
	}
	return b.String()
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a dataset's SPARQL queries",
		Long: `Convert every example of a WebQSP-style dataset from Freebase to Wikidata.

For each question the candidate parses are tried in order and the first one
that converts is kept. The output is a JSON array of {"question", "sparql"}
records in input order, with "sparql" null when no parse converted.

Legacy identifiers without a mapping are written to missing_entities.txt and
missing_relations.txt next to the output (or in --missing-dir). Queries that
fail to convert do not change the exit code; the outcome tally printed at the
end describes them.

Examples:
  kgbridge convert data/WebQSP.test.json out/converted.json
  kgbridge convert in.json out.json --entity-map fb2wd.json --relation-map rels.yaml
  kgbridge convert in.json out.json --config profile.yaml --db runs.db --workers 8`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EntityMap, "entity-map", DefaultEntityMap, "entity mapping table (JSON or YAML)")
	cmd.Flags().StringVar(&opts.RelationMap, "relation-map", DefaultRelationMap, "relation mapping table (JSON or YAML)")
	cmd.Flags().StringVar(&opts.MissingDir, "missing-dir", "", "directory for missing-identifier reports (default: output directory)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "YAML conversion profile")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite run log (disabled when empty)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "number of conversion workers")

	return cmd
}

func runConvert(opts *ConvertOptions, inputPath, outputPath string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Defaults, then the profile, then flags set on the command line
	settings, err := resolveSettings(opts, outputPath, cmd.Flags().Changed)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	// An interrupt stops the batch; workers finish their current example
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("loading mapping tables", "entities", settings.EntityMap, "relations", settings.RelationMap)
	tables, err := mapping.LoadTables(ctx, settings.EntityMap, settings.RelationMap)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeMapping, "failed to load mapping tables", err)
	}

	slog.Info("loading dataset", "path", inputPath)
	examples, err := dataset.Load(inputPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDataset, "failed to load dataset", err)
	}

	// Build the converter
	conv, err := convert.New(tables, convert.WithNamespaces(settings.Namespaces))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid namespaces", err)
	}

	var (
		recorder *store.Recorder
		runID    string
		finished bool
	)
	// Open the run log and start a run
	if settings.Database != "" {
		st, err := store.Open(settings.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		recorder = store.NewRecorder(st, opts.IDGenerator, opts.Clock)
		runID, err = recorder.BeginRun(ctx, inputPath, outputPath)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to record run", err)
		}
		slog.Debug("run started", "run_id", runID)

		// Any return before FinishRun leaves the run aborted, not open. The
		// abort is written even when ctx was cancelled by an interrupt.
		defer func() {
			if finished {
				return
			}
			if err := recorder.AbortRun(context.WithoutCancel(ctx), runID); err != nil {
				slog.Error("error aborting run", "run_id", runID, "error", err)
				return
			}
			slog.Warn("run aborted", "run_id", runID)
		}()
	}

	// Convert every example
	result, err := convert.RunBatch(ctx, conv, examples, convert.BatchOptions{Workers: settings.Workers})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "conversion interrupted", err)
	}

	// Write the converted dataset and the missing-identifier reports
	entitiesFile := filepath.Join(settings.MissingDir, dataset.MissingEntitiesFile)
	relationsFile := filepath.Join(settings.MissingDir, dataset.MissingRelationsFile)
	if err := writeOutputs(outputPath, entitiesFile, relationsFile, result); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDataset, "failed to write outputs", err)
	}

	// Record attempts only once the outputs exist
	if recorder != nil {
		if err := recorder.FinishRun(ctx, runID, result); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to record run", err)
		}
		finished = true
	}

	summary := ConvertSummary{
		Input:                inputPath,
		Output:               outputPath,
		Examples:             len(examples),
		Converted:            result.Converted(),
		Attempts:             len(result.Attempts),
		Tally:                make(map[string]int, len(result.Tracker.Tally)),
		MissingEntities:      len(result.Tracker.MissingEntities),
		MissingRelations:     len(result.Tracker.MissingRelations),
		MissingEntitiesFile:  entitiesFile,
		MissingRelationsFile: relationsFile,
		RunID:                runID,
	}
	for o, n := range result.Tracker.Tally {
		summary.Tally[string(o)] = n
	}
	// Failed attempts are logged with their query id for `runs --query-id`
	for _, a := range result.Attempts {
		switch {
		case convert.IsMappingGap(a.Err):
			summary.MappingGaps++
		case convert.IsUnsupported(a.Err):
			summary.Unsupported++
		}
		if a.Err != nil {
			slog.Debug("attempt failed",
				"example", a.Example, "parse", a.Parse, "query_id", a.QueryID,
				"outcome", a.Outcome, "error", a.Err)
		}
	}
	return formatter.Success(summary)
}

func writeOutputs(outputPath, entitiesFile, relationsFile string, result *convert.BatchResult) error {
	if err := dataset.WriteRecords(outputPath, result.Records); err != nil {
		return err
	}
	if err := dataset.WriteMissing(entitiesFile, result.Tracker.MissingEntities.Sorted()); err != nil {
		return err
	}
	return dataset.WriteMissing(relationsFile, result.Tracker.MissingRelations.Sorted())
}
