package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kgbridge/internal/dataset"
	"github.com/roach88/kgbridge/internal/mapping"
	"github.com/roach88/kgbridge/internal/preprocess"
	"github.com/roach88/kgbridge/internal/sparql"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	EntityMap   string
	RelationMap string
	Parse       bool
}

// ParseFailure identifies a parse that the SPARQL parser rejected.
type ParseFailure struct {
	Example int    `json:"example"`
	Parse   int    `json:"parse"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool `json:"valid"`
	Examples int  `json:"examples"`
	Parses   int  `json:"parses"`

	// Entities and Relations are table sizes; zero when no tables were
	// requested.
	Entities  int `json:"entities,omitempty"`
	Relations int `json:"relations,omitempty"`

	// Parseable counts parses accepted by the SPARQL parser after
	// preprocessing, when --parse is set.
	Parseable     *int           `json:"parseable,omitempty"`
	ParseFailures []ParseFailure `json:"parse_failures,omitempty"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Dataset valid: %d examples, %d parses", r.Examples, r.Parses)
	if r.Entities > 0 || r.Relations > 0 {
		fmt.Fprintf(&b, "\n✓ Mapping tables loaded: %d entities, %d relations", r.Entities, r.Relations)
	}
	if r.Parseable != nil {
		fmt.Fprintf(&b, "\nParseable: %d of %d", *r.Parseable, r.Parses)
		for _, f := range r.ParseFailures {
			fmt.Fprintf(&b, "\n  examples[%d].parses[%d]: %s", f.Example, f.Parse, f.Message)
		}
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <input>",
		Short: "Validate a dataset without converting it",
		Long: `Validate a WebQSP-style dataset against the dataset schema.

With --entity-map and --relation-map the mapping tables are loaded and checked
as well. With --parse every candidate parse is preprocessed and run through
the SPARQL parser; parses it rejects are listed but do not fail validation,
since conversion reports them as Unsupported or Unknown.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EntityMap, "entity-map", "", "entity mapping table to check")
	cmd.Flags().StringVar(&opts.RelationMap, "relation-map", "", "relation mapping table to check")
	cmd.Flags().BoolVar(&opts.Parse, "parse", false, "check that every parse is accepted by the SPARQL parser")

	return cmd
}

func runValidate(opts *ValidateOptions, inputPath string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Read and decode the dataset
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDataset, "failed to read dataset", err)
	}

	examples, err := dataset.Decode(inputPath, data)
	if err != nil {
		var verr *dataset.ValidationError
		if errors.As(err, &verr) {
			// A schema mismatch is a validation failure, not a command error.
			return formatter.Fail(ExitFailure, ErrCodeDataset, "dataset does not match schema", err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeDataset, "failed to decode dataset", err)
	}
	formatter.VerboseLog("Decoded %d example(s) from %s", len(examples), inputPath)

	result := ValidationResult{Valid: true, Examples: len(examples)}
	for _, ex := range examples {
		result.Parses += len(ex.Parses)
	}

	// Check the mapping tables if given
	if opts.EntityMap != "" || opts.RelationMap != "" {
		if opts.EntityMap == "" || opts.RelationMap == "" {
			return formatter.Fail(ExitCommandError, ErrCodeMapping, "--entity-map and --relation-map must be given together", nil)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		tables, err := mapping.LoadTables(ctx, opts.EntityMap, opts.RelationMap)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeMapping, "failed to load mapping tables", err)
		}
		result.Entities = tables.Entities.Len()
		result.Relations = tables.Relations.Len()
	}

	// Run every parse through preprocessing and the parser
	if opts.Parse {
		parseable := 0
		for i, ex := range examples {
			for j, p := range ex.Parses {
				if err := checkParse(p); err != nil {
					result.ParseFailures = append(result.ParseFailures, ParseFailure{
						Example: i,
						Parse:   j,
						Message: err.Error(),
					})
					continue
				}
				parseable++
			}
		}
		result.Parseable = &parseable
	}

	return formatter.Success(result)
}

// checkParse reports whether the parser accepts query after preprocessing.
// A parser panic is reported as an error.
func checkParse(query string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	_, err = sparql.Parse(preprocess.Normalize(query))
	return err
}
