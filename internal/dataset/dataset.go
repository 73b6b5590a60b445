// Package dataset reads question-answering datasets and writes conversion
// results.
//
// Input follows the WebQSP layout:
//
//	{"Questions": [{"RawQuestion": "...", "Parses": [{"Sparql": "..."}]}]}
//
// The document is checked against an embedded CUE schema before it is
// decoded, so a malformed file is reported with a position instead of
// silently yielding empty questions.
package dataset

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE []byte

// Example is one question with its candidate parses in dataset order.
type Example struct {
	ID       string
	Question string
	Parses   []string
}

// Record is one output entry. SPARQL is nil when no parse converted and
// encodes as JSON null.
type Record struct {
	Question string  `json:"question"`
	SPARQL   *string `json:"sparql"`
}

type rawDataset struct {
	Questions []rawQuestion `json:"Questions"`
}

type rawQuestion struct {
	QuestionID  string     `json:"QuestionId"`
	RawQuestion string     `json:"RawQuestion"`
	Parses      []rawParse `json:"Parses"`
}

type rawParse struct {
	Sparql string `json:"Sparql"`
}

// ValidationError reports a dataset that does not match the schema.
type ValidationError struct {
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads, validates and decodes a dataset file.
func Load(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Decode(path, data)
}

// Decode validates and decodes dataset bytes. filename is used in error
// positions only.
func Decode(filename string, data []byte) ([]Example, error) {
	if err := Validate(filename, data); err != nil {
		return nil, err
	}

	var raw rawDataset
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	examples := make([]Example, len(raw.Questions))
	for i, q := range raw.Questions {
		parses := make([]string, len(q.Parses))
		for j, p := range q.Parses {
			parses[j] = p.Sparql
		}
		examples[i] = Example{
			ID:       q.QuestionID,
			Question: q.RawQuestion,
			Parses:   parses,
		}
	}
	return examples, nil
}

// Validate checks data against the #Dataset schema.
func Validate(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile dataset schema: %w", err)
	}

	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return formatCUEError(err)
	}
	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Dataset")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if path := first.Path(); len(path) > 0 {
		msg = strings.Join(path, ".") + ": " + msg
	}
	verr := &ValidationError{Message: msg}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		verr.Pos = positions[0]
	}
	return verr
}
