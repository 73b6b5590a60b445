package harness

// AttemptTrace is one attempted (example, parse) pair as read back from the
// run log.
type AttemptTrace struct {
	Seq     int64  `json:"seq"`
	Example int    `json:"example"`
	Parse   int    `json:"parse"`
	Outcome string `json:"outcome"`
}

// RecordTrace is one output record.
type RecordTrace struct {
	Question string  `json:"question"`
	SPARQL   *string `json:"sparql"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	RunID            string         `json:"run_id"`
	Records          []RecordTrace  `json:"records"`
	Trace            []AttemptTrace `json:"trace"`
	Tally            map[string]int `json:"tally"`
	MissingEntities  []string       `json:"missing_entities"`
	MissingRelations []string       `json:"missing_relations"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:             true,
		Errors:           []string{},
		Records:          []RecordTrace{},
		Trace:            []AttemptTrace{},
		Tally:            map[string]int{},
		MissingEntities:  []string{},
		MissingRelations: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Converted returns the number of records with a query.
func (r *Result) Converted() int {
	n := 0
	for _, rec := range r.Records {
		if rec.SPARQL != nil {
			n++
		}
	}
	return n
}
