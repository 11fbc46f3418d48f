package harness

// Snapshot is the observable outcome of a scenario. Values are normalized
// through JSON so that snapshots compare and serialize deterministically.
type Snapshot struct {
	Scenario string   `json:"scenario"`
	ID       string   `json:"id,omitempty"`
	URL      string   `json:"url,omitempty"`
	SQL      string   `json:"sql,omitempty"`
	Args     []any    `json:"args,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// Error is the error kind, or the message of an error without one.
	Error string `json:"error,omitempty"`

	Count    *int64 `json:"count,omitempty"`
	Entities []any  `json:"entities,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expectations match.
	Pass bool `json:"pass"`

	// Errors contains failed expectation messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Snapshot Snapshot `json:"snapshot"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(scenario string) *Result {
	return &Result{
		Pass:     true,
		Errors:   []string{},
		Snapshot: Snapshot{Scenario: scenario},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
