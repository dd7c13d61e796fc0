package core

// MatchTrace captures the detailed trace of one matcher run, for the
// explain endpoint and the `why` command.
type MatchTrace struct {
	// CorrelationID is the unique identifier for the traced request.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Principal being evaluated.
	Principal *Principal `json:"principal"`

	// BindingResults contains the result of every binding evaluated,
	// in configuration order.
	BindingResults []BindingResult `json:"binding_results"`

	// Matched indicates whether any binding matched.
	Matched bool `json:"matched"`

	// MatchedBinding is the name of the first matching binding, if any.
	MatchedBinding string `json:"matched_binding,omitempty"`
}

// BindingResult captures why a specific binding matched or failed.
type BindingResult struct {
	BindingName string        `json:"binding_name"`
	Description string        `json:"description,omitempty"`
	Matched     bool          `json:"matched"`
	Checks      []CheckResult `json:"checks,omitempty"`
}

// CheckResult is a single condition outcome within a binding.
type CheckResult struct {
	// Expression is a human-readable rendering, e.g. `ref glob 'refs/heads/*'`.
	Expression string `json:"expression"`
	Matched    bool   `json:"matched"`
	Reason     string `json:"reason,omitempty"`
}
