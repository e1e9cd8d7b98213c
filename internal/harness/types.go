package harness

// TraceEntry is one HTTP exchange observed while running a scenario.
type TraceEntry struct {
	Step        int    `json:"step"`
	Method      string `json:"method"`
	Target      string `json:"target"`
	Status      int    `json:"status"`
	Location    string `json:"location,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
	Code        string `json:"code,omitempty"`

	// Followed marks the fetch of the previous entry's location.
	Followed bool `json:"followed,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expect clause matched.
	Pass bool `json:"pass"`

	// Trace lists the exchanges in order.
	Trace []TraceEntry `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError records a failed expectation.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
