package harness

// Binding is a named value rendered in native notation, e.g. "5i32".
type Binding struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TraceEvent records one executed case. Inputs and outputs follow the
// program's declared order.
type TraceEvent struct {
	Case    string    `json:"case"`
	Inputs  []Binding `json:"inputs"`
	Outputs []Binding `json:"outputs"`
	Result  int64     `json:"result"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every case matched its expectations.
	Pass bool `json:"pass"`

	// Trace holds one event per case, in case order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends the event for one executed case.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
