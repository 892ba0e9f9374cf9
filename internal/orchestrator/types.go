package orchestrator

// State tracks where a request is in its lifecycle.
type State string

const (
	StateReceived   State = "received"
	StateClassified State = "classified"
	StateFastPath   State = "fast_path"
	StatePlanned    State = "planned"
	StateDispatched State = "dispatched"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Complexity is the classifier's difficulty judgment.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// Classification is the classifier's verdict on one utterance.
type Classification struct {
	Intent     string
	Complexity Complexity
	Primary    string   // primary handler name
	Supporting []string // supporting handler names, empty on the fast path
}

// Plan names the handlers and the already-determined action for one request.
// Handlers execute the plan's action verbatim.
type Plan struct {
	Primary    string
	Supporting []string
	Action     string
}

// Response is the outward result of one handled utterance.
type Response struct {
	Text         string   `json:"text"`
	UsedStrategy string   `json:"used_strategy"`
	ElapsedMs    int64    `json:"elapsed_ms"`
	Stages       []string `json:"stages"`
	ThreadID     string   `json:"thread_id"`
	Degraded     bool     `json:"degraded"`
}
