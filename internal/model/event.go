package model

// Step names the pipeline phase a progress event refers to.
type Step string

const (
	StepInit      Step = "init"
	StepDiscovery Step = "discovery"
	StepWebsite   Step = "website"
	StepRegistry  Step = "registry"
	StepNetwork   Step = "network"
	StepCompleted Step = "completed"
	StepError     Step = "error"
)

// StepState marks the beginning or end of a step.
type StepState string

const (
	StateStart StepState = "start"
	StateDone  StepState = "done"
)

// ProgressEvent is a single ordered status update streamed to the
// subscriber of a running pipeline.
type ProgressEvent struct {
	Step    Step      `json:"step"`
	State   StepState `json:"state,omitempty"`
	Message string    `json:"message"`
}

// CompletedPayload is the terminal payload of a successful streaming run.
type CompletedPayload struct {
	RunID     string `json:"runId"`
	LeadCount int    `json:"leadCount"`
	Leads     []Lead `json:"leads"`
}

// ErrorPayload is the terminal payload of a failed streaming run.
type ErrorPayload struct {
	Message string `json:"message"`
}
