// Package deploy implements the request delivery workflow. It drives a
// persisted request through tfvars rendering, pull request publication,
// status recording, and user notification using the superfly/fsm library.
package deploy

// DeliveryRequest is the FSM input
type DeliveryRequest struct {
	RequestIdentifier string
	UserEmail         string
}

// DeliveryResult is the FSM output (accumulated across transitions)
type DeliveryResult struct {
	// From LoadRequest
	RequestID   int64
	Department  string
	Environment string

	// From RenderTFVars
	TFVarsPath    string
	TFVarsWritten bool

	// From PublishPR
	PRNumber  int
	PRCreated bool

	// From RecordStatus
	StatusRecorded bool

	// From Notify
	Notified bool

	// Final outcome
	Status       string
	ErrorMessage string
}

// State names
const (
	StateLoadRequest  = "load_request"
	StateRenderTFVars = "render_tfvars"
	StatePublishPR    = "publish_pr"
	StateRecordStatus = "record_status"
	StateNotify       = "notify"
	StateComplete     = "complete"
	StateFailed       = "failed"
)
