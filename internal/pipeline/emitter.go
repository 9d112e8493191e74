package pipeline

import "github.com/leadflow/leadflow-server/internal/model"

// Emitter receives ordered progress updates from a running pipeline.
// Exactly one terminal call (Completed or Error) follows the status
// sequence. Implementations must not block the pipeline.
type Emitter interface {
	Status(ev model.ProgressEvent)
	Completed(p model.CompletedPayload)
	Error(msg string)
}

// nopEmitter discards all events. Used by the one-shot path, which reports
// through its return value instead.
type nopEmitter struct{}

func (nopEmitter) Status(model.ProgressEvent)      {}
func (nopEmitter) Completed(model.CompletedPayload) {}
func (nopEmitter) Error(string)                     {}
