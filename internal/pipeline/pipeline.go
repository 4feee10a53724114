// Package pipeline runs an ordered list of adapters against one shared context, then runs an
// ordered list of cleanup adapters no matter how the main list ended.
//
// Adapters never see each other. They communicate through session data (handles, tokens,
// headers) and contribute result data that is deep-merged into the outcome. The first failure
// stops the main list; cleanup failures are swallowed and never change the outcome.
package pipeline

// Phase is a progress notification emitted for an adapter. The runner emits the four phases
// below, adapters may emit any other value and it is forwarded verbatim.
type Phase string

const (
	VALIDATE_ADAPTER Phase = "VALIDATE_ADAPTER"
	START_ADAPTER    Phase = "START_ADAPTER"
	END_ADAPTER      Phase = "END_ADAPTER"
	FAILED_ADAPTER   Phase = "FAILED_ADAPTER"
)

// ProgressFunc receives every progress notification of a run.
type ProgressFunc func(adapterName string, phase Phase)

// GENERAL_ERROR is the error type of every failure that an adapter did not classify itself.
const GENERAL_ERROR = "GENERAL_ERROR"

// Outcome is the single value produced by a run. When Success is false, Data is nil and
// ErrorType is set.
type Outcome struct {
	Success      bool           `json:"success"`
	Data         map[string]any `json:"data,omitempty"`
	ErrorType    string         `json:"errorType,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// ActionResult is what an action may return. A nil result means success without data.
type ActionResult struct {
	Failed       bool
	ErrorType    string
	ErrorMessage string
	Data         map[string]any
}

// Succeed returns a result contributing `data` to the outcome.
func Succeed(data map[string]any) *ActionResult {
	return &ActionResult{Data: data}
}

// Fail returns a result that halts the run with the given error type.
func Fail(errorType, message string) *ActionResult {
	return &ActionResult{
		Failed:       true,
		ErrorType:    errorType,
		ErrorMessage: message,
	}
}

func failureOutcome(errorType, message string) Outcome {
	if errorType == "" {
		errorType = GENERAL_ERROR
	}
	return Outcome{
		Success:      false,
		ErrorType:    errorType,
		ErrorMessage: message,
	}
}

// State is the lifecycle of a run, it is attached to the run's span.
type State string

const (
	STATE_INIT                 State = "INIT"
	STATE_VALIDATING_STRUCTURE State = "VALIDATING_STRUCTURE"
	STATE_FAILED_STRUCTURE     State = "FAILED_STRUCTURE"
	STATE_RUNNING_MAIN         State = "RUNNING_MAIN"
	STATE_MAIN_OK              State = "MAIN_OK"
	STATE_MAIN_FAILED          State = "MAIN_FAILED"
	STATE_RUNNING_CLEANUP      State = "RUNNING_CLEANUP"
	STATE_DONE                 State = "DONE"
)
