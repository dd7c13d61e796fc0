package broker

import "fmt"

// Pipeline stages, in execution order. Error responses name the failing
// stage and nothing else; the detail lives in the audit stream.
const (
	StageVerify    = "verify"
	StageMatch     = "match"
	StageAuthorize = "authorize"
	StageIssue     = "issue"
	StageRenew     = "renew"
	StageRevoke    = "revoke"
)

// StageError wraps a pipeline failure with the stage it occurred in.
// Its message is deliberately uninformative about the cause so responses
// never leak claim values or policy internals to unauthenticated callers.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("request failed at stage '%s'", e.Stage)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
