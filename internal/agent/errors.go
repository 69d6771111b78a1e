// internal/agent/errors.go
package agent

import (
	"context"
	"errors"

	"github.com/xkilldash9x/uxagent/internal/browser/dom"
	"github.com/xkilldash9x/uxagent/internal/browser/session"
)

var (
	// ErrMissingRequiredParam is returned when a verb lacks a parameter it needs.
	ErrMissingRequiredParam = errors.New("missing required parameter")
	// ErrUnsupportedVerb is returned for intent names the executor does not know.
	ErrUnsupportedVerb = errors.New("unsupported verb")
	// ErrInvalidDecision is returned when the oracle answers without an action name.
	ErrInvalidDecision = errors.New("invalid decision")
)

// ErrorCode is the short machine-readable failure class recorded into history
// and the transcript so the oracle can react to it.
type ErrorCode string

const (
	ErrCodeNoLocator          ErrorCode = "NO_LOCATOR_SPECIFIED"
	ErrCodeTargetNotFound     ErrorCode = "AMBIGUOUS_OR_MISSING_TARGET"
	ErrCodeMissingParam       ErrorCode = "MISSING_REQUIRED_PARAM"
	ErrCodeUnsupportedVerb    ErrorCode = "UNSUPPORTED_VERB"
	ErrCodeNavigationTimeout  ErrorCode = "NAVIGATION_TIMEOUT"
	ErrCodeInteractionTimeout ErrorCode = "INTERACTION_TIMEOUT"
	ErrCodeInvalidDecision    ErrorCode = "INVALID_DECISION"
	ErrCodeObservationFailed  ErrorCode = "OBSERVATION_FAILED"
	ErrCodeOracleFailure      ErrorCode = "ORACLE_FAILURE"
	ErrCodeCanceled           ErrorCode = "CANCELED"
	ErrCodeExecutionFailure   ErrorCode = "EXECUTION_FAILURE"
)

// ClassifyError maps an error from the resolver, executor or session to its
// ErrorCode. Unknown errors are EXECUTION_FAILURE; nil maps to "".
func ClassifyError(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, dom.ErrNoLocatorSpecified):
		return ErrCodeNoLocator
	case errors.Is(err, dom.ErrAmbiguousOrMissingTarget):
		return ErrCodeTargetNotFound
	case errors.Is(err, ErrMissingRequiredParam):
		return ErrCodeMissingParam
	case errors.Is(err, ErrUnsupportedVerb):
		return ErrCodeUnsupportedVerb
	case errors.Is(err, ErrInvalidDecision):
		return ErrCodeInvalidDecision
	case errors.Is(err, session.ErrNavigationTimeout):
		return ErrCodeNavigationTimeout
	case errors.Is(err, session.ErrInteractionTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeInteractionTimeout
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled
	default:
		return ErrCodeExecutionFailure
	}
}
