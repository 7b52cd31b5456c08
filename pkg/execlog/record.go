package execlog

import "time"

// OutcomeKind distinguishes success from failure.
type OutcomeKind string

const (
	// OutcomeSuccess marks an invocation that produced a result value.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeFailure marks an invocation that failed in a classified way.
	OutcomeFailure OutcomeKind = "failure"
)

// FailureKind classifies why an invocation failed.
type FailureKind string

const (
	// FailInvalidArguments covers schema violations and unknown tools. The
	// backend was never contacted.
	FailInvalidArguments FailureKind = "invalid_arguments"
	// FailTimeout covers local handlers and remote calls that exceeded
	// their time budget.
	FailTimeout FailureKind = "timeout"
	// FailDomainError covers tool-reported failures such as division by
	// zero; the transport worked, the tool declined.
	FailDomainError FailureKind = "domain_error"
	// FailRemoteProtocol covers malformed or erroneous MCP responses.
	FailRemoteProtocol FailureKind = "remote_protocol"
	// FailUnavailable covers remote calls refused because the link was not
	// healthy; no network attempt was made.
	FailUnavailable FailureKind = "unavailable"
)

// Outcome is the terminal result of one invocation.
type Outcome struct {
	Kind        OutcomeKind `json:"kind"`
	Value       interface{} `json:"value,omitempty"`
	FailureKind FailureKind `json:"failure_kind,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// Success builds a successful outcome carrying the tool's result value.
func Success(value interface{}) Outcome {
	return Outcome{Kind: OutcomeSuccess, Value: value}
}

// Failure builds a failed outcome with a classification and a
// human-readable message.
func Failure(kind FailureKind, message string) Outcome {
	return Outcome{Kind: OutcomeFailure, FailureKind: kind, Message: message}
}

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Record captures a single tool invocation.
type Record struct {
	ID       string                 `json:"id"`
	Tool     string                 `json:"tool"`
	Origin   string                 `json:"origin"`
	Params   map[string]interface{} `json:"params,omitempty"`
	Start    time.Time              `json:"start"`
	Duration time.Duration          `json:"duration"`
	Outcome  Outcome                `json:"outcome"`
}
