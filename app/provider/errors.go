package provider

import "fmt"

type ErrorKind string

const (
	// ErrorKindTransport covers connect failures, timeouts and TLS errors.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindProtocol covers non-200 statuses, unparseable bodies and
	// missing required fields.
	ErrorKindProtocol ErrorKind = "protocol"
	// ErrorKindDecline is an explicit provider rejection.
	ErrorKindDecline ErrorKind = "decline"
	// ErrorKindDefect marks responses that are neither success nor a
	// recognized decline. Never reported as success.
	ErrorKindDefect ErrorKind = "defect"
)

// FlowError is the classified failure of one external round trip. Step is
// filled in by the orchestrator when it records the failure.
type FlowError struct {
	Kind   ErrorKind
	Step   string
	Reason string
}

func (e *FlowError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Step, e.Reason)
}

func transportError(err error) *FlowError {
	return &FlowError{Kind: ErrorKindTransport, Reason: err.Error()}
}

func protocolError(format string, args ...interface{}) *FlowError {
	return &FlowError{Kind: ErrorKindProtocol, Reason: fmt.Sprintf(format, args...)}
}
