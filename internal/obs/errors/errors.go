// Package errors provides the control plane's unified error model: a
// ServiceError carrying a Kind drawn from the six categories the core
// distinguishes, mapped onto gRPC status codes for the wire and usable
// locally via errors.As/errors.Is.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is one of the error categories the control plane distinguishes.
type Kind string

const (
	InvalidArgument    Kind = "invalid_argument"
	NotFound           Kind = "not_found"
	FailedPrecondition Kind = "failed_precondition"
	Unavailable        Kind = "unavailable"
	Internal           Kind = "internal"
	Unimplemented      Kind = "unimplemented"
	// PermissionDenied is raised only by the identity bind/ensure_host
	// checks; it is not part of the six operation-level categories.
	PermissionDenied Kind = "permission_denied"
)

var kindToCode = map[Kind]codes.Code{
	InvalidArgument:    codes.InvalidArgument,
	NotFound:           codes.NotFound,
	FailedPrecondition: codes.FailedPrecondition,
	Unavailable:        codes.Unavailable,
	Internal:           codes.Internal,
	Unimplemented:      codes.Unimplemented,
	PermissionDenied:   codes.PermissionDenied,
}

// ServiceError is the error type returned by every admin/registry/OTA
// operation. Stack carries additional context strings in the order they
// were attached, innermost first, mirroring the wire "stack" field in
// the transport error contract.
type ServiceError struct {
	Kind  Kind
	Msg   string
	Stack []string
	Err   error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Msg)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithContext appends a context string to the error's stack and returns it,
// so callers can build up a chain as an error propagates upward.
func (e *ServiceError) WithContext(s string) *ServiceError {
	e.Stack = append(e.Stack, s)
	return e
}

// GRPCStatus implements the interface google.golang.org/grpc/status recognizes for
// errors that already carry a status. The stack is serialized into the
// status message itself (rather than as typed proto details) since the
// wire protocol here is an abstract request/response contract, not a fixed
// generated-pb schema.
func (e *ServiceError) GRPCStatus() *status.Status {
	code, ok := kindToCode[e.Kind]
	if !ok {
		code = codes.Unknown
	}
	return status.New(code, marshalMessage(e.Msg, e.Stack))
}

func New(kind Kind, msg string) *ServiceError {
	return &ServiceError{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Msg: msg, Err: err}
}

func IsKind(err error, kind Kind) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// FromStatus reconstructs a ServiceError from an RPC status received from a
// peer, the client-side half of the "rewrap into a local chained error"
// contract.
func FromStatus(st *status.Status) *ServiceError {
	kind := Internal
	for k, c := range kindToCode {
		if c == st.Code() {
			kind = k
			break
		}
	}
	msg, stack := unmarshalMessage(st.Message())
	return &ServiceError{Kind: kind, Msg: msg, Stack: stack}
}

const stackSeparator = " || stack: "

func marshalMessage(msg string, stack []string) string {
	if len(stack) == 0 {
		return msg
	}
	joined := msg + stackSeparator
	for i, s := range stack {
		if i > 0 {
			joined += " < "
		}
		joined += s
	}
	return joined
}

func unmarshalMessage(wire string) (string, []string) {
	idx := indexOf(wire, stackSeparator)
	if idx < 0 {
		return wire, nil
	}
	msg := wire[:idx]
	rest := wire[idx+len(stackSeparator):]
	var stack []string
	start := 0
	for i := 0; i+3 <= len(rest); i++ {
		if rest[i:i+3] == " < " {
			stack = append(stack, rest[start:i])
			start = i + 3
			i += 2
		}
	}
	stack = append(stack, rest[start:])
	return msg, stack
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
