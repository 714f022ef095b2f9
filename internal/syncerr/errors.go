package syncerr

import (
	"errors"
	"fmt"
)

// Kind classifies why a sync step failed.
type Kind int

const (
	// KindPrecondition means the run was rejected before any side effect.
	KindPrecondition Kind = iota + 1
	// KindTool means an external tool (git, unzip, browser, HTTP) failed.
	KindTool
	// KindTimeout means a bounded wait expired.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindTool:
		return "tool"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the fetcher, repository and orchestrator.
// Detail carries captured tool output (stderr) when there is any.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Precondition creates a KindPrecondition error.
func Precondition(op string, err error) *Error {
	return &Error{Kind: KindPrecondition, Op: op, Err: err}
}

// Tool creates a KindTool error with the tool's captured output.
func Tool(op, detail string, err error) *Error {
	return &Error{Kind: KindTool, Op: op, Detail: detail, Err: err}
}

// Timeout creates a KindTimeout error.
func Timeout(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Err: err}
}

// KindOf reports the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
