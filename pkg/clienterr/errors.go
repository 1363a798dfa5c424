// Package clienterr defines the error taxonomy surfaced by generated clients.
//
// ContractError is raised while contracts are inspected or registered and is
// fatal at startup. CodecError, InvocationError and RemoteError are returned
// from individual calls and are never retried internally.
package clienterr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrArgument marks a call made with the wrong number or types of arguments.
var ErrArgument = errors.New("invalid argument")

const bodySnippetLimit = 512

// ContractError reports malformed contract metadata.
type ContractError struct {
	Contract  string
	Operation string
	Reason    string
	Err       error
}

// Contractf builds a ContractError for the given contract/operation.
func Contractf(contract, operation, format string, args ...any) *ContractError {
	return &ContractError{
		Contract:  contract,
		Operation: operation,
		Reason:    fmt.Sprintf(format, args...),
	}
}

func (e *ContractError) Error() string {
	var b strings.Builder
	b.WriteString("contract")
	if e.Contract != "" {
		b.WriteString(" ")
		b.WriteString(e.Contract)
	}
	if e.Operation != "" {
		b.WriteString(".")
		b.WriteString(e.Operation)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ContractError) Unwrap() error { return e.Err }

// CodecError reports a payload that could not be encoded or decoded.
type CodecError struct {
	Op     string // "encode" or "decode"
	Format string
	Err    error
}

func (e *CodecError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("codec %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("codec %s %s: %v", e.Format, e.Op, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// InvocationError wraps a transport, encode or decode failure of a single call.
type InvocationError struct {
	Contract  string
	Operation string
	Err       error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s.%s: %v", e.Contract, e.Operation, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// RemoteError reports a non-2xx response. Body holds the full response body.
type RemoteError struct {
	Method string
	URL    string
	Status int
	Body   []byte
}

func (e *RemoteError) Error() string {
	snippet := e.Snippet()
	if snippet == "" {
		return fmt.Sprintf("%s %s: remote status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: remote status %d: %s", e.Method, e.URL, e.Status, snippet)
}

// Snippet returns a trimmed, size-limited view of the body for logs.
func (e *RemoteError) Snippet() string {
	body := e.Body
	if len(body) > bodySnippetLimit {
		body = body[:bodySnippetLimit]
	}
	return strings.TrimSpace(string(body))
}

// IsRemoteStatus reports whether err carries a RemoteError with the given status.
func IsRemoteStatus(err error, status int) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Status == status
}
