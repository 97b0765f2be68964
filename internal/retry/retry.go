// Package retry classifies errors into transient failures worth retrying and
// terminal failures that must halt the caller. The default is terminal:
// financial aggregates would rather stop than guess.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
)

type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

// Transient marks err as retryable regardless of its shape.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTransient, reason: "explicit_transient"}
}

// Terminal marks err as non-retryable regardless of its shape.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTerminal, reason: "explicit_terminal"}
}

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyPostgresCode(string(pqErr.Code))
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

// classifyPostgresCode maps SQLSTATE classes. Serialization failures,
// deadlocks, and connection drops are retryable; constraint and data errors
// are not.
func classifyPostgresCode(code string) Decision {
	switch code {
	case "40001": // serialization_failure
		return Decision{Class: ClassTransient, Reason: "pg_serialization_failure"}
	case "40P01": // deadlock_detected
		return Decision{Class: ClassTransient, Reason: "pg_deadlock_detected"}
	case "55P03": // lock_not_available
		return Decision{Class: ClassTransient, Reason: "pg_lock_not_available"}
	case "57014": // query_canceled (statement_timeout)
		return Decision{Class: ClassTransient, Reason: "pg_query_canceled"}
	}
	if strings.HasPrefix(code, "08") { // connection exceptions
		return Decision{Class: ClassTransient, Reason: "pg_connection_exception"}
	}
	if strings.HasPrefix(code, "53") { // insufficient resources
		return Decision{Class: ClassTransient, Reason: "pg_insufficient_resources"}
	}
	return Decision{Class: ClassTerminal, Reason: "pg_sqlstate_" + code}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"bad connection",
	"server closed idle connection",
}

var terminalMessageTokens = []string{
	"monetary overflow",
	"invalid argument",
	"constraint violation",
	"unknown table",
}
