package engine

import (
	"errors"
	"fmt"
)

// anomalyError flags an event that references state the engine does not have
// or that violates a protocol state machine (double resolution, claim against
// an unknown campaign, undecodable payload). Anomalous events are recorded in
// the idempotency ledger and otherwise ignored; they never mutate entities
// and never halt the chain.
type anomalyError struct {
	kind string
	msg  string
}

func (e *anomalyError) Error() string {
	return "anomaly " + e.kind + ": " + e.msg
}

func anomalyf(kind, format string, args ...any) error {
	return &anomalyError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func asAnomaly(err error) (*anomalyError, bool) {
	var a *anomalyError
	if errors.As(err, &a) {
		return a, true
	}
	return nil, false
}
