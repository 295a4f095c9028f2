package cdp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mithun50/luma-cli/internal/domain"
)

// TimeoutError is returned when a call's deadline elapses before its response.
type TimeoutError struct {
	Method string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("cdp: call %s timed out after %s", e.Method, e.After.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error { return domain.ErrTimeout }

// RemoteError is the error member of a CDP response.
type RemoteError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Method  string          `json:"-"`
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("cdp: %s failed: %s (code %d)", e.Method, e.Message, e.Code)
	if len(e.Data) > 0 {
		msg += ": " + string(e.Data)
	}
	return msg
}

func (e *RemoteError) Unwrap() error { return domain.ErrRemote }

// EvaluationError reports a Runtime.evaluate that completed but produced
// nothing usable: a thrown exception, an empty value or an error-flagged value.
type EvaluationError struct {
	ContextID int
	Reason    string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("cdp: context %d: %s", e.ContextID, e.Reason)
}

func (e *EvaluationError) Unwrap() error { return domain.ErrRemote }

// EvaluationReason is the page-reported reason the value was rejected.
func (e *EvaluationError) EvaluationReason() string { return e.Reason }

// NoViableContextError is returned after every known context was tried.
type NoViableContextError struct {
	Expression string
	Tried      int
	Last       error
}

func (e *NoViableContextError) Error() string {
	if e.Tried == 0 {
		return fmt.Sprintf("cdp: %s: no execution contexts", e.Expression)
	}
	return fmt.Sprintf("cdp: %s: no viable context among %d: %v", e.Expression, e.Tried, e.Last)
}

// Unwrap exposes both the sentinel and the last per-context failure.
func (e *NoViableContextError) Unwrap() []error {
	if e.Last == nil {
		return []error{domain.ErrNoViableContext}
	}
	return []error{domain.ErrNoViableContext, e.Last}
}

// PortFailure is one candidate port that did not yield a target.
type PortFailure struct {
	Port int
	Err  error
}

// DiscoveryError aggregates every per-port failure of one discovery pass.
type DiscoveryError struct {
	Ports    []int
	Failures []PortFailure
}

func (e *DiscoveryError) Error() string {
	ports := make([]string, 0, len(e.Ports))
	for _, p := range e.Ports {
		ports = append(ports, strconv.Itoa(p))
	}
	summary := "no ports responding"
	if len(e.Failures) > 0 {
		parts := make([]string, 0, len(e.Failures))
		for _, f := range e.Failures {
			parts = append(parts, fmt.Sprintf("%d: %v", f.Port, f.Err))
		}
		summary = "errors: " + strings.Join(parts, "; ")
	}
	first := "9000"
	if len(ports) > 0 {
		first = ports[0]
	}
	return fmt.Sprintf("cdp: target not found on ports %s. %s. Is the IDE started with --remote-debugging-port=%s?",
		strings.Join(ports, ","), summary, first)
}

func (e *DiscoveryError) Unwrap() error { return domain.ErrDiscoveryFailed }
