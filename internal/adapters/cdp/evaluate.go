package cdp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-rod/rod/lib/proto"

	"github.com/mithun50/luma-cli/internal/domain"
)

type remoteValue struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

type exceptionDetails struct {
	Text      string       `json:"text"`
	Exception *remoteValue `json:"exception,omitempty"`
}

type evaluateResult struct {
	Result           remoteValue       `json:"result"`
	ExceptionDetails *exceptionDetails `json:"exceptionDetails,omitempty"`
}

// Evaluate runs expr in a single execution context and returns its
// by-value JSON result. Exceptions, empty values and values carrying a
// truthy "error" member are reported as *EvaluationError.
func (c *Conn) Evaluate(contextID int, expr domain.Expression) (json.RawMessage, error) {
	params := proto.RuntimeEvaluate{
		Expression:    expr.Source,
		ContextID:     proto.RuntimeExecutionContextID(contextID),
		ReturnByValue: true,
		AwaitPromise:  expr.AwaitPromise,
	}
	raw, err := c.Call(params.ProtoReq(), params)
	if err != nil {
		return nil, err
	}
	var res evaluateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &EvaluationError{ContextID: contextID, Reason: fmt.Sprintf("decode result: %v", err)}
	}
	if ex := res.ExceptionDetails; ex != nil {
		reason := ex.Text
		if ex.Exception != nil && ex.Exception.Description != "" {
			reason = ex.Exception.Description
		}
		return nil, &EvaluationError{ContextID: contextID, Reason: "exception: " + reason}
	}
	v := bytes.TrimSpace(res.Result.Value)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil, &EvaluationError{ContextID: contextID, Reason: "empty result"}
	}
	if flag := errorFlag(v); flag != "" {
		return nil, &EvaluationError{ContextID: contextID, Reason: flag}
	}
	return v, nil
}

// EvaluateAcrossContexts tries every known execution context in creation
// order and returns the first usable value. Contexts are tried one after
// the other; the sweep stops at the first success.
func (c *Conn) EvaluateAcrossContexts(expr domain.Expression) (json.RawMessage, error) {
	contexts := c.contexts.List()
	var last error
	for _, ec := range contexts {
		v, err := c.Evaluate(ec.ID, expr)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, domain.ErrTransportClosed) {
			return nil, err
		}
		c.log.Debug().Err(err).Int("context", ec.ID).Str("expression", expr.Name).Msg("cdp: context attempt failed")
		last = err
	}
	return nil, &NoViableContextError{Expression: expr.Name, Tried: len(contexts), Last: last}
}

// errorFlag returns the error message of an object value such as
// {"error":"cascade not found"}; non-objects and falsy errors yield "".
func errorFlag(v json.RawMessage) string {
	if len(v) == 0 || v[0] != '{' {
		return ""
	}
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(v, &payload); err != nil {
		return ""
	}
	e := bytes.TrimSpace(payload.Error)
	switch string(e) {
	case "", "null", "false", `""`, "0":
		return ""
	}
	var s string
	if json.Unmarshal(e, &s) == nil {
		return s
	}
	return string(e)
}
