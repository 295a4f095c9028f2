package cdp

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mithun50/luma-cli/internal/domain"
)

type evalRecorder struct {
	mu       sync.Mutex
	attempts []int
}

func (r *evalRecorder) record(id int) {
	r.mu.Lock()
	r.attempts = append(r.attempts, id)
	r.mu.Unlock()
}

func (r *evalRecorder) list() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.attempts...)
}

func evalParams(req request) (ctxID int, expr string) {
	var p struct {
		ContextID  int    `json:"contextId"`
		Expression string `json:"expression"`
	}
	_ = json.Unmarshal(req.Params, &p)
	return p.ContextID, p.Expression
}

func byValue(v any) message {
	return message{Result: rawResult(map[string]any{"result": map[string]any{"type": "object", "value": v}})}
}

func pipeWithContexts(t *testing.T, ids ...int) (*pipeTransport, *Conn) {
	t.Helper()
	p := newPipe()
	c := newConn(p, Options{CallTimeout: time.Second})
	t.Cleanup(func() { _ = c.Close() })
	for _, id := range ids {
		p.deliver(t, contextCreated(id))
	}
	require.Eventually(t, func() bool { return len(c.Contexts()) == len(ids) }, time.Second, time.Millisecond)
	return p, c
}

var ping = domain.Expression{Name: "ping", Source: "(() => ({ok:true}))()"}

func TestEvaluateAcrossContextsStopsAtFirstUsableValue(t *testing.T) {
	p, c := pipeWithContexts(t, 1, 2, 3, 4)
	rec := &evalRecorder{}
	p.serve(t, func(req request) message {
		id, _ := evalParams(req)
		rec.record(id)
		switch id {
		case 1:
			return message{Error: &RemoteError{Code: -32000, Message: "Cannot find context with specified id"}}
		case 2:
			return byValue(map[string]any{"error": "cascade not found"})
		case 3:
			return byValue(map[string]any{"html": "<div>hi</div>"})
		default:
			return byValue(map[string]any{"html": "wrong context"})
		}
	})

	v, err := c.EvaluateAcrossContexts(ping)
	require.NoError(t, err)
	require.JSONEq(t, `{"html":"<div>hi</div>"}`, string(v))
	require.Equal(t, []int{1, 2, 3}, rec.list())
}

func TestEvaluateAcrossContextsNoViableContext(t *testing.T) {
	p, c := pipeWithContexts(t, 5, 6, 7)
	p.serve(t, func(req request) message {
		id, _ := evalParams(req)
		switch id {
		case 5:
			return message{Result: rawResult(map[string]any{
				"result":           map[string]any{"type": "object", "subtype": "error"},
				"exceptionDetails": map[string]any{"text": "Uncaught", "exception": map[string]any{"type": "object", "description": "ReferenceError: x is not defined"}},
			})}
		case 6:
			return message{Result: rawResult(map[string]any{"result": map[string]any{"type": "undefined"}})}
		default:
			return byValue(nil)
		}
	})

	_, err := c.EvaluateAcrossContexts(ping)
	require.ErrorIs(t, err, domain.ErrNoViableContext)
	var nv *NoViableContextError
	require.True(t, errors.As(err, &nv))
	require.Equal(t, 3, nv.Tried)
	require.Equal(t, "ping", nv.Expression)
}

func TestEvaluateAcrossContextsWithNoContexts(t *testing.T) {
	_, c := pipeWithContexts(t)
	_, err := c.EvaluateAcrossContexts(ping)
	require.ErrorIs(t, err, domain.ErrNoViableContext)
}

func TestEvaluateReportsException(t *testing.T) {
	p, c := pipeWithContexts(t, 1)
	p.serve(t, func(req request) message {
		return message{Result: rawResult(map[string]any{
			"result":           map[string]any{"type": "object"},
			"exceptionDetails": map[string]any{"text": "Uncaught SyntaxError"},
		})}
	})
	_, err := c.Evaluate(1, ping)
	var ee *EvaluationError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, 1, ee.ContextID)
	require.Contains(t, ee.Reason, "Uncaught SyntaxError")
}

func TestEvaluateSendsByValueRequest(t *testing.T) {
	p, c := pipeWithContexts(t, 9)
	reqs := make(chan request, 1)
	p.serve(t, func(req request) message {
		reqs <- req
		return byValue(true)
	})
	v, err := c.Evaluate(9, domain.Expression{Name: "p", Source: "1+1", AwaitPromise: true})
	require.NoError(t, err)
	require.Equal(t, "true", string(v))

	req := <-reqs
	require.Equal(t, "Runtime.evaluate", req.Method)
	var params map[string]any
	require.NoError(t, json.Unmarshal(req.Params, &params))
	require.Equal(t, "1+1", params["expression"])
	require.Equal(t, true, params["returnByValue"])
	require.Equal(t, true, params["awaitPromise"])
	require.EqualValues(t, 9, params["contextId"])
}

func TestEvaluateAcrossContextsAbortsOnTransportClose(t *testing.T) {
	p, c := pipeWithContexts(t, 1, 2)
	go func() {
		_ = p.nextRequest(t)
		_ = p.Close()
	}()
	_, err := c.EvaluateAcrossContexts(ping)
	require.ErrorIs(t, err, domain.ErrTransportClosed)
}

func TestErrorFlag(t *testing.T) {
	cases := map[string]string{
		`{"error":"cascade not found"}`: "cascade not found",
		`{"error":true}`:                "true",
		`{"error":false}`:               "",
		`{"error":null}`:                "",
		`{"error":""}`:                  "",
		`{"ok":false}`:                  "",
		`[1,2]`:                         "",
		`"error"`:                       "",
	}
	for in, want := range cases {
		require.Equal(t, want, errorFlag(json.RawMessage(in)), in)
	}
}
