package domain

// ExecutionContext is one evaluation surface (frame, iframe, worker-like
// realm) announced by the target through Runtime.executionContextCreated.
type ExecutionContext struct {
	ID       int    `json:"id"`
	Origin   string `json:"origin,omitempty"`
	Name     string `json:"name,omitempty"`
	UniqueID string `json:"uniqueId,omitempty"`
}

// Expression is opaque script text evaluated inside the target.
// AwaitPromise must be set when the source evaluates to a promise.
type Expression struct {
	Name         string
	Source       string
	AwaitPromise bool
}
