package domain

// Target is one entry of the debugger's /json/list listing.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Endpoint is the result of a successful discovery.
type Endpoint struct {
	Port         int    `json:"port"`
	WebSocketURL string `json:"url"`
	Target       Target `json:"target"`
}
