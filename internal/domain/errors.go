package domain

import "errors"

// Error taxonomy shared by the CDP adapter, the capture loop and the HTTP layer.
// Concrete error values carry more detail and match these via errors.Is.
var (
	// ErrTransportClosed is fatal to a connection and triggers a reconnect.
	ErrTransportClosed = errors.New("cdp: transport closed")
	// ErrTimeout means a single call got no response before its deadline.
	ErrTimeout = errors.New("cdp: call timed out")
	// ErrRemote means the target answered the call with an error payload.
	ErrRemote = errors.New("cdp: remote error")
	// ErrNoViableContext means no execution context produced a usable value.
	ErrNoViableContext = errors.New("cdp: no viable execution context")
	// ErrDiscoveryFailed means no candidate port exposed a qualifying target.
	ErrDiscoveryFailed = errors.New("cdp: discovery failed")
	// ErrNotConnected is returned by actions issued while the session has no live connection.
	ErrNotConnected = errors.New("cdp: not connected")
)
