package domain

// ClickTarget selects the element a remote click lands on: the Index-th
// match of Selector, optionally narrowed to elements containing TextContent.
type ClickTarget struct {
	Selector    string `json:"selector"`
	Index       int    `json:"index"`
	TextContent string `json:"textContent"`
}

// ScrollTarget positions the chat scroller. ScrollPercent (0..1) wins over
// ScrollTop when both are set.
type ScrollTarget struct {
	ScrollTop     *float64 `json:"scrollTop,omitempty"`
	ScrollPercent *float64 `json:"scrollPercent,omitempty"`
}
