package domain

import "time"

type ScrollInfo struct {
	ScrollTop     float64 `json:"scrollTop"`
	ScrollHeight  float64 `json:"scrollHeight"`
	ClientHeight  float64 `json:"clientHeight"`
	ScrollPercent float64 `json:"scrollPercent"`
}

type SnapshotStats struct {
	Nodes    int `json:"nodes"`
	HTMLSize int `json:"htmlSize"`
	CSSSize  int `json:"cssSize"`
}

// Snapshot is one captured rendition of the visible chat surface.
// A snapshot is never modified after capture; the next capture replaces it.
type Snapshot struct {
	HTML            string        `json:"html"`
	CSS             string        `json:"css"`
	BackgroundColor string        `json:"backgroundColor"`
	Color           string        `json:"color"`
	FontFamily      string        `json:"fontFamily"`
	ScrollInfo      ScrollInfo    `json:"scrollInfo"`
	Stats           SnapshotStats `json:"stats"`
	Hash            string        `json:"hash"`
	CapturedAt      time.Time     `json:"capturedAt"`
}
