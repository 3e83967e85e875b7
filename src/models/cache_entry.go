package models

import "time"

// MCacheKey identifies one cached historical range.
type MCacheKey struct {
	Symbol string
	Period MPeriod
}

// MCacheEntry is a loaded historical range. Payload is shared between readers and must not be mutated.
type MCacheEntry struct {
	Key       MCacheKey
	Payload   []MBar
	FetchedAt time.Time
}

// MCacheStats counts cache activity since start.
type MCacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Loads   int64 `json:"loads"`
	Errors  int64 `json:"errors"`
}
