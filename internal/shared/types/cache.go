package types

import "time"

// CacheEntry represents one cached fetch result. Entries are replaced
// wholesale on refresh, never mutated in place.
type CacheEntry struct {
	SourceID  string      `json:"source_id"`
	Payload   interface{} `json:"payload"` // parsed document
	Raw       []byte      `json:"-"`       // original bytes
	Size      int64       `json:"size"`    // uncompressed raw size
	FetchedAt time.Time   `json:"fetched_at"`
	TTL       Duration    `json:"ttl"`
	Hash      string      `json:"hash,omitempty"` // content hash for change detection
}

// Expired reports whether the entry is past its TTL at the given instant.
// A zero TTL never expires.
func (e CacheEntry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.FetchedAt.Add(time.Duration(e.TTL)))
}

// CacheStats contains cache occupancy counters
type CacheStats struct {
	Entries     int   `json:"entries"`
	Bytes       int64 `json:"bytes"`
	EntryBudget int   `json:"entry_budget"`
	ByteBudget  int64 `json:"byte_budget"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
}
