package models

import (
	"sort"
	"time"
)

// Timestamp is a server-assigned write time. Ordering only looks at Seconds.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

// NewTimestamp converts t into a Timestamp.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}
}

// Time returns the timestamp as UTC time. A nil timestamp is the zero time.
func (t *Timestamp) Time() time.Time {
	if t == nil {
		return time.Time{}
	}
	return time.Unix(t.Seconds, int64(t.Nanoseconds)).UTC()
}

// SecondsOf treats a missing timestamp as epoch zero.
func SecondsOf(t *Timestamp) int64 {
	if t == nil {
		return 0
	}
	return t.Seconds
}

// SortNewestFirst orders items by creation seconds, most recent first. Items without a
// timestamp sort last; ties keep their incoming order.
func SortNewestFirst[T any](items []T, created func(T) *Timestamp) {
	sort.SliceStable(items, func(i, j int) bool {
		return SecondsOf(created(items[i])) > SecondsOf(created(items[j]))
	})
}
