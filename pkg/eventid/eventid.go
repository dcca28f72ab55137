// Package eventid defines Mofka's EventID: a dense, monotonic,
// per-partition event identifier (spec.md §3).
package eventid

import "math"

// EventID is a 64-bit unsigned identifier, unique and densely
// assigned within one partition in the order of ingestion. EventIDs
// are not comparable across partitions.
type EventID uint64

// NoMoreEvents is the sentinel EventID signalling partition
// completion: no further events will ever be ingested on this
// partition.
const NoMoreEvents EventID = math.MaxUint64
