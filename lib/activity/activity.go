// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package activity keeps a fixed-capacity, most-recent-first buffer of
// request outcomes plus aggregate counters. It is a diagnostic sample,
// not an audit log: the oldest entries are silently evicted, and loss
// under load is acceptable. All methods are safe for concurrent use.
package activity

import (
	"sync"
	"time"
)

// DefaultCapacity is the standard buffer size. Fifty entries is enough
// to reconstruct the recent interaction between an agent and the
// editor without growing unbounded.
const DefaultCapacity = 50

// Entry is one recorded request outcome.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	DurationMS int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// Counters aggregates outcomes over the recorder's lifetime (or since
// the last Clear). Unlike the entry buffer, counters never evict.
type Counters struct {
	Total     uint64 `json:"total"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
}

// Recorder is the thread-safe activity buffer. Entries are held most
// recent first; inserting beyond capacity evicts from the tail.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	counters Counters
}

// NewRecorder creates a recorder with the given capacity. A capacity
// of zero or less uses DefaultCapacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
	}
}

// Record inserts an entry at the head of the buffer and updates the
// aggregate counters. errorMessage is ignored for successful requests.
func (r *Recorder) Record(method string, duration time.Duration, success bool, errorMessage string) {
	entry := Entry{
		Timestamp:  time.Now(),
		Method:     method,
		DurationMS: duration.Milliseconds(),
		Success:    success,
	}
	if !success {
		entry.Error = errorMessage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) < r.capacity {
		r.entries = append(r.entries, Entry{})
	}
	copy(r.entries[1:], r.entries)
	r.entries[0] = entry

	r.counters.Total++
	if success {
		r.counters.Succeeded++
	} else {
		r.counters.Failed++
	}
}

// Snapshot returns a point-in-time copy of the buffer (most recent
// first) and the counters. The returned slice is never the live
// structure, so callers cannot observe torn state.
func (r *Recorder) Snapshot() ([]Entry, Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries, r.counters
}

// Clear resets both the buffer and the counters.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
	r.counters = Counters{}
}
