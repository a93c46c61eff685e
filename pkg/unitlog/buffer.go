package unitlog

import (
	"sort"
	"sync"
)

// EntryGroup is the ordered list of entries sharing one category.
type EntryGroup struct {
	Category string  `json:"category"`
	Entries  []Entry `json:"entries"`
}

// Buffer accumulates entries for one unit. It is append-only; groups
// keep first-seen category order and insertion order within a category.
type Buffer struct {
	mu     sync.Mutex
	groups []EntryGroup
	index  map[string]int
	count  int
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{index: make(map[string]int)}
}

// Append adds an entry. It never blocks on I/O.
func (b *Buffer) Append(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[e.Category]
	if !ok {
		i = len(b.groups)
		b.index[e.Category] = i
		b.groups = append(b.groups, EntryGroup{Category: e.Category})
	}
	b.groups[i].Entries = append(b.groups[i].Entries, e)
	b.count++
}

// Len returns the number of buffered entries across all categories.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Snapshot returns a copy of the grouped entries. Every Append that
// happened before the call is included.
func (b *Buffer) Snapshot() []EntryGroup {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]EntryGroup, len(b.groups))
	for i, g := range b.groups {
		entries := make([]Entry, len(g.Entries))
		copy(entries, g.Entries)
		out[i] = EntryGroup{Category: g.Category, Entries: entries}
	}
	return out
}

// Flatten merges groups into a single timestamp-ordered slice. Entries
// with equal timestamps keep group order, and an entry without a category
// takes its group's.
func Flatten(groups []EntryGroup) []Entry {
	n := 0
	for _, g := range groups {
		n += len(g.Entries)
	}
	out := make([]Entry, 0, n)
	for _, g := range groups {
		for _, e := range g.Entries {
			if e.Category == "" {
				e.Category = g.Category
			}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
