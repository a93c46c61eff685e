package unitlog

import (
	"github.com/getmockd/capturelog/pkg/requestlog"
)

// FlushRecord is the consolidated record of one unit. It is the only
// structure sinks observe and must be treated as read-only.
type FlushRecord struct {
	// UnitID identifies the unit that produced the record.
	UnitID string `json:"unitId"`

	// Name labels background units.
	Name string `json:"name,omitempty"`

	// IsWebUnit is true when the unit was an HTTP request.
	IsWebUnit bool `json:"isWebUnit"`

	// Web holds the request/response capture; nil for background units.
	Web *requestlog.UnitContext `json:"web,omitempty"`

	// Groups are the buffered entries grouped by category.
	Groups []EntryGroup `json:"groups"`

	// Properties are custom values attached during the unit.
	Properties []Property `json:"properties,omitempty"`
}

// Level returns the highest entry level, or LevelTrace for an empty record.
func (r *FlushRecord) Level() Level {
	highest := LevelTrace
	for _, g := range r.Groups {
		for _, e := range g.Entries {
			if e.Level > highest {
				highest = e.Level
			}
		}
	}
	return highest
}

// StatusCode returns the response status for web units and 0 otherwise.
func (r *FlushRecord) StatusCode() int {
	if !r.IsWebUnit {
		return 0
	}
	return r.Web.StatusCode()
}

// Entries returns all entries in timestamp order.
func (r *FlushRecord) Entries() []Entry {
	return Flatten(r.Groups)
}

// Count returns the number of entries.
func (r *FlushRecord) Count() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Entries)
	}
	return n
}
