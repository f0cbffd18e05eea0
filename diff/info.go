package diff

import (
	"encoding/json"
	"sort"

	"github.com/pixelhunt/pixelhunt/raster"
)

// RemainingMap maps each marked coordinate to the index of the group that
// contains it. It is the canonical in-memory representation; serialization
// flattens it into a deterministic ordered list of entries.
type RemainingMap map[raster.Coordinate]int

// remainingEntry is the wire form of one RemainingMap entry.
type remainingEntry struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Group int `json:"group"`
}

// MarshalJSON serializes the map as a list of (coordinate, group) entries
// ordered by row then column, so equal maps always produce identical bytes.
func (m RemainingMap) MarshalJSON() ([]byte, error) {
	entries := make([]remainingEntry, 0, len(m))
	for c, group := range m {
		entries = append(entries, remainingEntry{X: c.X, Y: c.Y, Group: group})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Y != entries[j].Y {
			return entries[i].Y < entries[j].Y
		}
		return entries[i].X < entries[j].X
	})
	return json.Marshal(entries)
}

// UnmarshalJSON rehydrates the ordered entry list back into a map.
func (m *RemainingMap) UnmarshalJSON(data []byte) error {
	var entries []remainingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(RemainingMap, len(entries))
	for _, e := range entries {
		out[raster.Coordinate{X: e.X, Y: e.Y}] = e.Group
	}
	*m = out
	return nil
}

// Info is the complete result of one detection job: the clustered difference
// groups plus the coordinate lookup map. It is created once per job and owned
// by the difference cache until a game session claims it.
type Info struct {
	JobID     string       `json:"jobId"`
	Groups    []Group      `json:"groups"`
	Remaining RemainingMap `json:"remainingDifferenceGroups"`
}

// NewInfo builds an Info from a clustering result.
func NewInfo(jobID string, groups []Group) *Info {
	remaining := make(RemainingMap)
	for idx, group := range groups {
		for _, c := range group {
			remaining[c] = idx
		}
	}
	return &Info{
		JobID:     jobID,
		Groups:    groups,
		Remaining: remaining,
	}
}

// MarkedPixels returns the total number of marked pixels across all groups.
func (i *Info) MarkedPixels() int {
	total := 0
	for _, g := range i.Groups {
		total += len(g)
	}
	return total
}

// CopyRemaining returns an independent copy of the remaining map for a game
// session to own and mutate.
func (i *Info) CopyRemaining() RemainingMap {
	out := make(RemainingMap, len(i.Remaining))
	for c, group := range i.Remaining {
		out[c] = group
	}
	return out
}
