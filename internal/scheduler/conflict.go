// Package scheduler detects overlapping occurrences between events.
package scheduler

import (
	"sort"
	"time"
)

// Slot is one occurrence considered for overlap detection.
type Slot struct {
	RecordID string
	Name     string
	Sequence int
	Start    time.Time
	End      time.Time
}

func (s Slot) overlaps(other Slot) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// Overlap pairs a candidate slot with an existing slot it intersects.
type Overlap struct {
	Candidate Slot
	With      Slot
}

// DetectOverlaps reports every pair where a candidate slot intersects an
// existing slot of a different record. Touching slots do not overlap.
func DetectOverlaps(existing []Slot, candidate []Slot) []Overlap {
	if len(existing) == 0 || len(candidate) == 0 {
		return nil
	}

	sorted := make([]Slot, len(existing))
	copy(sorted, existing)
	sortSlots(sorted)

	var overlaps []Overlap
	for _, c := range candidate {
		if !c.Start.Before(c.End) {
			continue
		}
		for _, e := range sorted {
			if !e.Start.Before(c.End) {
				break
			}
			if e.RecordID == c.RecordID {
				continue
			}
			if c.overlaps(e) {
				overlaps = append(overlaps, Overlap{Candidate: c, With: e})
			}
		}
	}

	sort.SliceStable(overlaps, func(i, j int) bool {
		a, b := overlaps[i], overlaps[j]
		if !a.Candidate.Start.Equal(b.Candidate.Start) {
			return a.Candidate.Start.Before(b.Candidate.Start)
		}
		if !a.With.Start.Equal(b.With.Start) {
			return a.With.Start.Before(b.With.Start)
		}
		return a.With.RecordID < b.With.RecordID
	})
	return overlaps
}

func sortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].RecordID < slots[j].RecordID
		}
		return slots[i].Start.Before(slots[j].Start)
	})
}
