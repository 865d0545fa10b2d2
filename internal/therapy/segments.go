// Package therapy turns glucose patterns into suggested insulin-therapy adjustments
package therapy

import (
	"sort"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

// Segment is a normalized profile segment keyed by minutes since midnight
type Segment struct {
	Start     string
	Minute    int
	Value     float64
	Synthetic bool // midnight entry cloned from the earliest segment
}

// DayPart is a named set of clock hours used to bucket readings
type DayPart struct {
	Name  string
	Label string
	Hours []int
}

// DayParts are evaluated in this order; boundary hours are shared between neighbours
var DayParts = []DayPart{
	{Name: "Overnight", Label: "overnight", Hours: []int{23, 0, 1, 2, 3, 4, 5, 6}},
	{Name: "Morning", Label: "morning", Hours: []int{6, 7, 8, 9, 10, 11}},
	{Name: "Afternoon", Label: "afternoon", Hours: []int{12, 13, 14, 15, 16, 17}},
	{Name: "Evening", Label: "evening", Hours: []int{18, 19, 20, 21, 22}},
}

// NormalizeSegments returns a sorted copy of the segments anchored at 00:00.
// The input slice is never modified.
func NormalizeSegments(in []models.TherapySegment) ([]Segment, error) {
	out, err := sortedSegments(in)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 && out[0].Minute != 0 {
		midnight := Segment{Start: models.FormatClock(0), Value: out[0].Value, Synthetic: true}
		out = append([]Segment{midnight}, out...)
	}
	return out, nil
}

// sortedSegments parses and sorts a copy without synthesizing a midnight entry
func sortedSegments(in []models.TherapySegment) ([]Segment, error) {
	out := make([]Segment, 0, len(in))
	for _, s := range in {
		minute, err := s.Minutes()
		if err != nil {
			return nil, err
		}
		out = append(out, Segment{Start: models.FormatClock(minute), Minute: minute, Value: s.Value})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Minute < out[j].Minute })
	return out, nil
}

// ActiveSegment returns the segment with the largest start at or before minute.
// segs must be normalized.
func ActiveSegment(segs []Segment, minute int) (Segment, bool) {
	if len(segs) == 0 {
		return Segment{}, false
	}
	// First index whose start is after minute
	i := sort.Search(len(segs), func(i int) bool { return segs[i].Minute > minute })
	if i == 0 {
		return segs[0], true
	}
	return segs[i-1], true
}

// TouchedSegments returns the distinct segments active during the given hours,
// in first-touch order. A segment starting part-way through an hour counts as touched.
func TouchedSegments(segs []Segment, hours []int) []Segment {
	seen := make(map[int]bool)
	var out []Segment
	touch := func(s Segment) {
		if !seen[s.Minute] {
			seen[s.Minute] = true
			out = append(out, s)
		}
	}

	for _, h := range hours {
		if s, ok := ActiveSegment(segs, h*60); ok {
			touch(s)
		}
		for _, s := range segs {
			if s.Minute > h*60 && s.Minute < (h+1)*60 {
				touch(s)
			}
		}
	}
	return out
}
