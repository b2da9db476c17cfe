// summary.go
//
// The ensemble summary: fixed [repeat, person] tensors, each row written once
/*
Copyright 2021 Bruce Golden and Matt Spangler

Permission is hereby granted, free of charge, to any person obtaining a copy of
this software and associated documentation files (the "Software"), to deal in
the Software without restriction, including without limitation the rights to
use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
of the Software, and to permit persons to whom the Software is furnished to do
so, subject to the following conditions:
The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/
package ensemble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/measures"
	"github.com/blgolden/epiSim/mobility"
	"github.com/blgolden/epiSim/timeline"

	"github.com/google/uuid"
)

var (
	ErrRowMerged = errors.New("ensemble: repeat already merged")
	ErrDims      = errors.New("ensemble: bad dimensions")
)

// Dims fixes the shape of a summary
type Dims struct {
	Repeats        int
	People         int
	MaxTime        float64
	DynamicTracing bool
}

type Summary struct {
	ID             uuid.UUID
	MaxTime        float64
	Repeats        int
	People         int
	Sites          int
	SiteLoc        []mobility.Location
	HomeLoc        []mobility.Location
	DynamicTracing bool

	Measures []measures.List   // realized, per repeat
	Mobility []*mobility.Trace // per repeat, nil unless stored
	Seeds    []int64
	Tests    [][]disease.TestResult

	active    [timeline.NumCategories][]bool
	intervals [timeline.NumCategories][]timeline.Interval
	age       []int
	children  [3][]int
	merged    []bool
	failed    []error

	geo sync.Once
}

// NewSummary preallocates every tensor with the sentinel convention
func NewSummary(d Dims) (*Summary, error) {
	if d.Repeats <= 0 || d.People < 0 {
		return nil, fmt.Errorf("%w: %d repeats, %d people", ErrDims, d.Repeats, d.People)
	}
	n := d.Repeats * d.People
	s := &Summary{
		ID:             uuid.New(),
		MaxTime:        d.MaxTime,
		Repeats:        d.Repeats,
		People:         d.People,
		DynamicTracing: d.DynamicTracing,
		Measures:       make([]measures.List, d.Repeats),
		Mobility:       make([]*mobility.Trace, d.Repeats),
		Seeds:          make([]int64, d.Repeats),
		Tests:          make([][]disease.TestResult, d.Repeats),
		age:            make([]int, n),
		merged:         make([]bool, d.Repeats),
		failed:         make([]error, d.Repeats),
	}
	blank := timeline.NewTimeline()
	for _, c := range timeline.All {
		s.active[c] = make([]bool, n)
		s.intervals[c] = make([]timeline.Interval, n)
		for i := range s.intervals[c] {
			s.active[c][i] = blank.Entered[c]
			s.intervals[c][i] = blank.Intervals[c]
		}
	}
	for i := range s.children {
		s.children[i] = make([]int, n)
	}
	return s, nil
}

func (s *Summary) row(r int) (int, error) {
	if r < 0 || r >= s.Repeats {
		return 0, fmt.Errorf("%w: repeat %d of %d", ErrDims, r, s.Repeats)
	}
	return r * s.People, nil
}

func (s *Summary) index(r, p int) int { return r*s.People + p }

// MergeRepeat writes the record into row r. Rows are disjoint, so merges of
// different repeats may run concurrently.
func (s *Summary) MergeRepeat(r int, rec Record) error {
	base, err := s.row(r)
	if err != nil {
		return err
	}
	if s.merged[r] || s.failed[r] != nil {
		return fmt.Errorf("%w: %d", ErrRowMerged, r)
	}
	if rec.People() != s.People || len(rec.Age) != s.People {
		return fmt.Errorf("%w: repeat %d has %d people, summary has %d", ErrDims, r, rec.People(), s.People)
	}
	for i := range rec.Children {
		if rec.Children[i] != nil && len(rec.Children[i]) != s.People {
			return fmt.Errorf("%w: repeat %d children counts", ErrDims, r)
		}
	}

	for p := range rec.Timelines {
		tl := &rec.Timelines[p]
		for _, c := range timeline.All {
			s.active[c][base+p] = tl.Entered[c]
			s.intervals[c][base+p] = tl.Intervals[c]
		}
		s.age[base+p] = rec.Age[p]
	}
	for i := range rec.Children {
		copy(s.children[i][base:base+s.People], rec.Children[i])
	}
	s.Measures[r] = rec.Measures
	s.Mobility[r] = rec.Mobility
	s.Seeds[r] = rec.Seed
	s.Tests[r] = rec.Tests
	s.geo.Do(func() {
		s.Sites = rec.Sites
		s.SiteLoc = rec.SiteLoc
		s.HomeLoc = rec.HomeLoc
	})
	s.merged[r] = true
	return nil
}

// MarkFailed records that repeat r produced no result
func (s *Summary) MarkFailed(r int, seed int64, err error) error {
	if _, e := s.row(r); e != nil {
		return e
	}
	if s.merged[r] || s.failed[r] != nil {
		return fmt.Errorf("%w: %d", ErrRowMerged, r)
	}
	if err == nil {
		err = errors.New("ensemble: unknown failure")
	}
	s.Seeds[r] = seed
	s.failed[r] = err
	return nil
}

func (s *Summary) Merged(r int) bool { return s.merged[r] }

// Failed returns the error of repeat r, nil if it ran
func (s *Summary) Failed(r int) error { return s.failed[r] }

// Usable lists the merged repeats in index order
func (s *Summary) Usable() []int {
	var rs []int
	for r, ok := range s.merged {
		if ok {
			rs = append(rs, r)
		}
	}
	return rs
}

func (s *Summary) Active(c timeline.Category, r, p int) bool {
	return s.active[c][s.index(r, p)]
}

func (s *Summary) Interval(c timeline.Category, r, p int) timeline.Interval {
	return s.intervals[c][s.index(r, p)]
}

// IsActive reports whether person p of repeat r is in category c at hour t
func (s *Summary) IsActive(c timeline.Category, r, p int, t float64) bool {
	i := s.index(r, p)
	return s.active[c][i] && s.intervals[c][i].IsActive(t)
}

func (s *Summary) DayOfEntry(c timeline.Category, r, p int) (int, bool) {
	i := s.index(r, p)
	if !s.active[c][i] {
		return 0, false
	}
	return s.intervals[c][i].DayOfEntry()
}

func (s *Summary) Age(r, p int) int { return s.age[s.index(r, p)] }

// Children counts the infections person p caused while in infectious category c
func (s *Summary) Children(c timeline.Category, r, p int) int {
	i, ok := timeline.InfectiousIndex(c)
	if !ok {
		return 0
	}
	return s.children[i][s.index(r, p)]
}

// Timeline reassembles the timeline of person p in repeat r
func (s *Summary) Timeline(r, p int) timeline.Timeline {
	var tl timeline.Timeline
	i := s.index(r, p)
	for _, c := range timeline.All {
		tl.Entered[c] = s.active[c][i]
		tl.Intervals[c] = s.intervals[c][i]
	}
	return tl
}

// Record reassembles the merged row r
func (s *Summary) Record(r int) (Record, error) {
	if _, err := s.row(r); err != nil {
		return Record{}, err
	}
	if !s.merged[r] {
		return Record{}, fmt.Errorf("ensemble: repeat %d not merged", r)
	}
	rec := Record{
		Repeat:    r,
		Seed:      s.Seeds[r],
		Timelines: make([]timeline.Timeline, s.People),
		Age:       make([]int, s.People),
		Measures:  s.Measures[r],
		Sites:     s.Sites,
		SiteLoc:   s.SiteLoc,
		HomeLoc:   s.HomeLoc,
		Mobility:  s.Mobility[r],
		Tests:     s.Tests[r],
	}
	for p := 0; p < s.People; p++ {
		rec.Timelines[p] = s.Timeline(r, p)
		rec.Age[p] = s.Age(r, p)
	}
	base := r * s.People
	for i := range rec.Children {
		rec.Children[i] = append([]int(nil), s.children[i][base:base+s.People]...)
	}
	return rec, nil
}

// FromSingleRun wraps one record as a one-repeat summary
func FromSingleRun(rec Record, maxTime float64, dynamicTracing bool) (*Summary, error) {
	s, err := NewSummary(Dims{Repeats: 1, People: rec.People(), MaxTime: maxTime, DynamicTracing: dynamicTracing})
	if err != nil {
		return nil, err
	}
	if err := s.MergeRepeat(0, rec); err != nil {
		return nil, err
	}
	return s, nil
}
