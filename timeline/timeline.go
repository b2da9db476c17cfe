// timeline.go
//
// One person's intervals over all ten categories for one repeat
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
package timeline

import (
	"errors"
	"fmt"
)

var ErrNotEntered = errors.New("timeline: category was never entered")

type Timeline struct {
	Entered   [NumCategories]bool     // At least one entry recorded
	Intervals [NumCategories]Interval // [started_at, ended_at)
}

// NewTimeline is a person susceptible since the dawn of time who has
// entered nothing else
func NewTimeline() Timeline {
	var tl Timeline
	for i := range tl.Intervals {
		tl.Intervals[i] = Unentered
	}
	tl.Entered[Susc] = true
	tl.Intervals[Susc] = Interval{Start: Dawn, End: Never}
	return tl
}

// Enter opens category c at hour t. Re-entering restarts the interval.
func (tl *Timeline) Enter(c Category, t float64) {
	tl.Entered[c] = true
	tl.Intervals[c] = Interval{Start: At(t), End: Never}
}

// Leave closes category c at hour t
func (tl *Timeline) Leave(c Category, t float64) error {
	if !tl.Entered[c] {
		return fmt.Errorf("%w: %v", ErrNotEntered, c)
	}
	iv, err := NewInterval(tl.Intervals[c].Start, At(t))
	if err != nil {
		return fmt.Errorf("leave %v: %w", c, err)
	}
	tl.Intervals[c] = iv
	return nil
}

func (tl *Timeline) IsActive(c Category, t float64) bool {
	return tl.Entered[c] && tl.Intervals[c].IsActive(t)
}

func (tl *Timeline) DayOfEntry(c Category) (int, bool) {
	if !tl.Entered[c] {
		return 0, false
	}
	return tl.Intervals[c].DayOfEntry()
}

// Progression returns the progression category active at t, if any
func (tl *Timeline) Progression(t float64) (Category, bool) {
	for _, c := range All {
		if c.Group() == Progression && tl.IsActive(c, t) {
			return c, true
		}
	}
	return -1, false
}

// Validate checks the sentinel convention and interval ordering
func (tl *Timeline) Validate() error {
	if !tl.Entered[Susc] || !tl.Intervals[Susc].Start.IsDawn() {
		return fmt.Errorf("timeline: susc must start at dawn, got %v", tl.Intervals[Susc])
	}
	for _, c := range All {
		iv := tl.Intervals[c]
		if iv.Start.Compare(iv.End) > 0 {
			return fmt.Errorf("%w: %v %v", ErrInverted, c, iv)
		}
		if !tl.Entered[c] && !iv.Start.IsNever() {
			return fmt.Errorf("timeline: %v not entered but starts at %v", c, iv.Start)
		}
	}
	return nil
}
