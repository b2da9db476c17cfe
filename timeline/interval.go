// interval.go
//
// Half-open state intervals in simulation hours. "Never happened" and
// "since the dawn of time" are tags on the bound, not float infinities.
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
	"math"
	"strconv"
)

type boundKind uint8

const (
	kindNever boundKind = iota // zero value, after every time
	kindDawn                   // before every time
	kindAt                     // a finite hour
)

// Bound is one end of an Interval
type Bound struct {
	hours float64
	kind  boundKind
}

var (
	Never = Bound{kind: kindNever}
	Dawn  = Bound{kind: kindDawn}
)

// At returns the bound at hour h. Infinite hours map to Dawn and Never.
func At(h float64) Bound {
	return BoundFromFloat(h)
}

// BoundFromFloat converts the serialized float form back to a Bound.
// NaN is treated as Never.
func BoundFromFloat(h float64) Bound {
	switch {
	case math.IsInf(h, -1):
		return Dawn
	case math.IsInf(h, 1), math.IsNaN(h):
		return Never
	}
	return Bound{hours: h, kind: kindAt}
}

// Hours returns the finite hour of the bound
func (b Bound) Hours() (float64, bool) {
	return b.hours, b.kind == kindAt
}

func (b Bound) Finite() bool { return b.kind == kindAt }
func (b Bound) IsNever() bool { return b.kind == kindNever }
func (b Bound) IsDawn() bool  { return b.kind == kindDawn }

// Float is the serialization form, -Inf for Dawn and +Inf for Never
func (b Bound) Float() float64 {
	switch b.kind {
	case kindDawn:
		return math.Inf(-1)
	case kindNever:
		return math.Inf(1)
	}
	return b.hours
}

func (b Bound) rank() int {
	switch b.kind {
	case kindDawn:
		return 0
	case kindAt:
		return 1
	}
	return 2
}

// Compare returns -1, 0 or 1
func (b Bound) Compare(o Bound) int {
	if rb, ro := b.rank(), o.rank(); rb != ro {
		if rb < ro {
			return -1
		}
		return 1
	}
	if b.kind != kindAt || b.hours == o.hours {
		return 0
	}
	if b.hours < o.hours {
		return -1
	}
	return 1
}

// NotAfter reports b <= t
func (b Bound) NotAfter(t float64) bool {
	switch b.kind {
	case kindDawn:
		return true
	case kindNever:
		return false
	}
	return b.hours <= t
}

// After reports b > t
func (b Bound) After(t float64) bool {
	return !b.NotAfter(t)
}

func (b Bound) String() string {
	switch b.kind {
	case kindDawn:
		return "-inf"
	case kindNever:
		return "inf"
	}
	return strconv.FormatFloat(b.hours, 'g', -1, 64)
}

// ParseBound is the inverse of String
func ParseBound(s string) (Bound, error) {
	switch s {
	case "-inf":
		return Dawn, nil
	case "inf":
		return Never, nil
	}
	h, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Never, fmt.Errorf("timeline: bad bound %q: %w", s, err)
	}
	return BoundFromFloat(h), nil
}

var ErrInverted = errors.New("timeline: interval ends before it starts")

// Interval is the half-open [Start, End) a person spent in one category
type Interval struct {
	Start Bound
	End   Bound
}

// Unentered is the interval of a category a person never entered
var Unentered = Interval{Start: Never, End: Never}

func NewInterval(start, end Bound) (Interval, error) {
	if start.Compare(end) > 0 {
		return Unentered, fmt.Errorf("%w: [%v, %v)", ErrInverted, start, end)
	}
	return Interval{Start: start, End: end}, nil
}

// IsActive reports Start <= t < End
func (iv Interval) IsActive(t float64) bool {
	return iv.Start.NotAfter(t) && iv.End.After(t)
}

// DayOfEntry buckets a finite start into its simulation day
func (iv Interval) DayOfEntry() (int, bool) {
	h, ok := iv.Start.Hours()
	if !ok {
		return 0, false
	}
	return int(math.Floor(h / 24)), true
}

func (iv Interval) String() string {
	return "[" + iv.Start.String() + ", " + iv.End.String() + ")"
}
