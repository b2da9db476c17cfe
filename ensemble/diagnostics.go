// diagnostics.go
//
// Per-repeat case curves and ensemble statistics
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
	"math"

	"github.com/blgolden/epiSim/timeline"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// NewCases buckets the positive tests of repeat r by day. Tests on day
// >= days or before day 0 are dropped.
func (s *Summary) NewCases(r, days int) []float64 {
	cases := make([]float64, days)
	for p := 0; p < s.People; p++ {
		d, ok := s.DayOfEntry(timeline.Posi, r, p)
		if ok && d >= 0 && d < days {
			cases[d]++
		}
	}
	return cases
}

// CumulativeCases is the running total of NewCases
func (s *Summary) CumulativeCases(r, days int) []float64 {
	cases := s.NewCases(r, days)
	floats.CumSum(cases, cases)
	return cases
}

// CaseCurves has one row of cumulative cases per repeat. Failed repeats are zero rows.
func (s *Summary) CaseCurves(days int) *mat.Dense {
	m := mat.NewDense(s.Repeats, days, nil)
	for _, r := range s.Usable() {
		m.SetRow(r, s.CumulativeCases(r, days))
	}
	return m
}

// TotalInfected counts the people of repeat r who left susc
func (s *Summary) TotalInfected(r int) int {
	n := 0
	for p := 0; p < s.People; p++ {
		if s.Interval(timeline.Susc, r, p).End.Finite() {
			n++
		}
	}
	return n
}

// Count is the number of people who ever entered c in repeat r
func (s *Summary) Count(c timeline.Category, r int) int {
	n := 0
	for p := 0; p < s.People; p++ {
		if s.Active(c, r, p) {
			n++
		}
	}
	return n
}

// ReproductionNumber is the mean number of children per infected person
func (s *Summary) ReproductionNumber(r int) float64 {
	infected, children := 0, 0
	for p := 0; p < s.People; p++ {
		if !s.Interval(timeline.Susc, r, p).End.Finite() {
			continue
		}
		infected++
		for _, c := range timeline.Infectious {
			children += s.Children(c, r, p)
		}
	}
	if infected == 0 {
		return math.NaN()
	}
	return float64(children) / float64(infected)
}

// Stat is the mean and standard deviation of one diagnostic over the usable repeats
type Stat struct {
	Name   string
	N      int
	Mean   float64
	StdDev float64
}

// Stats summarizes infections, positives, deaths and R over the usable repeats
func (s *Summary) Stats() []Stat {
	rs := s.Usable()
	diag := []struct {
		name string
		f    func(r int) float64
	}{
		{"infected", func(r int) float64 { return float64(s.TotalInfected(r)) }},
		{"positive", func(r int) float64 { return float64(s.Count(timeline.Posi, r)) }},
		{"hospitalized", func(r int) float64 { return float64(s.Count(timeline.Hosp, r)) }},
		{"dead", func(r int) float64 { return float64(s.Count(timeline.Dead, r)) }},
		{"R", s.ReproductionNumber},
	}
	out := make([]Stat, 0, len(diag))
	for _, d := range diag {
		var xs []float64
		for _, r := range rs {
			if x := d.f(r); !math.IsNaN(x) {
				xs = append(xs, x)
			}
		}
		st := Stat{Name: d.name, N: len(xs), Mean: math.NaN()}
		switch {
		case len(xs) == 1:
			st.Mean = xs[0]
		case len(xs) > 1:
			st.Mean, st.StdDev = stat.MeanStdDev(xs, nil)
		}
		out = append(out, st)
	}
	return out
}
