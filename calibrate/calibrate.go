// calibrate.go
//
// Pick the repeat whose positive tests best match observed cases and read
// off its population state as seed counts for a follow-on run
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
package calibrate

import (
	"errors"
	"fmt"
	"math"

	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/ensemble"
	"github.com/blgolden/epiSim/timeline"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrEmptyEnsemble    = errors.New("calibrate: no usable repeats")
	ErrNoReferenceCases = errors.New("calibrate: empty reference case series")
	ErrNegativeCases    = errors.New("calibrate: negative reference case count")
)

type Options struct {
	// CumulativeReference sums the reference series before comparing.
	// By default it is compared as given with the cumulative simulated curve.
	CumulativeReference bool
}

// SeedCounts is the population state of one repeat at a reference hour
type SeedCounts struct {
	Expo        int
	Iasy        int
	Ipre        int
	IsymPosi    int
	IsymNotPosi int
	ResiPosi    int // resolved (recovered or dead) and tested positive
	ResiNotPosi int
}

// Map keys the counts the way disease.InitialCounts expects them
func (c SeedCounts) Map() disease.InitialCounts {
	return disease.InitialCounts{
		disease.SeedExpo:        c.Expo,
		disease.SeedIasy:        c.Iasy,
		disease.SeedIpre:        c.Ipre,
		disease.SeedIsymPosi:    c.IsymPosi,
		disease.SeedIsymNotPosi: c.IsymNotPosi,
		disease.SeedResiPosi:    c.ResiPosi,
		disease.SeedResiNotPosi: c.ResiNotPosi,
	}
}

func (c SeedCounts) Total() int {
	return c.Expo + c.Iasy + c.Ipre + c.IsymPosi + c.IsymNotPosi + c.ResiPosi + c.ResiNotPosi
}

type Result struct {
	Best   int
	Loss   float64
	Losses []float64 // per repeat, NaN for failed repeats
	Seeds  SeedCounts
	Time   float64 // reference hour of Seeds
}

// Loss is the sum of squared differences between repeat r's cumulative
// positives and ref, over len(ref) days
func Loss(s *ensemble.Summary, r int, ref []float64) float64 {
	cases := s.CumulativeCases(r, len(ref))
	floats.Sub(cases, ref)
	return floats.Dot(cases, cases)
}

// ExtractSeeds finds the best fitting repeat and snapshots it at hour t
func ExtractSeeds(s *ensemble.Summary, t float64, realCases []int, opt Options) (Result, error) {
	if s == nil || s.Repeats == 0 {
		return Result{}, ErrEmptyEnsemble
	}
	if len(realCases) == 0 {
		return Result{}, ErrNoReferenceCases
	}
	ref := make([]float64, len(realCases))
	for d, n := range realCases {
		if n < 0 {
			return Result{}, fmt.Errorf("%w: day %d has %d", ErrNegativeCases, d, n)
		}
		ref[d] = float64(n)
	}
	if opt.CumulativeReference {
		floats.CumSum(ref, ref)
	}

	res := Result{Best: -1, Losses: make([]float64, s.Repeats), Time: t}
	for r := range res.Losses {
		if !s.Merged(r) {
			res.Losses[r] = math.NaN()
			continue
		}
		l := Loss(s, r, ref)
		res.Losses[r] = l
		if res.Best < 0 || l < res.Loss {
			res.Best, res.Loss = r, l
		}
	}
	if res.Best < 0 {
		return Result{}, ErrEmptyEnsemble
	}
	res.Seeds = Snapshot(s, res.Best, t)
	return res, nil
}

// Snapshot counts the people of repeat r in each seed state at hour t
func Snapshot(s *ensemble.Summary, r int, t float64) SeedCounts {
	var c SeedCounts
	for p := 0; p < s.People; p++ {
		active := func(cat timeline.Category) bool { return s.IsActive(cat, r, p, t) }
		posi := active(timeline.Posi)
		// every count is taken on its own; resi also holds the dead
		if active(timeline.Expo) {
			c.Expo++
		}
		if active(timeline.Iasy) {
			c.Iasy++
		}
		if active(timeline.Ipre) {
			c.Ipre++
		}
		if isym := active(timeline.Isym); isym && posi {
			c.IsymPosi++
		} else if isym {
			c.IsymNotPosi++
		}
		if resi := active(timeline.Resi) || active(timeline.Dead); resi && posi {
			c.ResiPosi++
		} else if resi {
			c.ResiNotPosi++
		}
	}
	return c
}
