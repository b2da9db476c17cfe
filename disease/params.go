// params.go
//
// Course-of-disease distributions, transmission parameters, testing policy
// and the initial seed counts of a run
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
package disease

import (
	"errors"
	"fmt"

	"github.com/blgolden/epiSim/mobility"
)

var ErrParams = errors.New("disease: bad parameters")

// Distributions of the course of disease. All durations in hours.
type Distributions struct {
	IncubationMeanLog    float64   // Lognormal mu of exposure -> infectious
	IncubationSigmaLog   float64   // Lognormal sigma of exposure -> infectious
	PresymptomaticHours  float64   // Mean ipre -> isym
	InfectiousHours      float64   // Mean iasy or isym -> resolution
	SymptomaticProb      float64   // Share of infections that become symptomatic
	FatalityByAge        []float64 // Per age category, among symptomatic
	HospitalizationByAge []float64 // Per age category, among symptomatic
	HospitalDelayHours   float64   // Mean isym -> hosp
}

func (d Distributions) Validate() error {
	if d.IncubationSigmaLog <= 0 || d.PresymptomaticHours <= 0 || d.InfectiousHours <= 0 || d.HospitalDelayHours <= 0 {
		return fmt.Errorf("%w: durations and incubation sigma must be positive", ErrParams)
	}
	if d.SymptomaticProb < 0 || d.SymptomaticProb > 1 {
		return fmt.Errorf("%w: symptomatic probability %v", ErrParams, d.SymptomaticProb)
	}
	for _, ps := range [][]float64{d.FatalityByAge, d.HospitalizationByAge} {
		if len(ps) != len(mobility.AgeRanges) {
			return fmt.Errorf("%w: need one probability per age category (%d)", ErrParams, len(mobility.AgeRanges))
		}
		for _, p := range ps {
			if p < 0 || p > 1 {
				return fmt.Errorf("%w: probability %v", ErrParams, p)
			}
		}
	}
	return nil
}

func (d Distributions) Clone() Distributions {
	c := d
	c.FatalityByAge = append([]float64(nil), d.FatalityByAge...)
	c.HospitalizationByAge = append([]float64(nil), d.HospitalizationByAge...)
	return c
}

// Params of transmission
type Params struct {
	BetaSite               []float64 // Infection rate per hour of contact, per site type
	BetaAsymptomaticFactor float64   // Multiplier for contacts with an asymptomatic infector
}

func (p Params) Validate(numSiteTypes int) error {
	if len(p.BetaSite) != numSiteTypes {
		return fmt.Errorf("%w: %d betas for %d site types", ErrParams, len(p.BetaSite), numSiteTypes)
	}
	for _, b := range p.BetaSite {
		if b < 0 {
			return fmt.Errorf("%w: negative beta %v", ErrParams, b)
		}
	}
	if p.BetaAsymptomaticFactor < 0 {
		return fmt.Errorf("%w: negative asymptomatic factor", ErrParams)
	}
	return nil
}

func (p Params) Clone() Params {
	c := p
	c.BetaSite = append([]float64(nil), p.BetaSite...)
	return c
}

// Testing policy. Symptomatic people are tested after a delay.
type Testing struct {
	Enabled            bool    // No tests at all when false
	StartHours         float64 // No tests before this hour
	DelayHours         float64 // Symptom onset or trace -> result
	TestsPerDay        int     // Capacity, 0 is unlimited
	FalseNegativeRate  float64 // Chance an infected person tests negative
	SmartTracing       bool    // Test the recent contacts of positives
	TracingWindowHours float64 // How far back contacts are traced
}

func (t Testing) Validate() error {
	if t.DelayHours < 0 || t.TestsPerDay < 0 || t.TracingWindowHours < 0 {
		return fmt.Errorf("%w: testing delay, capacity and tracing window must not be negative", ErrParams)
	}
	if t.FalseNegativeRate < 0 || t.FalseNegativeRate > 1 {
		return fmt.Errorf("%w: false negative rate %v", ErrParams, t.FalseNegativeRate)
	}
	return nil
}

// Keys of InitialCounts. They match the seed counts calibration produces.
const (
	SeedExpo        = "expo"
	SeedIasy        = "iasy"
	SeedIpre        = "ipre"
	SeedIsymPosi    = "isym_posi"
	SeedIsymNotPosi = "isym_notposi"
	SeedResiPosi    = "resi_posi"
	SeedResiNotPosi = "resi_notposi"
)

var SeedKeys = []string{SeedExpo, SeedIasy, SeedIpre, SeedIsymPosi, SeedIsymNotPosi, SeedResiPosi, SeedResiNotPosi}

// InitialCounts is the number of people in each seeded state at hour 0
type InitialCounts map[string]int

func (c InitialCounts) Validate(nPeople int) error {
	total := 0
	for k, n := range c {
		known := false
		for _, s := range SeedKeys {
			if s == k {
				known = true
			}
		}
		if !known {
			return fmt.Errorf("%w: unknown initial count %q", ErrParams, k)
		}
		if n < 0 {
			return fmt.Errorf("%w: negative initial count %s=%d", ErrParams, k, n)
		}
		total += n
	}
	if total > nPeople {
		return fmt.Errorf("%w: %d seeds for %d people", ErrParams, total, nPeople)
	}
	return nil
}

func (c InitialCounts) Clone() InitialCounts {
	if c == nil {
		return nil
	}
	o := make(InitialCounts, len(c))
	for k, v := range c {
		o[k] = v
	}
	return o
}

// TestResult is one entry of the test log
type TestResult struct {
	Person   int
	Time     float64
	Positive bool
}

// Code is the integer result code of the export format
func (r TestResult) Code() int {
	if r.Positive {
		return 1
	}
	return 0
}

// Entries converts a test log to the export format
func Entries(log []TestResult) []mobility.TestEntry {
	out := make([]mobility.TestEntry, len(log))
	for i, r := range log {
		out[i] = mobility.TestEntry{Person: r.Person, Time: r.Time, Result: r.Code()}
	}
	return out
}
