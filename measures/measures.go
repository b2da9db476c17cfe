// measures.go
//
// Interventions that scale transmission or cancel visits during a window
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
package measures

import (
	"fmt"

	"golang.org/x/exp/rand"
)

type Kind string

const (
	BetaMultiplierByType        Kind = "betaMultiplierByType"        // Scale beta per site type
	SocialDistancingForAll      Kind = "socialDistancingForAll"      // Cancel a visit with probability P
	SocialDistancingForPositive Kind = "socialDistancingForPositive" // Positively tested people stay home
	SocialDistancingByAge       Kind = "socialDistancingByAge"       // Cancel with probability ByAge[age category]
	ComplianceForAll            Kind = "complianceForAll"            // Distancing only binds compliant people
)

var Kinds = []Kind{BetaMultiplierByType, SocialDistancingForAll, SocialDistancingForPositive, SocialDistancingByAge, ComplianceForAll}

// Measure is one intervention active on [Start, End) hours
type Measure struct {
	Kind      Kind            `json:"kind"`
	Start     float64         `json:"start"`
	End       float64         `json:"end"`
	P         float64         `json:"p,omitempty"`
	Beta      map[int]float64 `json:"beta,omitempty"`      // site type -> multiplier
	ByAge     []float64       `json:"byAge,omitempty"`     // age category -> probability
	Compliant []bool          `json:"compliant,omitempty"` // resolved per person at launch
}

func (m Measure) Active(t float64) bool {
	return t >= m.Start && t < m.End
}

func (m Measure) Validate() error {
	known := false
	for _, k := range Kinds {
		if k == m.Kind {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("measures: unknown kind %q", m.Kind)
	}
	if m.End < m.Start {
		return fmt.Errorf("measures: %s ends at %v before it starts at %v", m.Kind, m.End, m.Start)
	}
	if m.P < 0 || m.P > 1 {
		return fmt.Errorf("measures: %s probability %v outside [0,1]", m.Kind, m.P)
	}
	for _, p := range m.ByAge {
		if p < 0 || p > 1 {
			return fmt.Errorf("measures: %s age probability %v outside [0,1]", m.Kind, p)
		}
	}
	return nil
}

func (m Measure) Clone() Measure {
	c := m
	if m.Beta != nil {
		c.Beta = make(map[int]float64, len(m.Beta))
		for k, v := range m.Beta {
			c.Beta[k] = v
		}
	}
	if m.ByAge != nil {
		c.ByAge = append([]float64(nil), m.ByAge...)
	}
	if m.Compliant != nil {
		c.Compliant = append([]bool(nil), m.Compliant...)
	}
	return c
}

// List is the measure configuration of one repeat
type List []Measure

func (l List) Clone() List {
	if l == nil {
		return nil
	}
	c := make(List, len(l))
	for i, m := range l {
		c[i] = m.Clone()
	}
	return c
}

func (l List) Validate() error {
	for _, m := range l {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Resolve draws per-person compliance for every ComplianceForAll measure.
// The returned list is the realized configuration of the run.
func (l List) Resolve(nPeople int, rng *rand.Rand) List {
	r := l.Clone()
	for i := range r {
		if r[i].Kind != ComplianceForAll {
			continue
		}
		r[i].Compliant = make([]bool, nPeople)
		for p := range r[i].Compliant {
			r[i].Compliant[p] = rng.Float64() < r[i].P
		}
	}
	return r
}

// BetaFactor is the product of the active beta multipliers for a site type
func (l List) BetaFactor(siteType int, t float64) float64 {
	f := 1.0
	for _, m := range l {
		if m.Kind != BetaMultiplierByType || !m.Active(t) {
			continue
		}
		if b, ok := m.Beta[siteType]; ok {
			f *= b
		}
	}
	return f
}

// complies is true unless an active compliance measure says otherwise
func (l List) complies(person int, t float64) bool {
	for _, m := range l {
		if m.Kind == ComplianceForAll && m.Active(t) && person < len(m.Compliant) && !m.Compliant[person] {
			return false
		}
	}
	return true
}

// VisitAllowed decides whether a visit at hour t takes place. u is a
// uniform draw in [0,1) owned by the caller so the decision is reproducible.
func (l List) VisitAllowed(person, ageCategory int, positive bool, t, u float64) bool {
	if !l.complies(person, t) {
		return true
	}
	keep := 1.0
	for _, m := range l {
		if !m.Active(t) {
			continue
		}
		switch m.Kind {
		case SocialDistancingForPositive:
			if positive {
				return false
			}
		case SocialDistancingForAll:
			keep *= 1 - m.P
		case SocialDistancingByAge:
			if ageCategory >= 0 && ageCategory < len(m.ByAge) {
				keep *= 1 - m.ByAge[ageCategory]
			}
		}
	}
	return u < keep
}
