// load.go
//
// Build the ensemble configuration and parameter bundle from one hjson file
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
package settings

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/ensemble"
	"github.com/blgolden/epiSim/measures"
	"github.com/blgolden/epiSim/mobility"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Run is everything a settings file describes
type Run struct {
	Comment    string
	Config     ensemble.Config
	Bundle     ensemble.Bundle
	HasDisease bool // false for a mobility-only file
}

func Load(path string) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("settings: %w", err)
	}
	run, err := Parse(data)
	if err != nil {
		return Run{}, fmt.Errorf("%s: %w", path, err)
	}
	return run, nil
}

// Parse reads a settings bundle. A file without a mobility: section is read
// as the mobility section itself.
func Parse(data []byte) (Run, error) {
	p, err := Decode(data)
	if err != nil {
		return Run{}, err
	}
	var run Run
	if run.Comment, err = p.StringOr("Comment", ""); err != nil {
		return run, err
	}
	if err := loadConfig(p, &run); err != nil {
		return run, err
	}

	mob := p
	if p.Has("mobility") {
		if mob, err = p.Section("mobility"); err != nil {
			return run, err
		}
	}
	if run.Bundle.Mobility, err = loadMobility(mob, run.Config.Seed); err != nil {
		return run, err
	}

	if !p.Has("disease") {
		return run, nil
	}
	run.HasDisease = true
	b := &run.Bundle
	d, err := p.Section("disease")
	if err != nil {
		return run, err
	}
	if b.Distributions, err = loadDistributions(d); err != nil {
		return run, err
	}
	if b.Params, err = loadParams(d, b.Mobility.SiteTypes); err != nil {
		return run, err
	}
	if b.InitialCounts, err = loadInitialCounts(p); err != nil {
		return run, err
	}
	if p.Has("testing") {
		t, err := p.Section("testing")
		if err != nil {
			return run, err
		}
		if b.Testing, err = loadTesting(t); err != nil {
			return run, err
		}
	}
	if p.Has("measures") {
		if b.Measures, err = loadMeasures(p, b.Mobility.SiteTypes); err != nil {
			return run, err
		}
	}
	if err := b.Distributions.Validate(); err != nil {
		return run, err
	}
	if err := b.Params.Validate(len(b.Mobility.SiteTypes)); err != nil {
		return run, err
	}
	if err := b.Testing.Validate(); err != nil {
		return run, err
	}
	if err := b.InitialCounts.Validate(b.Mobility.NumPeople()); err != nil {
		return run, err
	}
	return run, b.Measures.Validate()
}

// LoadMobility reads only the mobility part of a settings file
func LoadMobility(path string) (mobility.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mobility.Settings{}, fmt.Errorf("settings: %w", err)
	}
	p, err := Decode(data)
	if err != nil {
		return mobility.Settings{}, err
	}
	seed, err := p.IntOr("seed", 1234)
	if err != nil {
		return mobility.Settings{}, err
	}
	if p.Has("mobility") {
		if p, err = p.Section("mobility"); err != nil {
			return mobility.Settings{}, err
		}
	}
	return loadMobility(p, int64(seed))
}

func loadConfig(p Param, run *Run) error {
	var err error
	c := &run.Config
	if c.Repeats, err = p.IntOr("repeats", 1); err != nil {
		return err
	}
	if c.Workers, err = p.IntOr("cpus", 0); err != nil {
		return err
	}
	seed, err := p.IntOr("seed", 1234)
	if err != nil {
		return err
	}
	c.Seed = int64(seed)
	if c.StoreMobility, err = p.BoolOr("storeMobility", false); err != nil {
		return err
	}
	policy, err := p.StringOr("onFailure", "abort")
	if err != nil {
		return err
	}
	if c.OnFailure, err = ensemble.ParseFailurePolicy(policy); err != nil {
		return err
	}
	if run.Bundle.MaxTime, err = p.FloatOr("maxTime", 168); err != nil {
		return err
	}
	if run.Bundle.DynamicTracing, err = p.BoolOr("dynamicTracing", false); err != nil {
		return err
	}
	return nil
}

// loadMobility reads
//
//	siteTypes: ["office, visits per hour, mean hours", ...]
//	sites:     ["office, lat, long", ...]
//	people:    ["age category, lat, long", ...]   or
//	population: {numPeople, ageDistribution, center: [lat, long], radiusKm}
func loadMobility(p Param, seed int64) (mobility.Settings, error) {
	var s mobility.Settings
	var err error
	if s.Mode, err = p.StringOr("mode", "synthetic"); err != nil {
		return s, err
	}
	if s.DistanceScaleKm, err = p.FloatOr("distanceScaleKm", 2); err != nil {
		return s, err
	}

	types, err := p.Strings("siteTypes")
	if err != nil {
		return s, err
	}
	index := make(map[string]int, len(types))
	for _, row := range types {
		f, x, err := FloatFields(row, 3, 1)
		if err != nil {
			return s, err
		}
		index[f[0]] = len(s.SiteTypes)
		s.SiteTypes = append(s.SiteTypes, f[0])
		s.VisitRate = append(s.VisitRate, x[0])
		s.MeanDuration = append(s.MeanDuration, x[1])
	}

	sites, err := p.Strings("sites")
	if err != nil {
		return s, err
	}
	for _, row := range sites {
		f, x, err := FloatFields(row, 3, 1)
		if err != nil {
			return s, err
		}
		k, ok := index[f[0]]
		if !ok {
			return s, fmt.Errorf("%w: site type %q not in siteTypes", mobility.ErrSettings, f[0])
		}
		s.SiteType = append(s.SiteType, k)
		s.SiteLoc = append(s.SiteLoc, mobility.Location{Lat: x[0], Long: x[1]})
	}

	switch {
	case p.Has("people"):
		people, err := p.Strings("people")
		if err != nil {
			return s, err
		}
		for _, row := range people {
			f, x, err := FloatFields(row, 3, 1)
			if err != nil {
				return s, err
			}
			age, err := strconv.Atoi(f[0])
			if err != nil {
				return s, fmt.Errorf("%w: age category %q", ErrType, f[0])
			}
			s.PeopleAge = append(s.PeopleAge, age)
			s.HomeLoc = append(s.HomeLoc, mobility.Location{Lat: x[0], Long: x[1]})
		}
	case p.Has("population"):
		pop, err := p.Section("population")
		if err != nil {
			return s, err
		}
		if err := populate(&s, pop, seed); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("%w: 'people:' or 'population:'", ErrMissingKey)
	}
	return s, s.Validate()
}

// populate draws age categories and homes scattered around a center
func populate(s *mobility.Settings, pop Param, seed int64) error {
	n, err := pop.Int("numPeople")
	if err != nil {
		return err
	}
	dist, err := pop.Floats("ageDistribution")
	if err != nil {
		return err
	}
	if len(dist) != len(mobility.AgeRanges) {
		return fmt.Errorf("%w: ageDistribution needs %d entries", mobility.ErrSettings, len(mobility.AgeRanges))
	}
	sum := 0.0
	for _, w := range dist {
		if !(w >= 0) || math.IsInf(w, 1) {
			return fmt.Errorf("%w: ageDistribution weight %g", mobility.ErrSettings, w)
		}
		sum += w
	}
	if !(sum > 0) {
		return fmt.Errorf("%w: ageDistribution sums to %g", mobility.ErrSettings, sum)
	}
	center, err := pop.Floats("center")
	if err != nil {
		return err
	}
	if len(center) != 2 {
		return fmt.Errorf("%w: center is [lat, long]", mobility.ErrSettings)
	}
	radius, err := pop.FloatOr("radiusKm", 2)
	if err != nil {
		return err
	}
	if !(radius > 0) {
		return fmt.Errorf("%w: radiusKm must be positive", mobility.ErrSettings)
	}

	src := rand.NewSource(uint64(seed))
	rng := rand.New(src)
	ages := distuv.NewCategorical(dist, src)
	const kmPerDegree = 111.32
	dLat := radius / kmPerDegree
	dLong := dLat / math.Cos(center[0]*math.Pi/180)
	c := mobility.Location{Lat: center[0], Long: center[1]}
	for i := 0; i < n; i++ {
		s.PeopleAge = append(s.PeopleAge, int(ages.Rand()))
		// uniform in the bounding box, kept if inside the disc
		for {
			home := mobility.Location{
				Lat:  c.Lat + (2*rng.Float64()-1)*dLat,
				Long: c.Long + (2*rng.Float64()-1)*dLong,
			}
			if mobility.DistanceKm(home, c) <= radius {
				s.HomeLoc = append(s.HomeLoc, home)
				break
			}
		}
	}
	return nil
}

func loadDistributions(d Param) (disease.Distributions, error) {
	var dist disease.Distributions
	var err error
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"incubationMeanLog", &dist.IncubationMeanLog},
		{"incubationSigmaLog", &dist.IncubationSigmaLog},
		{"presymptomaticHours", &dist.PresymptomaticHours},
		{"infectiousHours", &dist.InfectiousHours},
		{"symptomaticProb", &dist.SymptomaticProb},
		{"hospitalDelayHours", &dist.HospitalDelayHours},
	} {
		if *f.dst, err = d.Float(f.key); err != nil {
			return dist, err
		}
	}
	if dist.FatalityByAge, err = d.Floats("fatalityByAge"); err != nil {
		return dist, err
	}
	if dist.HospitalizationByAge, err = d.Floats("hospitalizationByAge"); err != nil {
		return dist, err
	}
	return dist, nil
}

// loadParams reads betas as "site type, beta" rows in any order
func loadParams(d Param, siteTypes []string) (disease.Params, error) {
	var params disease.Params
	var err error
	if params.BetaAsymptomaticFactor, err = d.FloatOr("betaAsymptomaticFactor", 1); err != nil {
		return params, err
	}
	rows, err := d.Strings("betas")
	if err != nil {
		return params, err
	}
	params.BetaSite = make([]float64, len(siteTypes))
	seen := make([]bool, len(siteTypes))
	for _, row := range rows {
		f, x, err := FloatFields(row, 2, 1)
		if err != nil {
			return params, err
		}
		k := indexOf(siteTypes, f[0])
		if k < 0 {
			return params, fmt.Errorf("%w: beta for unknown site type %q", disease.ErrParams, f[0])
		}
		params.BetaSite[k], seen[k] = x[0], true
	}
	for k, ok := range seen {
		if !ok {
			return params, fmt.Errorf("%w: no beta for site type %q", disease.ErrParams, siteTypes[k])
		}
	}
	return params, nil
}

func loadInitialCounts(p Param) (disease.InitialCounts, error) {
	ic, err := p.Section("initialCounts")
	if err != nil {
		return nil, err
	}
	counts := make(disease.InitialCounts, len(ic))
	for k := range ic {
		if counts[k], err = ic.Int(k); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

func loadTesting(t Param) (disease.Testing, error) {
	var tp disease.Testing
	var err error
	if tp.Enabled, err = t.BoolOr("enabled", true); err != nil {
		return tp, err
	}
	if tp.StartHours, err = t.FloatOr("startHours", 0); err != nil {
		return tp, err
	}
	if tp.DelayHours, err = t.FloatOr("delayHours", 24); err != nil {
		return tp, err
	}
	if tp.TestsPerDay, err = t.IntOr("testsPerDay", 0); err != nil {
		return tp, err
	}
	if tp.FalseNegativeRate, err = t.FloatOr("falseNegativeRate", 0); err != nil {
		return tp, err
	}
	if tp.SmartTracing, err = t.BoolOr("smartTracing", false); err != nil {
		return tp, err
	}
	if tp.TracingWindowHours, err = t.FloatOr("tracingWindowHours", 48); err != nil {
		return tp, err
	}
	return tp, nil
}

func loadMeasures(p Param, siteTypes []string) (measures.List, error) {
	ms, err := p.Sections("measures")
	if err != nil {
		return nil, err
	}
	var l measures.List
	for _, mp := range ms {
		var m measures.Measure
		kind, err := mp.String("kind")
		if err != nil {
			return nil, err
		}
		m.Kind = measures.Kind(kind)
		if m.Start, err = mp.FloatOr("start", 0); err != nil {
			return nil, err
		}
		if m.End, err = mp.FloatOr("end", math.MaxFloat64); err != nil {
			return nil, err
		}
		if m.P, err = mp.FloatOr("p", 0); err != nil {
			return nil, err
		}
		if mp.Has("byAge") {
			if m.ByAge, err = mp.Floats("byAge"); err != nil {
				return nil, err
			}
		}
		if mp.Has("beta") {
			beta, err := mp.Section("beta")
			if err != nil {
				return nil, err
			}
			m.Beta = make(map[int]float64, len(beta))
			for name := range beta {
				k := indexOf(siteTypes, name)
				if k < 0 {
					return nil, fmt.Errorf("settings: measure %s names unknown site type %q", kind, name)
				}
				if m.Beta[k], err = beta.Float(name); err != nil {
					return nil, err
				}
			}
		}
		l = append(l, m)
	}
	return l, nil
}

func indexOf(xs []string, x string) int {
	for i, s := range xs {
		if s == x {
			return i
		}
	}
	return -1
}
