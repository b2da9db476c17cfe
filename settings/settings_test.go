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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/ensemble"
	"github.com/blgolden/epiSim/measures"
	"github.com/blgolden/epiSim/mobility"
)

func TestParamGetters(t *testing.T) {
	p, err := Decode([]byte(`{
		n: 3
		x: 0.5
		name: " office "
		on: true
		xs: [1, 2.5, "3"]
		names: ["a", " b"]
		sub: {
			k: 1
		}
		subs: [
			{
				k: 2
			}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if n, err := p.Int("n"); err != nil || n != 3 {
		t.Fatalf("n %v %v", n, err)
	}
	if _, err := p.Int("x"); !errors.Is(err, ErrType) {
		t.Fatalf("0.5 is not an integer: %v", err)
	}
	if s, _ := p.String("name"); s != "office" {
		t.Fatalf("name %q", s)
	}
	if b, _ := p.Bool("on"); !b {
		t.Fatal("on")
	}
	if xs, err := p.Floats("xs"); err != nil || len(xs) != 3 || xs[2] != 3 {
		t.Fatalf("xs %v %v", xs, err)
	}
	if names, _ := p.Strings("names"); names[1] != "b" {
		t.Fatalf("names %v", names)
	}
	sub, err := p.Section("sub")
	if err != nil {
		t.Fatal(err)
	}
	if k, _ := sub.Int("k"); k != 1 {
		t.Fatal("sub.k")
	}
	if subs, err := p.Sections("subs"); err != nil || len(subs) != 1 {
		t.Fatalf("subs %v %v", subs, err)
	}
	if _, err := p.Float("missing"); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if _, err := p.Section("n"); !errors.Is(err, ErrType) {
		t.Fatalf("expected ErrType, got %v", err)
	}
	if v, err := p.FloatOr("missing", 7); err != nil || v != 7 {
		t.Fatal("default not used")
	}
	if _, err := p.BoolOr("name", false); !errors.Is(err, ErrType) {
		t.Fatal("present keys are still type checked")
	}
}

func TestFields(t *testing.T) {
	f, x, err := FloatFields(" office , 0.2, 4 ", 3, 1)
	if err != nil || f[0] != "office" || x[0] != 0.2 || x[1] != 4 {
		t.Fatalf("%v %v %v", f, x, err)
	}
	if _, _, err := FloatFields("office, x, 4", 3, 1); !errors.Is(err, ErrType) {
		t.Fatalf("expected ErrType, got %v", err)
	}
	if _, err := Fields("a, b", 3); !errors.Is(err, ErrType) {
		t.Fatalf("expected ErrType, got %v", err)
	}
}

func TestLoadExample(t *testing.T) {
	run, err := Load(filepath.Join("testdata", "example.hjson"))
	if err != nil {
		t.Fatal(err)
	}
	c := run.Config
	if c.Repeats != 3 || c.Workers != 2 || c.Seed != 1234 || c.StoreMobility || c.OnFailure != ensemble.AbortEnsemble {
		t.Fatalf("config %+v", c)
	}
	b := run.Bundle
	if !run.HasDisease || b.MaxTime != 168 || !b.DynamicTracing {
		t.Fatalf("bundle %+v", b)
	}
	m := b.Mobility
	if m.NumPeople() != 60 || m.NumSites() != 5 || m.NumSiteTypes() != 4 || m.SiteType[3] != 2 || m.DistanceScaleKm != 1.5 {
		t.Fatalf("mobility %+v", m)
	}
	if m.VisitRate[2] != 0.03 || m.MeanDuration[3] != 0.5 {
		t.Fatalf("site type rows %v %v", m.VisitRate, m.MeanDuration)
	}
	for _, h := range m.HomeLoc {
		if mobility.DistanceKm(h, mobility.Location{Lat: 47.371, Long: 8.542}) > 1.5 {
			t.Fatalf("home %v too far from the center", h)
		}
	}
	if b.Params.BetaSite[3] != 0.6 || b.Params.BetaAsymptomaticFactor != 0.5 {
		t.Fatalf("params %+v", b.Params)
	}
	if b.Distributions.HospitalDelayHours != 72 || len(b.Distributions.FatalityByAge) != 6 {
		t.Fatalf("distributions %+v", b.Distributions)
	}
	if b.InitialCounts[disease.SeedExpo] != 2 || b.InitialCounts[disease.SeedIsymNotPosi] != 1 {
		t.Fatalf("initial counts %v", b.InitialCounts)
	}
	if b.Testing.TestsPerDay != 20 || !b.Testing.SmartTracing || b.Testing.FalseNegativeRate != 0.1 {
		t.Fatalf("testing %+v", b.Testing)
	}
	if len(b.Measures) != 2 || b.Measures[0].Kind != measures.SocialDistancingForPositive {
		t.Fatalf("measures %+v", b.Measures)
	}
	if beta := b.Measures[1].Beta; beta[1] != 0.5 || beta[0] != 0 || len(beta) != 2 {
		t.Fatalf("beta by site type index %v", beta)
	}

	again, _ := Load(filepath.Join("testdata", "example.hjson"))
	for i := range m.HomeLoc {
		if again.Bundle.Mobility.HomeLoc[i] != m.HomeLoc[i] || again.Bundle.Mobility.PeopleAge[i] != m.PeopleAge[i] {
			t.Fatal("population must be drawn from the seed")
		}
	}
}

func TestMobilityOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "town.hjson")
	err := os.WriteFile(path, []byte(`{
		siteTypes: ["office, 0.1, 4"]
		sites: ["office, 47.37, 8.54"]
		people: ["2, 47.37, 8.54", "5, 47.38, 8.55"]
	}`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	s, err := LoadMobility(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.NumPeople() != 2 || s.PeopleAge[1] != 5 || s.HomeLoc[1].Long != 8.55 || s.Mode != "synthetic" {
		t.Fatalf("%+v", s)
	}
	run, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if run.HasDisease || run.Config.Repeats != 1 {
		t.Fatalf("%+v", run)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"bad hjson":         `{ a: [ }`,
		"no sites":          `{ siteTypes: ["office, 1, 1"], people: ["0, 0, 0"] }`,
		"unknown site type": `{ siteTypes: ["office, 1, 1"], sites: ["bar, 0, 0"], people: ["0, 0, 0"] }`,
		"no people":         `{ siteTypes: ["office, 1, 1"], sites: ["office, 0, 0"] }`,
		"bad age":           `{ siteTypes: ["office, 1, 1"], sites: ["office, 0, 0"], people: ["9, 0, 0"] }`,
		"bad policy":        `{ onFailure: retry, siteTypes: ["office, 1, 1"], sites: ["office, 0, 0"], people: ["0, 0, 0"] }`,
	}
	for name, text := range cases {
		if _, err := Parse([]byte(text)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
	if _, err := Parse([]byte(`{ siteTypes: ["office, 1, 1"], sites: ["office, 0, 0"] }`)); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}

	weights := map[string]string{
		"negative weight": "[0.5, -0.1, 0.2, 0.2, 0.1, 0.1]",
		"all zero":        "[0, 0, 0, 0, 0, 0]",
		"wrong length":    "[1, 1]",
	}
	for name, w := range weights {
		text := `{
			siteTypes: ["office, 1, 1"]
			sites: ["office, 47.37, 8.54"]
			population: {
				numPeople: 10
				ageDistribution: ` + w + `
				center: [47.37, 8.54]
				radiusKm: 1
			}
		}`
		if _, err := Parse([]byte(text)); !errors.Is(err, mobility.ErrSettings) {
			t.Errorf("%s: expected mobility.ErrSettings, got %v", name, err)
		}
	}
}

func TestDiseaseErrors(t *testing.T) {
	base := `
		siteTypes: ["office, 1, 1", "social, 1, 1"]
		sites: ["office, 0, 0"]
		people: ["0, 0, 0"]
		initialCounts: {
			expo: 1
		}
		disease: {
			incubationMeanLog: 3.9
			incubationSigmaLog: 0.3
			presymptomaticHours: 36
			infectiousHours: 168
			symptomaticProb: 0.6
			fatalityByAge: [0, 0, 0, 0, 0, 0]
			hospitalizationByAge: [0, 0, 0, 0, 0, 0]
			hospitalDelayHours: 72
	`
	if _, err := Parse([]byte("{" + base + `betas: ["office, 1", "social, 2"] } }`)); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse([]byte("{" + base + `betas: ["office, 1"] } }`)); !errors.Is(err, disease.ErrParams) {
		t.Fatalf("missing beta: %v", err)
	}
	if _, err := Parse([]byte("{" + base + `betas: ["office, 1", "bar, 2"] } }`)); !errors.Is(err, disease.ErrParams) {
		t.Fatalf("unknown beta: %v", err)
	}
}
