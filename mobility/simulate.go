// simulate.go
//
// Reference mobility generator: Poisson visit arrivals per site type with a
// distance-decaying choice of site around each person's home
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
package mobility

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const earthRadiusKm = 6371.0088

type Simulator struct {
	settings Settings
	byType   [][]int // sites of each type
}

func New(s Settings) (*Simulator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	sim := &Simulator{settings: s, byType: make([][]int, len(s.SiteTypes))}
	for j, k := range s.SiteType {
		sim.byType[k] = append(sim.byType[k], j)
	}
	return sim, nil
}

func (sim *Simulator) Settings() Settings { return sim.settings }

// DistanceKm is the great circle distance between two locations
func DistanceKm(a, b Location) float64 {
	return s2.LatLngFromDegrees(a.Lat, a.Long).Distance(s2.LatLngFromDegrees(b.Lat, b.Long)).Radians() * earthRadiusKm
}

// AgeInCategory draws an age in years uniformly within the category range
func AgeInCategory(rng *rand.Rand, cat int) int {
	r := AgeRanges[cat]
	return r[0] + rng.Intn(r[1]-r[0]+1)
}

// siteChooser returns a draw of one site of type k for a person living at home
func (sim *Simulator) siteChooser(home Location, k int, src rand.Source) distuv.Categorical {
	sites := sim.byType[k]
	w := make([]float64, len(sites))
	var sum float64
	for i, j := range sites {
		w[i] = math.Exp(-DistanceKm(home, sim.settings.SiteLoc[j]) / sim.settings.DistanceScaleKm)
		sum += w[i]
	}
	if sum == 0 {
		for i := range w {
			w[i] = 1
		}
	}
	return distuv.NewCategorical(w, src)
}

// Simulate generates the visits of every person over [0, maxTime) hours
func (sim *Simulator) Simulate(ctx context.Context, maxTime float64, seed int64, dynamicTracing bool) (*Trace, error) {
	if maxTime <= 0 {
		return nil, fmt.Errorf("mobility: maxTime must be positive, got %v", maxTime)
	}
	s := sim.settings
	src := rand.NewSource(uint64(seed))
	rng := rand.New(src)

	tr := &Trace{
		Mode:           s.Mode,
		SiteTypes:      append([]string(nil), s.SiteTypes...),
		People:         s.NumPeople(),
		Sites:          s.NumSites(),
		PeopleAge:      append([]int(nil), s.PeopleAge...),
		Age:            make([]int, s.NumPeople()),
		SiteType:       append([]int(nil), s.SiteType...),
		SiteLoc:        append([]Location(nil), s.SiteLoc...),
		HomeLoc:        append([]Location(nil), s.HomeLoc...),
		MaxTime:        maxTime,
		DynamicTracing: dynamicTracing,
	}

	for p := 0; p < tr.People; p++ {
		if p%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tr.Age[p] = AgeInCategory(rng, s.PeopleAge[p])

		for k := range s.SiteTypes {
			if s.VisitRate[k] == 0 || len(sim.byType[k]) == 0 {
				continue
			}
			n := int(distuv.Poisson{Lambda: s.VisitRate[k] * maxTime / 24, Src: src}.Rand())
			if n == 0 {
				continue
			}
			choose := sim.siteChooser(s.HomeLoc[p], k, src)
			dur := distuv.Exponential{Rate: 1 / s.MeanDuration[k], Src: src}
			for i := 0; i < n; i++ {
				tr.Visits = append(tr.Visits, Visit{
					Person:   p,
					Site:     sim.byType[k][int(choose.Rand())],
					From:     rng.Float64() * maxTime,
					Duration: dur.Rand(),
				})
			}
		}
	}
	tr.Reindex()
	return tr, nil
}
