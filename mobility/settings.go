// settings.go
//
// The population, sites and visit behaviour a mobility simulation draws from
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
	"errors"
	"fmt"
)

// Age ranges in years of each age category
var AgeRanges = [][2]int{{0, 4}, {5, 14}, {15, 34}, {35, 59}, {60, 79}, {80, 100}}

// Default site types when the settings do not name them
var DefaultSiteTypes = []string{"education", "social", "bus_stop", "office", "supermarket"}

type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

type Settings struct {
	Mode            string     // Free-form label written to the trace
	SiteTypes       []string   // Site type names, index is the type code
	PeopleAge       []int      // Age category of every person
	HomeLoc         []Location // Home of every person
	SiteLoc         []Location // Location of every site
	SiteType        []int      // Type code of every site
	VisitRate       []float64  // Visits per person per day, per site type
	MeanDuration    []float64  // Mean visit duration in hours, per site type
	DistanceScaleKm float64    // Site attractiveness decays as exp(-d/scale)
}

var ErrSettings = errors.New("mobility: bad settings")

func (s Settings) NumPeople() int    { return len(s.PeopleAge) }
func (s Settings) NumSites() int     { return len(s.SiteLoc) }
func (s Settings) NumSiteTypes() int { return len(s.SiteTypes) }

func (s Settings) Validate() error {
	if len(s.PeopleAge) == 0 {
		return fmt.Errorf("%w: no people", ErrSettings)
	}
	if len(s.HomeLoc) != len(s.PeopleAge) {
		return fmt.Errorf("%w: %d homes for %d people", ErrSettings, len(s.HomeLoc), len(s.PeopleAge))
	}
	if len(s.SiteType) != len(s.SiteLoc) {
		return fmt.Errorf("%w: %d site types for %d sites", ErrSettings, len(s.SiteType), len(s.SiteLoc))
	}
	if len(s.VisitRate) != len(s.SiteTypes) || len(s.MeanDuration) != len(s.SiteTypes) {
		return fmt.Errorf("%w: visitRate and meanDuration need one value per site type (%d)", ErrSettings, len(s.SiteTypes))
	}
	for _, a := range s.PeopleAge {
		if a < 0 || a >= len(AgeRanges) {
			return fmt.Errorf("%w: age category %d", ErrSettings, a)
		}
	}
	for j, k := range s.SiteType {
		if k < 0 || k >= len(s.SiteTypes) {
			return fmt.Errorf("%w: site %d has type %d", ErrSettings, j, k)
		}
	}
	for k := range s.SiteTypes {
		if s.VisitRate[k] < 0 || s.MeanDuration[k] <= 0 {
			return fmt.Errorf("%w: site type %d needs visitRate >= 0 and meanDuration > 0", ErrSettings, k)
		}
	}
	if s.DistanceScaleKm <= 0 {
		return fmt.Errorf("%w: distanceScaleKm must be positive", ErrSettings)
	}
	return nil
}

// Clone returns settings that share no memory with s
func (s Settings) Clone() Settings {
	c := s
	c.SiteTypes = append([]string(nil), s.SiteTypes...)
	c.PeopleAge = append([]int(nil), s.PeopleAge...)
	c.HomeLoc = append([]Location(nil), s.HomeLoc...)
	c.SiteLoc = append([]Location(nil), s.SiteLoc...)
	c.SiteType = append([]int(nil), s.SiteType...)
	c.VisitRate = append([]float64(nil), s.VisitRate...)
	c.MeanDuration = append([]float64(nil), s.MeanDuration...)
	return c
}
