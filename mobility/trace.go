// trace.go
//
// The visits generated by one mobility simulation and the contact queries
// the disease model runs over them
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
	"math"
	"sort"
)

type Visit struct {
	ID       int     // Position in Trace.Visits
	Person   int     // Visiting person
	Site     int     // Visited site
	From     float64 // Arrival hour
	Duration float64 // Hours spent
}

func (v Visit) To() float64 { return v.From + v.Duration }

// Contact is the overlap of two visits at the same site
type Contact struct {
	Visit Visit   // The other person's visit
	From  float64 // Start of the overlap
	To    float64 // End of the overlap
}

func (c Contact) Duration() float64 { return c.To - c.From }

type Trace struct {
	Mode           string
	SiteTypes      []string
	People         int
	Sites          int
	PeopleAge      []int // age category of every person
	Age            []int // age in years, drawn once per run
	SiteType       []int
	SiteLoc        []Location
	HomeLoc        []Location
	MaxTime        float64
	DynamicTracing bool
	Visits         []Visit

	byPerson [][]int
	bySite   [][]int
}

// Reindex rebuilds the per-person and per-site visit lists. It must be
// called after Visits is changed.
func (tr *Trace) Reindex() {
	sort.SliceStable(tr.Visits, func(i, j int) bool { return tr.Visits[i].From < tr.Visits[j].From })
	tr.byPerson = make([][]int, tr.People)
	tr.bySite = make([][]int, tr.Sites)
	for i := range tr.Visits {
		tr.Visits[i].ID = i
		v := tr.Visits[i]
		tr.byPerson[v.Person] = append(tr.byPerson[v.Person], i)
		tr.bySite[v.Site] = append(tr.bySite[v.Site], i)
	}
}

// PersonVisits returns the visits of person p in arrival order
func (tr *Trace) PersonVisits(p int) []Visit {
	if tr.byPerson == nil {
		tr.Reindex()
	}
	out := make([]Visit, 0, len(tr.byPerson[p]))
	for _, i := range tr.byPerson[p] {
		out = append(out, tr.Visits[i])
	}
	return out
}

// Contacts returns the visits of other people overlapping v at v's site,
// clipped to [from, to)
func (tr *Trace) Contacts(v Visit, from, to float64) []Contact {
	if tr.bySite == nil {
		tr.Reindex()
	}
	lo := math.Max(v.From, from)
	hi := math.Min(v.To(), to)
	if hi <= lo {
		return nil
	}
	var out []Contact
	for _, i := range tr.bySite[v.Site] {
		w := tr.Visits[i]
		if w.From >= hi {
			break
		}
		if w.Person == v.Person {
			continue
		}
		s, e := math.Max(lo, w.From), math.Min(hi, w.To())
		if e > s {
			out = append(out, Contact{Visit: w, From: s, To: e})
		}
	}
	return out
}

// Clone returns a trace sharing no memory with tr
func (tr *Trace) Clone() *Trace {
	c := *tr
	c.SiteTypes = append([]string(nil), tr.SiteTypes...)
	c.PeopleAge = append([]int(nil), tr.PeopleAge...)
	c.Age = append([]int(nil), tr.Age...)
	c.SiteType = append([]int(nil), tr.SiteType...)
	c.SiteLoc = append([]Location(nil), tr.SiteLoc...)
	c.HomeLoc = append([]Location(nil), tr.HomeLoc...)
	c.Visits = append([]Visit(nil), tr.Visits...)
	c.byPerson, c.bySite = nil, nil
	return &c
}
