// export.go
//
// JSON document of a simulated trace
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
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// TestEntry is one test of a disease run, result as integer code
type TestEntry struct {
	Person int     `json:"person"`
	Time   float64 `json:"time"`
	Result int     `json:"result"`
}

type jsonPerson struct {
	ID  int `json:"id"`
	Age int `json:"age"`
}

type jsonSite struct {
	ID   int     `json:"id"`
	Type int     `json:"type"`
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

type jsonVisit struct {
	Person int     `json:"person"`
	Site   int     `json:"site"`
	Time   float64 `json:"time"`
	Dur    float64 `json:"dur"`
}

type Document struct {
	SimTime      string         `json:"sim_time"`
	Mode         string         `json:"mode"`
	NumSiteTypes int            `json:"num_site_types"`
	NumPeople    int            `json:"num_people"`
	NumSites     int            `json:"num_sites"`
	NumVisits    int            `json:"num_visits"`
	SiteTypes    map[int]string `json:"site_types"`
	People       []jsonPerson   `json:"people"`
	Sites        []jsonSite     `json:"sites"`
	Visits       []jsonVisit    `json:"visits"`
	Tests        *[]TestEntry   `json:"tests,omitempty"` // nil without a disease run
}

// NewDocument lays a trace out in the export format. tests is nil when no
// disease simulation was run.
func NewDocument(tr *Trace, simTime time.Time, tests []TestEntry) (Document, error) {
	if len(tr.Age) != tr.People || len(tr.SiteLoc) != tr.Sites || len(tr.SiteType) != tr.Sites {
		return Document{}, fmt.Errorf("mobility: trace has %d ages, %d site locations, %d site types for %d people and %d sites",
			len(tr.Age), len(tr.SiteLoc), len(tr.SiteType), tr.People, tr.Sites)
	}
	d := Document{
		SimTime:      simTime.Format("2006-01-02T15:04:05.000000"),
		Mode:         tr.Mode,
		NumSiteTypes: len(tr.SiteTypes),
		NumPeople:    tr.People,
		NumSites:     tr.Sites,
		NumVisits:    len(tr.Visits),
		SiteTypes:    make(map[int]string, len(tr.SiteTypes)),
		People:       make([]jsonPerson, tr.People),
		Sites:        make([]jsonSite, tr.Sites),
		Visits:       make([]jsonVisit, len(tr.Visits)),
	}
	if tests != nil {
		d.Tests = &tests
	}
	for k, name := range tr.SiteTypes {
		d.SiteTypes[k] = name
	}
	for i := range d.People {
		d.People[i] = jsonPerson{ID: i, Age: tr.Age[i]}
	}
	for j := range d.Sites {
		d.Sites[j] = jsonSite{ID: j, Type: tr.SiteType[j], Lat: tr.SiteLoc[j].Lat, Long: tr.SiteLoc[j].Long}
	}
	for i, v := range tr.Visits {
		d.Visits[i] = jsonVisit{Person: v.Person, Site: v.Site, Time: v.From, Dur: v.Duration}
	}
	return d, nil
}

func WriteJSON(w io.Writer, tr *Trace, simTime time.Time, tests []TestEntry) error {
	d, err := NewDocument(tr, simTime, tests)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	return enc.Encode(d)
}
