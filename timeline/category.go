// category.go
//
// The closed set of disease, test and hospital states a person can be in
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
package timeline

import "fmt"

type Category int

const (
	Susc Category = iota // Susceptible
	Expo                 // Exposed, not yet infectious
	Ipre                 // Infectious, pre-symptomatic
	Isym                 // Infectious, symptomatic
	Iasy                 // Infectious, asymptomatic
	Posi                 // Tested positive
	Nega                 // Tested negative
	Resi                 // Resistant (recovered)
	Dead                 // Died
	Hosp                 // Hospitalized
)

const NumCategories = int(Hosp) + 1

// Group tells whether a category partitions the disease course or overlays it
type Group int

const (
	Progression Group = iota // At most one active at any instant
	Overlay                  // Test status or hospitalization, coexists with a progression state
)

var labels = [NumCategories]string{"susc", "expo", "ipre", "isym", "iasy", "posi", "nega", "resi", "dead", "hosp"}

var groups = [NumCategories]Group{
	Susc: Progression,
	Expo: Progression,
	Ipre: Progression,
	Isym: Progression,
	Iasy: Progression,
	Posi: Overlay,
	Nega: Overlay,
	Resi: Progression,
	Dead: Progression,
	Hosp: Overlay,
}

// All lists the categories in storage order
var All = [NumCategories]Category{Susc, Expo, Ipre, Isym, Iasy, Posi, Nega, Resi, Dead, Hosp}

// Infectious are the categories children counts are kept for, in that order
var Infectious = [3]Category{Iasy, Ipre, Isym}

func (c Category) Valid() bool {
	return c >= 0 && int(c) < NumCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return labels[c]
}

func (c Category) Group() Group {
	return groups[c]
}

// InfectiousIndex returns the position of c in Infectious
func InfectiousIndex(c Category) (int, bool) {
	for i, x := range Infectious {
		if x == c {
			return i, true
		}
	}
	return -1, false
}

func ParseCategory(s string) (Category, error) {
	for i, l := range labels {
		if l == s {
			return Category(i), nil
		}
	}
	return -1, fmt.Errorf("timeline: unknown category %q", s)
}

func (g Group) String() string {
	if g == Overlay {
		return "overlay"
	}
	return "progression"
}
