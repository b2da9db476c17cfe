// model.go
//
// Reference disease model: a discrete event simulation of exposure,
// (a)symptomatic infection, testing and resolution over a mobility trace
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
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/blgolden/epiSim/measures"
	"github.com/blgolden/epiSim/mobility"
	"github.com/blgolden/epiSim/timeline"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrLaunched = errors.New("disease: epidemic already launched on this model")

const (
	susc = timeline.Susc
	expo = timeline.Expo
	ipre = timeline.Ipre
	isym = timeline.Isym
	iasy = timeline.Iasy
	posi = timeline.Posi
	nega = timeline.Nega
	resi = timeline.Resi
	dead = timeline.Dead
	hosp = timeline.Hosp
)

// Outcome is everything a finished run hands back
type Outcome struct {
	Timelines []timeline.Timeline
	Children  [3][]int // by timeline.Infectious
	TestLog   []TestResult
	Measures  measures.List // realized configuration
}

type Model struct {
	MaxTime   float64
	People    int
	Timelines []timeline.Timeline
	Children  [3][]int
	TestLog   []TestResult
	Measures  measures.List

	trace          *mobility.Trace
	dist           Distributions
	params         Params
	testing        Testing
	dynamicTracing bool
	src            rand.Source
	rng            *rand.Rand

	tree        *simple.DirectedGraph // infector -> infectee
	infector    []int                 // -1 for seeds and the never infected
	queue       eventQueue
	seq         int
	testPending []bool
	testsOnDay  map[int]int
	visitOK     map[int]bool // visit id -> takes place under the measures
	launched    bool
}

// seedMix turns the repeat seed into the disease stream's seed so it does not
// replay the mobility simulator's draws
const seedMix = 0x5DEECE66D

// New builds a model over a simulated trace. The model owns tr and dist.
func New(tr *mobility.Trace, dist Distributions, seed int64, dynamicTracing bool) (*Model, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewSource(uint64(seed) ^ seedMix)
	return &Model{
		MaxTime:        tr.MaxTime,
		People:         tr.People,
		trace:          tr,
		dist:           dist,
		dynamicTracing: dynamicTracing,
		src:            src,
		rng:            rand.New(src),
	}, nil
}

// LaunchEpidemic seeds the initial counts at hour 0 and runs the epidemic
// until MaxTime. A model runs once.
func (m *Model) LaunchEpidemic(ctx context.Context, params Params, initial InitialCounts, testing Testing, ml measures.List) error {
	if m.launched {
		return ErrLaunched
	}
	m.launched = true
	if err := params.Validate(len(m.trace.SiteTypes)); err != nil {
		return err
	}
	if err := testing.Validate(); err != nil {
		return err
	}
	if err := initial.Validate(m.People); err != nil {
		return err
	}
	if err := ml.Validate(); err != nil {
		return err
	}
	m.params, m.testing = params, testing

	m.Timelines = make([]timeline.Timeline, m.People)
	for i := range m.Timelines {
		m.Timelines[i] = timeline.NewTimeline()
	}
	for i := range m.Children {
		m.Children[i] = make([]int, m.People)
	}
	m.tree = simple.NewDirectedGraph()
	m.infector = make([]int, m.People)
	for i := range m.infector {
		m.infector[i] = -1
	}
	m.testPending = make([]bool, m.People)
	m.testsOnDay = make(map[int]int)
	m.visitOK = make(map[int]bool)
	m.Measures = ml.Resolve(m.People, m.rng)

	perm := m.rng.Perm(m.People)
	next := 0
	for _, key := range SeedKeys {
		for i := 0; i < initial[key]; i++ {
			if err := m.seedPerson(perm[next], key); err != nil {
				return err
			}
			next++
		}
	}

	for n := 0; m.queue.Len() > 0; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := m.handle(m.pop()); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) Outcome() Outcome {
	return Outcome{Timelines: m.Timelines, Children: m.Children, TestLog: m.TestLog, Measures: m.Measures}
}

// TransmissionTree has an edge from every infector to each person they infected
func (m *Model) TransmissionTree() *simple.DirectedGraph { return m.tree }

// Generation counts the infectors between p and a seeded case. It is -1
// if p was never infected.
func (m *Model) Generation(p int) int {
	tl := &m.Timelines[p]
	if !tl.Intervals[susc].End.Finite() {
		return -1
	}
	g := 0
	for q := m.infector[p]; q >= 0; q = m.infector[q] {
		g++
	}
	return g
}

// Infector is the person who infected p, -1 for seeds and people never infected
func (m *Model) Infector(p int) int { return m.infector[p] }

func (m *Model) seedPerson(p int, key string) error {
	tl := &m.Timelines[p]
	if err := tl.Leave(susc, 0); err != nil {
		return err
	}
	switch key {
	case SeedExpo:
		tl.Enter(expo, 0)
		m.fromExposure(p, 0)
	case SeedIpre:
		tl.Enter(ipre, 0)
		m.fromPresymptomatic(p, 0)
	case SeedIasy:
		tl.Enter(iasy, 0)
		m.fromAsymptomatic(p, 0)
	case SeedIsymPosi, SeedIsymNotPosi:
		tl.Enter(isym, 0)
		if key == SeedIsymPosi {
			tl.Enter(posi, 0)
		}
		m.fromSymptomatic(p, 0)
		if key == SeedIsymNotPosi {
			m.scheduleTest(p, 0)
		}
	case SeedResiPosi, SeedResiNotPosi:
		tl.Enter(resi, 0)
		if key == SeedResiPosi {
			tl.Enter(posi, 0)
		}
	default:
		return fmt.Errorf("%w: unknown initial count %q", ErrParams, key)
	}
	return nil
}

func (m *Model) hours(mean float64) float64 {
	return distuv.Exponential{Rate: 1 / mean, Src: m.src}.Rand()
}

// The course of disease is drawn up front from the entered phase on

func (m *Model) fromExposure(p int, t float64) {
	tInf := t + distuv.LogNormal{Mu: m.dist.IncubationMeanLog, Sigma: m.dist.IncubationSigmaLog, Src: m.src}.Rand()
	if m.rng.Float64() < m.dist.SymptomaticProb {
		m.push(event{t: tInf, kind: evTransition, person: p, from: expo, to: ipre})
		m.fromPresymptomatic(p, tInf)
		return
	}
	m.push(event{t: tInf, kind: evTransition, person: p, from: expo, to: iasy})
	m.fromAsymptomatic(p, tInf)
}

func (m *Model) fromPresymptomatic(p int, t float64) {
	tSym := t + m.hours(m.dist.PresymptomaticHours)
	m.push(event{t: tSym, kind: evTransition, person: p, from: ipre, to: isym})
	m.scheduleContacts(p, ipre, t, tSym)
	m.fromSymptomatic(p, tSym)
}

func (m *Model) fromAsymptomatic(p int, t float64) {
	tRes := t + m.hours(m.dist.InfectiousHours)
	m.push(event{t: tRes, kind: evTransition, person: p, from: iasy, to: resi})
	m.scheduleContacts(p, iasy, t, tRes)
}

func (m *Model) fromSymptomatic(p int, t float64) {
	tRes := t + m.hours(m.dist.InfectiousHours)
	age := m.trace.PeopleAge[p]
	end := resi
	if m.rng.Float64() < m.dist.FatalityByAge[age] {
		end = dead
	}
	m.push(event{t: tRes, kind: evTransition, person: p, from: isym, to: end})
	if m.rng.Float64() < m.dist.HospitalizationByAge[age] {
		if tHosp := t + m.hours(m.dist.HospitalDelayHours); tHosp < tRes {
			m.push(event{t: tHosp, kind: evHosp, person: p})
		}
	}
	m.scheduleContacts(p, isym, t, tRes)
}

// scheduleContacts queues a transmission chance for every contact of p
// while p is in category c during [from, to)
func (m *Model) scheduleContacts(p int, c timeline.Category, from, to float64) {
	for _, v := range m.trace.PersonVisits(p) {
		if v.From >= to || v.From >= m.MaxTime {
			break
		}
		if v.To() <= from {
			continue
		}
		for _, ct := range m.trace.Contacts(v, from, to) {
			m.push(event{t: ct.From, kind: evContact, person: ct.Visit.Person, other: p, from: c, dur: ct.Duration(), site: v.Site, visits: [2]int{v.ID, ct.Visit.ID}})
		}
	}
}

func (m *Model) scheduleTest(p int, t float64) {
	if m.testPending[p] || m.Timelines[p].Entered[posi] || !m.testing.Enabled {
		return
	}
	m.testPending[p] = m.push(event{t: math.Max(t, m.testing.StartHours) + m.testing.DelayHours, kind: evTest, person: p})
}

func (m *Model) handle(e event) error {
	tl := &m.Timelines[e.person]
	switch e.kind {
	case evTransition:
		if err := tl.Leave(e.from, e.t); err != nil {
			return fmt.Errorf("disease: person %d: %w", e.person, err)
		}
		tl.Enter(e.to, e.t)
		switch {
		case e.to == isym:
			m.scheduleTest(e.person, e.t)
		case e.to == resi && tl.IsActive(hosp, e.t):
			return tl.Leave(hosp, e.t)
		}
	case evHosp:
		if tl.IsActive(isym, e.t) {
			tl.Enter(hosp, e.t)
		}
	case evContact:
		return m.contact(e)
	case evTest:
		return m.test(e)
	}
	return nil
}

// takesPlace decides once per visit whether it survives the measures
func (m *Model) takesPlace(visit, person int, t float64) bool {
	if ok, seen := m.visitOK[visit]; seen {
		return ok
	}
	ok := m.Measures.VisitAllowed(person, m.trace.PeopleAge[person], m.Timelines[person].IsActive(posi, t), t, m.rng.Float64())
	m.visitOK[visit] = ok
	return ok
}

func (m *Model) contact(e event) error {
	tl := &m.Timelines[e.person]
	if !tl.IsActive(susc, e.t) || !m.Timelines[e.other].IsActive(e.from, e.t) {
		return nil
	}
	if !m.takesPlace(e.visits[0], e.other, e.t) || !m.takesPlace(e.visits[1], e.person, e.t) {
		return nil
	}
	k := m.trace.SiteType[e.site]
	beta := m.params.BetaSite[k] * m.Measures.BetaFactor(k, e.t)
	if e.from == iasy {
		beta *= m.params.BetaAsymptomaticFactor
	}
	if m.rng.Float64() >= 1-math.Exp(-beta*e.dur) {
		return nil
	}

	if err := tl.Leave(susc, e.t); err != nil {
		return err
	}
	tl.Enter(expo, e.t)
	idx, _ := timeline.InfectiousIndex(e.from)
	m.Children[idx][e.other]++
	m.tree.SetEdge(simple.Edge{F: simple.Node(e.other), T: simple.Node(e.person)})
	m.infector[e.person] = e.other
	m.fromExposure(e.person, e.t)
	return nil
}

func (m *Model) test(e event) error {
	if m.testing.TestsPerDay > 0 {
		day := int(math.Floor(e.t / 24))
		if m.testsOnDay[day] >= m.testing.TestsPerDay {
			m.push(event{t: float64(day+1) * 24, kind: evTest, person: e.person})
			return nil
		}
		m.testsOnDay[day]++
	}
	m.testPending[e.person] = false

	tl := &m.Timelines[e.person]
	infected := tl.IsActive(expo, e.t) || tl.IsActive(ipre, e.t) || tl.IsActive(isym, e.t) || tl.IsActive(iasy, e.t)
	positive := infected && m.rng.Float64() >= m.testing.FalseNegativeRate
	m.TestLog = append(m.TestLog, TestResult{Person: e.person, Time: e.t, Positive: positive})

	if !positive {
		if !tl.IsActive(nega, e.t) && !tl.IsActive(posi, e.t) {
			tl.Enter(nega, e.t)
		}
		return nil
	}
	if tl.IsActive(nega, e.t) {
		if err := tl.Leave(nega, e.t); err != nil {
			return err
		}
	}
	if !tl.IsActive(posi, e.t) {
		tl.Enter(posi, e.t)
	}
	if m.testing.SmartTracing && m.dynamicTracing {
		m.traceContacts(e.person, e.t)
	}
	return nil
}

// traceContacts tests everyone p met during the tracing window before t
func (m *Model) traceContacts(p int, t float64) {
	from := t - m.testing.TracingWindowHours
	for _, v := range m.trace.PersonVisits(p) {
		if v.From >= t {
			break
		}
		if v.To() <= from {
			continue
		}
		for _, ct := range m.trace.Contacts(v, from, t) {
			m.scheduleTest(ct.Visit.Person, t)
		}
	}
}
