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
package calibrate

import (
	"errors"
	"math"
	"testing"

	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/ensemble"
	"github.com/blgolden/epiSim/timeline"
)

type state struct {
	c    timeline.Category
	at   float64
	posi float64 // hour of a positive test, < 0 for none
}

func person(st state) timeline.Timeline {
	tl := timeline.NewTimeline()
	if st.c != timeline.Susc {
		tl.Leave(timeline.Susc, st.at)
		tl.Enter(st.c, st.at)
	}
	if st.posi >= 0 {
		tl.Enter(timeline.Posi, st.posi)
	}
	return tl
}

func record(states ...state) ensemble.Record {
	rec := ensemble.Record{Age: make([]int, len(states))}
	for _, st := range states {
		rec.Timelines = append(rec.Timelines, person(st))
	}
	return rec
}

func summary(t *testing.T, recs ...ensemble.Record) *ensemble.Summary {
	t.Helper()
	s, err := ensemble.NewSummary(ensemble.Dims{Repeats: len(recs), People: recs[0].People(), MaxTime: 240})
	if err != nil {
		t.Fatal(err)
	}
	for r, rec := range recs {
		if err := s.MergeRepeat(r, rec); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

var healthy = state{c: timeline.Susc, posi: -1}

func TestTieGoesToLowestRepeat(t *testing.T) {
	s := summary(t,
		record(state{c: timeline.Isym, at: 1, posi: 5}, healthy, healthy),
		record(healthy, healthy, healthy),
	)
	res, err := ExtractSeeds(s, 0, []int{1, 0}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Losses[0] != 1 || res.Losses[1] != 1 {
		t.Fatalf("losses %v", res.Losses)
	}
	if res.Best != 0 || res.Loss != 1 {
		t.Fatalf("best %d loss %v", res.Best, res.Loss)
	}

	res, _ = ExtractSeeds(s, 0, []int{1, 0}, Options{CumulativeReference: true})
	if res.Best != 0 || res.Loss != 0 || res.Losses[1] != 2 {
		t.Fatalf("cumulative reference: %+v", res)
	}
}

func TestCloserCurveWins(t *testing.T) {
	far := record(healthy, healthy, healthy)
	near := record(
		state{c: timeline.Isym, at: 0, posi: 2},
		state{c: timeline.Isym, at: 0, posi: 30},
		state{c: timeline.Iasy, at: 0, posi: 50},
	)
	s := summary(t, far, near)
	res, err := ExtractSeeds(s, 0, []int{1, 2, 3}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Best != 1 || res.Loss != 0 || res.Losses[0] != 14 {
		t.Fatalf("%+v", res)
	}
	if !(res.Losses[1] < res.Losses[0]) {
		t.Fatal("pointwise closer curve must have the lower loss")
	}
}

func TestSnapshotCountsEachState(t *testing.T) {
	// a record where one person sits in expo, iasy and resi at once
	odd := person(state{c: timeline.Expo, at: 0, posi: 2})
	odd.Enter(timeline.Iasy, 0)
	odd.Enter(timeline.Resi, 0)
	rec := record(healthy)
	rec.Timelines[0] = odd
	got := Snapshot(summary(t, rec), 0, 5)
	want := SeedCounts{Expo: 1, Iasy: 1, ResiPosi: 1}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestOutOfWindowPositivesDropped(t *testing.T) {
	s := summary(t, record(state{c: timeline.Isym, at: 0, posi: 24 * 5}, healthy))
	res, err := ExtractSeeds(s, 0, []int{0, 0}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Loss != 0 {
		t.Fatalf("positive on day 5 is outside a two day window, loss %v", res.Loss)
	}
}

func TestSnapshot(t *testing.T) {
	rec := record(
		state{c: timeline.Expo, at: 10, posi: -1},
		state{c: timeline.Isym, at: 0, posi: 20},
		state{c: timeline.Isym, at: 0, posi: -1},
		state{c: timeline.Resi, at: 0, posi: 1},
		state{c: timeline.Dead, at: 0, posi: -1},
		state{c: timeline.Iasy, at: 0, posi: -1},
		state{c: timeline.Ipre, at: 0, posi: -1},
		healthy,
		state{c: timeline.Isym, at: 0, posi: 60}, // positive only after the snapshot
	)
	s := summary(t, rec)
	res, err := ExtractSeeds(s, 50, []int{0}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := SeedCounts{Expo: 1, Iasy: 1, Ipre: 1, IsymPosi: 1, IsymNotPosi: 2, ResiPosi: 1, ResiNotPosi: 1}
	if res.Seeds != want {
		t.Fatalf("got %+v want %+v", res.Seeds, want)
	}
	if res.Time != 50 {
		t.Fatal("reference time not recorded")
	}

	isym := 0
	for p := 0; p < s.People; p++ {
		if s.IsActive(timeline.Isym, 0, p, 50) {
			isym++
		}
	}
	if res.Seeds.IsymPosi+res.Seeds.IsymNotPosi != isym {
		t.Fatal("isym must split exactly into tested and untested")
	}

	m := res.Seeds.Map()
	if m[disease.SeedIsymNotPosi] != 2 || m[disease.SeedResiPosi] != 1 || len(m) != len(disease.SeedKeys) {
		t.Fatalf("map %v", m)
	}
	if err := m.Validate(s.People); err != nil {
		t.Fatal(err)
	}
	if res.Seeds.Total() != 8 {
		t.Fatalf("total %d", res.Seeds.Total())
	}
}

func TestFailedRepeatsSkipped(t *testing.T) {
	s, _ := ensemble.NewSummary(ensemble.Dims{Repeats: 3, People: 2})
	s.MarkFailed(0, 1, errors.New("mobility failed"))
	s.MergeRepeat(1, record(healthy, healthy))
	s.MergeRepeat(2, record(healthy, healthy))
	res, err := ExtractSeeds(s, 0, []int{0}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Best != 1 || !math.IsNaN(res.Losses[0]) {
		t.Fatalf("%+v", res)
	}

	s, _ = ensemble.NewSummary(ensemble.Dims{Repeats: 1, People: 2})
	s.MarkFailed(0, 1, errors.New("disease failed"))
	if _, err := ExtractSeeds(s, 0, []int{0}, Options{}); !errors.Is(err, ErrEmptyEnsemble) {
		t.Fatalf("expected ErrEmptyEnsemble, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	if _, err := ExtractSeeds(nil, 0, []int{1}, Options{}); !errors.Is(err, ErrEmptyEnsemble) {
		t.Fatalf("expected ErrEmptyEnsemble, got %v", err)
	}
	s := summary(t, record(healthy))
	if _, err := ExtractSeeds(s, 0, nil, Options{}); !errors.Is(err, ErrNoReferenceCases) {
		t.Fatalf("expected ErrNoReferenceCases, got %v", err)
	}
	if _, err := ExtractSeeds(s, 0, []int{1, -1}, Options{}); !errors.Is(err, ErrNegativeCases) {
		t.Fatalf("expected ErrNegativeCases, got %v", err)
	}
}
