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
package ensemble

import (
	"context"
	"errors"
	"math"
	"os"
	"reflect"
	"testing"

	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/logger"
	"github.com/blgolden/epiSim/measures"
	"github.com/blgolden/epiSim/mobility"
	"github.com/blgolden/epiSim/timeline"
)

var errBoom = errors.New("boom")

func quiet(t *testing.T) {
	mode, dir := logger.OutputMode, logger.Dir
	logger.OutputMode, logger.Dir = "quiet", t.TempDir()
	t.Cleanup(func() { logger.OutputMode, logger.Dir = mode, dir })
}

type fakeMobility struct{ s mobility.Settings }

func (f fakeMobility) Simulate(ctx context.Context, maxTime float64, seed int64, dynamicTracing bool) (*mobility.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &mobility.Trace{
		People:    f.s.NumPeople(),
		Sites:     f.s.NumSites(),
		SiteTypes: f.s.SiteTypes,
		PeopleAge: f.s.PeopleAge,
		SiteType:  f.s.SiteType,
		SiteLoc:   f.s.SiteLoc,
		HomeLoc:   f.s.HomeLoc,
		MaxTime:   maxTime,
	}, nil
}

// fakeDisease infects person seed%n at hour 1; it tests positive at hour 30
type fakeDisease struct {
	tr      *mobility.Trace
	seed    int64
	badSeed int64
	out     disease.Outcome
}

func (f *fakeDisease) LaunchEpidemic(ctx context.Context, params disease.Params, initial disease.InitialCounts, testing disease.Testing, ml measures.List) error {
	if f.seed == f.badSeed {
		return errBoom
	}
	n := f.tr.People
	f.out.Timelines = make([]timeline.Timeline, n)
	for i := range f.out.Children {
		f.out.Children[i] = make([]int, n)
	}
	for p := range f.out.Timelines {
		f.out.Timelines[p] = timeline.NewTimeline()
	}
	if n > 0 {
		p := int(f.seed) % n
		tl := &f.out.Timelines[p]
		tl.Leave(timeline.Susc, 1)
		tl.Enter(timeline.Expo, 1)
		tl.Leave(timeline.Expo, 10)
		tl.Enter(timeline.Isym, 10)
		tl.Enter(timeline.Posi, 30)
		f.out.Children[2][p] = 2
		f.out.TestLog = []disease.TestResult{{Person: p, Time: 30, Positive: true}}
	}
	f.out.Measures = ml.Clone()
	return nil
}

func (f *fakeDisease) Outcome() disease.Outcome { return f.out }

func fakeBundle(n int, badSeed int64) Bundle {
	s := mobility.Settings{
		SiteTypes:       []string{"office"},
		SiteLoc:         []mobility.Location{{Lat: 47.37, Long: 8.54}},
		SiteType:        []int{0},
		VisitRate:       []float64{1},
		MeanDuration:    []float64{1},
		DistanceScaleKm: 1,
	}
	for i := 0; i < n; i++ {
		s.PeopleAge = append(s.PeopleAge, i%len(mobility.AgeRanges))
		s.HomeLoc = append(s.HomeLoc, mobility.Location{Lat: 47.37, Long: 8.54})
	}
	return Bundle{
		Mobility: s,
		Measures: measures.List{{Kind: measures.SocialDistancingForAll, Start: 0, End: 48, P: 0.5}},
		MaxTime:  72,
		MakeMobility: func(s mobility.Settings) (MobilitySimulator, error) {
			return fakeMobility{s}, nil
		},
		MakeDisease: func(tr *mobility.Trace, dist disease.Distributions, seed int64, dynamicTracing bool) (DiseaseModel, error) {
			return &fakeDisease{tr: tr, seed: seed, badSeed: badSeed}, nil
		},
	}
}

func records(t *testing.T, b Bundle, seeds []int64) []Record {
	t.Helper()
	recs := make([]Record, len(seeds))
	for r, seed := range seeds {
		rec, err := RunRepeat(context.Background(), Task{Repeat: r, Seed: seed, Bundle: b.Clone()})
		if err != nil {
			t.Fatal(err)
		}
		recs[r] = rec
	}
	return recs
}

func TestNoRepeats(t *testing.T) {
	if _, err := LaunchParallel(context.Background(), Config{Repeats: 0}, fakeBundle(3, -1)); !errors.Is(err, ErrNoRepeats) {
		t.Fatalf("expected ErrNoRepeats, got %v", err)
	}
	if _, err := NewSummary(Dims{Repeats: 0, People: 3}); !errors.Is(err, ErrDims) {
		t.Fatalf("expected ErrDims, got %v", err)
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	recs := records(t, fakeBundle(5, -1), []int64{3, 8, 12, 21})
	forward, _ := NewSummary(Dims{Repeats: 4, People: 5, MaxTime: 72})
	backward, _ := NewSummary(Dims{Repeats: 4, People: 5, MaxTime: 72})
	for r := range recs {
		if err := forward.MergeRepeat(r, recs[r]); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range []int{3, 1, 0, 2} {
		if err := backward.MergeRepeat(r, recs[r]); err != nil {
			t.Fatal(err)
		}
	}
	if !reflect.DeepEqual(forward.active, backward.active) ||
		!reflect.DeepEqual(forward.intervals, backward.intervals) ||
		!reflect.DeepEqual(forward.age, backward.age) ||
		!reflect.DeepEqual(forward.children, backward.children) ||
		!reflect.DeepEqual(forward.Measures, backward.Measures) ||
		!reflect.DeepEqual(forward.Seeds, backward.Seeds) {
		t.Fatal("merge order changed the summary")
	}
}

func TestSentinels(t *testing.T) {
	recs := records(t, fakeBundle(4, -1), []int64{1})
	s, _ := NewSummary(Dims{Repeats: 3, People: 4})
	if err := s.MergeRepeat(0, recs[0]); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed(2, 9, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	// rows 1 and 2 stay at the preallocation values
	for r := 1; r < 3; r++ {
		for p := 0; p < 4; p++ {
			if !s.IsActive(timeline.Susc, r, p, 5) || s.IsActive(timeline.Expo, r, p, 5) {
				t.Fatalf("person %d of unmerged repeat %d must be susceptible", p, r)
			}
		}
	}
	for r := 0; r < 3; r++ {
		for p := 0; p < 4; p++ {
			if !s.Interval(timeline.Susc, r, p).Start.IsDawn() || !s.Active(timeline.Susc, r, p) {
				t.Fatalf("susc of %d/%d must start at dawn", r, p)
			}
			for _, c := range timeline.All {
				if !s.Active(c, r, p) && !s.Interval(c, r, p).Start.IsNever() {
					t.Fatalf("%v of %d/%d not entered but starts at %v", c, r, p, s.Interval(c, r, p).Start)
				}
				if math.IsInf(s.Interval(c, r, p).Start.Float(), 1) == s.Active(c, r, p) && c != timeline.Susc {
					t.Fatalf("%v of %d/%d: entered flag disagrees with start", c, r, p)
				}
			}
		}
	}
	if !s.IsActive(timeline.Isym, 0, 1, 10) || s.IsActive(timeline.Isym, 0, 1, 9.9) {
		t.Fatal("isym of the infected person starts at hour 10")
	}
	if d, ok := s.DayOfEntry(timeline.Posi, 0, 1); !ok || d != 1 {
		t.Fatalf("posi day %d %v", d, ok)
	}
	if s.Children(timeline.Isym, 0, 1) != 2 || s.Children(timeline.Resi, 0, 1) != 0 {
		t.Fatal("children counts")
	}
}

func TestMergeErrors(t *testing.T) {
	recs := records(t, fakeBundle(3, -1), []int64{1})
	s, _ := NewSummary(Dims{Repeats: 2, People: 3})
	if err := s.MergeRepeat(0, recs[0]); err != nil {
		t.Fatal(err)
	}
	if err := s.MergeRepeat(0, recs[0]); !errors.Is(err, ErrRowMerged) {
		t.Fatalf("expected ErrRowMerged, got %v", err)
	}
	if err := s.MergeRepeat(2, recs[0]); !errors.Is(err, ErrDims) {
		t.Fatalf("expected ErrDims for repeat out of range, got %v", err)
	}
	short := recs[0]
	short.Timelines = short.Timelines[:2]
	if err := s.MergeRepeat(1, short); !errors.Is(err, ErrDims) {
		t.Fatalf("expected ErrDims for wrong person count, got %v", err)
	}
	if err := s.MarkFailed(1, 9, errBoom); err != nil {
		t.Fatal(err)
	}
	if err := s.MergeRepeat(1, recs[0]); !errors.Is(err, ErrRowMerged) {
		t.Fatalf("failed row must not be merged, got %v", err)
	}
	if got := s.Usable(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("usable %v", got)
	}
}

func TestRepeatSeedsDistinct(t *testing.T) {
	for _, master := range []int64{0, 1234, -7} {
		seeds := RepeatSeeds(master, 1000)
		seen := make(map[int64]int)
		for r, s := range seeds {
			if s < 0 {
				t.Fatalf("master %d: negative seed %d", master, s)
			}
			if q, ok := seen[s]; ok {
				t.Fatalf("master %d: repeats %d and %d share seed %d", master, q, r, s)
			}
			seen[s] = r
		}
		if !reflect.DeepEqual(seeds[:10], RepeatSeeds(master, 10)) {
			t.Fatalf("master %d: a shorter ensemble must get the same leading seeds", master)
		}
	}
}

func TestLaunchParallelDeterministic(t *testing.T) {
	quiet(t)
	cfg := Config{Repeats: 6, Workers: 3, Seed: 42, StoreMobility: true}
	a, err := LaunchParallel(context.Background(), cfg, fakeBundle(7, -1))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Workers = 1
	cfg.StoreMobility = false
	b, err := LaunchParallel(context.Background(), cfg, fakeBundle(7, -1))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Seeds, RepeatSeeds(42, 6)) || !reflect.DeepEqual(a.Seeds, b.Seeds) {
		t.Fatalf("seeds %v %v", a.Seeds, b.Seeds)
	}
	if !reflect.DeepEqual(a.intervals, b.intervals) || !reflect.DeepEqual(a.children, b.children) {
		t.Fatal("worker count changed the result")
	}
	for r := 0; r < 6; r++ {
		if !a.Merged(r) || a.Mobility[r] == nil || b.Mobility[r] != nil {
			t.Fatalf("repeat %d: merged %v, stored trace %v / %v", r, a.Merged(r), a.Mobility[r] != nil, b.Mobility[r] != nil)
		}
		if len(a.Measures[r]) != 1 || len(a.Tests[r]) != 1 {
			t.Fatalf("repeat %d measures %v tests %v", r, a.Measures[r], a.Tests[r])
		}
	}
	if a.ID == b.ID {
		t.Fatal("every summary gets its own id")
	}
	if a.Sites != 1 || len(a.HomeLoc) != 7 {
		t.Fatal("geography not recorded")
	}
}

func TestAbortEnsemble(t *testing.T) {
	quiet(t)
	bad := RepeatSeeds(5, 4)[2]
	_, err := LaunchParallel(context.Background(), Config{Repeats: 4, Workers: 2, Seed: 5}, fakeBundle(3, bad))
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected the repeat's error, got %v", err)
	}
}

func TestRecordFailure(t *testing.T) {
	quiet(t)
	bad := RepeatSeeds(5, 4)[2]
	s, err := LaunchParallel(context.Background(), Config{Repeats: 4, Workers: 2, Seed: 5, OnFailure: RecordFailure}, fakeBundle(3, bad))
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(s.Failed(2), errBoom) || s.Merged(2) {
		t.Fatalf("repeat 2 should be marked failed: %v", s.Failed(2))
	}
	for _, r := range s.Usable() {
		if s.Seeds[r] == bad {
			t.Fatalf("repeat %d ran with the failing seed", r)
		}
	}
	if st := s.Stats(); st[0].N != len(s.Usable()) {
		t.Fatalf("stats over %d repeats, %d usable", st[0].N, len(s.Usable()))
	}
	if files, err := os.ReadDir(logger.Dir); err != nil || len(files) != 0 {
		t.Fatalf("the ensemble must not write log files, found %v (%v)", files, err)
	}
}

func TestLaunchCancelled(t *testing.T) {
	quiet(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LaunchParallel(ctx, Config{Repeats: 3, Workers: 1}, fakeBundle(2, -1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBundleClone(t *testing.T) {
	b := fakeBundle(3, -1)
	b.Params = disease.Params{BetaSite: []float64{1}}
	b.InitialCounts = disease.InitialCounts{disease.SeedExpo: 1}
	b.Distributions.FatalityByAge = []float64{0.1}

	c := b.Clone()
	c.Mobility.PeopleAge[0] = 5
	c.Mobility.HomeLoc[0].Lat = 0
	c.Params.BetaSite[0] = 9
	c.InitialCounts[disease.SeedExpo] = 9
	c.Distributions.FatalityByAge[0] = 9
	c.Measures[0].P = 1

	if b.Mobility.PeopleAge[0] != 0 || b.Mobility.HomeLoc[0].Lat != 47.37 || b.Params.BetaSite[0] != 1 ||
		b.InitialCounts[disease.SeedExpo] != 1 || b.Distributions.FatalityByAge[0] != 0.1 || b.Measures[0].P != 0.5 {
		t.Fatal("clone aliases the original bundle")
	}
}

func TestDiagnostics(t *testing.T) {
	recs := records(t, fakeBundle(4, -1), []int64{1, 2})
	s, _ := NewSummary(Dims{Repeats: 3, People: 4})
	for r, rec := range recs {
		s.MergeRepeat(r, rec)
	}
	s.MarkFailed(2, 0, errBoom)

	if got := s.NewCases(0, 3); !reflect.DeepEqual(got, []float64{0, 1, 0}) {
		t.Fatalf("new cases %v", got)
	}
	if got := s.CumulativeCases(0, 3); !reflect.DeepEqual(got, []float64{0, 1, 1}) {
		t.Fatalf("cumulative cases %v", got)
	}
	if got := s.NewCases(0, 1); got[0] != 0 {
		t.Fatal("positives after the window must be dropped")
	}
	curves := s.CaseCurves(2)
	if r, c := curves.Dims(); r != 3 || c != 2 || curves.At(1, 1) != 1 || curves.At(2, 1) != 0 {
		t.Fatalf("curves %v", curves)
	}
	if s.TotalInfected(0) != 1 || s.ReproductionNumber(0) != 2 {
		t.Fatalf("infected %d R %v", s.TotalInfected(0), s.ReproductionNumber(0))
	}
	st := s.Stats()
	if st[0].Name != "infected" || st[0].N != 2 || st[0].Mean != 1 || st[0].StdDev != 0 {
		t.Fatalf("stats %+v", st[0])
	}
}

func TestFromSingleRun(t *testing.T) {
	recs := records(t, fakeBundle(3, -1), []int64{4})
	s, err := FromSingleRun(recs[0], 72, true)
	if err != nil {
		t.Fatal(err)
	}
	back, err := s.Record(0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Timelines, recs[0].Timelines) || !reflect.DeepEqual(back.Children, recs[0].Children) || !s.DynamicTracing {
		t.Fatal("single run summary does not reproduce the record")
	}
}

func TestEndToEnd(t *testing.T) {
	quiet(t)
	b := fakeBundle(40, -1)
	b.MakeMobility, b.MakeDisease = nil, nil
	b.Mobility.SiteLoc = append(b.Mobility.SiteLoc, mobility.Location{Lat: 47.38, Long: 8.55})
	b.Mobility.SiteType = append(b.Mobility.SiteType, 0)
	b.Distributions = disease.Distributions{
		IncubationMeanLog:    math.Log(48),
		IncubationSigmaLog:   0.3,
		PresymptomaticHours:  24,
		InfectiousHours:      120,
		SymptomaticProb:      0.6,
		FatalityByAge:        []float64{0, 0, 0, 0.01, 0.05, 0.1},
		HospitalizationByAge: []float64{0, 0, 0.02, 0.05, 0.1, 0.2},
		HospitalDelayHours:   48,
	}
	b.Params = disease.Params{BetaSite: []float64{0.5}, BetaAsymptomaticFactor: 0.5}
	b.InitialCounts = disease.InitialCounts{disease.SeedIasy: 2, disease.SeedIsymNotPosi: 1}
	b.Testing = disease.Testing{Enabled: true, DelayHours: 24, SmartTracing: true, TracingWindowHours: 48}
	b.MaxTime = 24 * 7
	b.DynamicTracing = true

	s, err := LaunchParallel(context.Background(), Config{Repeats: 3, Workers: 2, Seed: 9}, b)
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 3; r++ {
		if !s.Merged(r) {
			t.Fatalf("repeat %d missing", r)
		}
		if s.TotalInfected(r) < 3 {
			t.Fatalf("repeat %d lost its seeds", r)
		}
		for p := 0; p < s.People; p++ {
			tl := s.Timeline(r, p)
			if err := tl.Validate(); err != nil {
				t.Fatalf("repeat %d person %d: %v", r, p, err)
			}
		}
	}
	if st := s.Stats(); st[0].N != 3 {
		t.Fatalf("stats %+v", st)
	}
}
