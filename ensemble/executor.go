// executor.go
//
// One repeat: simulate mobility, then run the epidemic on top of it
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
	"fmt"

	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/measures"
	"github.com/blgolden/epiSim/mobility"
	"github.com/blgolden/epiSim/timeline"
)

// Task is one repeat handed to a worker. The bundle is owned by the task.
type Task struct {
	Repeat        int
	Seed          int64
	Bundle        Bundle
	StoreMobility bool
}

// Record is the result of one repeat
type Record struct {
	Repeat    int
	Seed      int64
	Timelines []timeline.Timeline
	Age       []int // age category per person
	Children  [3][]int
	Measures  measures.List
	Tests     []disease.TestResult
	Sites     int
	SiteLoc   []mobility.Location
	HomeLoc   []mobility.Location
	Mobility  *mobility.Trace // only with StoreMobility
}

func (r Record) People() int { return len(r.Timelines) }

// RunRepeat executes one repeat with fresh collaborators
func RunRepeat(ctx context.Context, task Task) (Record, error) {
	b := task.Bundle
	rec := Record{Repeat: task.Repeat, Seed: task.Seed}

	sim, err := b.mobilityFactory()(b.Mobility)
	if err != nil {
		return rec, fmt.Errorf("repeat %d: mobility: %w", task.Repeat, err)
	}
	tr, err := sim.Simulate(ctx, b.MaxTime, task.Seed, b.DynamicTracing)
	if err != nil {
		return rec, fmt.Errorf("repeat %d: mobility: %w", task.Repeat, err)
	}

	model, err := b.diseaseFactory()(tr, b.Distributions, task.Seed, b.DynamicTracing)
	if err != nil {
		return rec, fmt.Errorf("repeat %d: disease: %w", task.Repeat, err)
	}
	if err := model.LaunchEpidemic(ctx, b.Params, b.InitialCounts, b.Testing, b.Measures); err != nil {
		return rec, fmt.Errorf("repeat %d: disease: %w", task.Repeat, err)
	}

	out := model.Outcome()
	if len(out.Timelines) != tr.People {
		return rec, fmt.Errorf("repeat %d: disease model returned %d timelines for %d people", task.Repeat, len(out.Timelines), tr.People)
	}
	rec.Timelines = out.Timelines
	rec.Age = append([]int(nil), tr.PeopleAge...)
	for i := range out.Children {
		rec.Children[i] = append([]int(nil), out.Children[i]...)
	}
	rec.Measures = out.Measures.Clone()
	rec.Tests = append([]disease.TestResult(nil), out.TestLog...)
	rec.Sites = tr.Sites
	rec.SiteLoc = tr.SiteLoc
	rec.HomeLoc = tr.HomeLoc
	if task.StoreMobility {
		rec.Mobility = tr
	}
	return rec, nil
}
