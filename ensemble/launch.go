// launch.go
//
// Fan repeats out over a bounded pool of goroutines and merge them into one summary
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
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/blgolden/epiSim/logger"

	"github.com/remeh/sizedwaitgroup"
	"golang.org/x/exp/rand"
)

var ErrNoRepeats = errors.New("ensemble: repeat count must be positive")

// FailurePolicy decides what a failed repeat does to the ensemble
type FailurePolicy int

const (
	AbortEnsemble FailurePolicy = iota // cancel outstanding repeats, return the first error
	RecordFailure                      // mark the repeat failed and carry on
)

func (f FailurePolicy) String() string {
	if f == RecordFailure {
		return "record"
	}
	return "abort"
}

// ParseFailurePolicy accepts "abort" and "record"
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "abort", "":
		return AbortEnsemble, nil
	case "record":
		return RecordFailure, nil
	}
	return AbortEnsemble, fmt.Errorf("ensemble: unknown failure policy %q", s)
}

type Config struct {
	Repeats       int
	Workers       int   // <= 0 uses every CPU
	Seed          int64 // master seed the repeat seeds are drawn from
	StoreMobility bool  // keep every repeat's trace in the summary
	OnFailure     FailurePolicy
}

func (c Config) Validate() error {
	if c.Repeats <= 0 {
		return fmt.Errorf("%w: got %d", ErrNoRepeats, c.Repeats)
	}
	return nil
}

// RepeatSeeds draws one distinct non-negative seed per repeat from the master
// seed, in repeat order
func RepeatSeeds(master int64, n int) []int64 {
	rng := rand.New(rand.NewSource(uint64(master)))
	seeds := make([]int64, n)
	seen := make(map[int64]bool, n)
	for i := range seeds {
		s := int64(rng.Uint64() >> 1)
		for seen[s] {
			s = int64(rng.Uint64() >> 1)
		}
		seen[s] = true
		seeds[i] = s
	}
	return seeds
}

// LaunchParallel runs cfg.Repeats independent repeats of b and blocks until
// all of them have returned
func LaunchParallel(ctx context.Context, cfg Config, b Bundle) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := b.Mobility.NumPeople()
	if b.MakeMobility == nil {
		if err := b.Mobility.Validate(); err != nil {
			return nil, err
		}
	}
	s, err := NewSummary(Dims{Repeats: cfg.Repeats, People: n, MaxTime: b.MaxTime, DynamicTracing: b.DynamicTracing})
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	start := time.Now()
	logger.Printf("Launching %d repeats on %d workers\n", cfg.Repeats, workers)

	seeds := RepeatSeeds(cfg.Seed, cfg.Repeats)
	swg := sizedwaitgroup.New(workers)
	for r := 0; r < cfg.Repeats; r++ {
		if err := swg.AddWithContext(ctx); err != nil {
			break
		}
		task := Task{Repeat: r, Seed: seeds[r], Bundle: b.Clone(), StoreMobility: cfg.StoreMobility}
		go func(task Task) {
			defer swg.Done()
			rec, err := RunRepeat(ctx, task)
			if err == nil {
				err = s.MergeRepeat(task.Repeat, rec)
			}
			if err == nil {
				logger.Printf("Repeat %d done (seed %d)\n", task.Repeat, task.Seed)
				return
			}
			if cfg.OnFailure == RecordFailure && ctx.Err() == nil {
				logger.Printf("Repeat %d failed: %v\n", task.Repeat, err)
				if merr := s.MarkFailed(task.Repeat, task.Seed, err); merr != nil {
					fail(merr)
				}
				return
			}
			fail(err)
		}(task)
	}
	swg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Printf("Ensemble of %d repeats in %v\n", cfg.Repeats, time.Since(start))
	return s, nil
}
