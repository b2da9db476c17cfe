// simulateMobility main.go
//
// Simulate one mobility trace (and the epidemic on it when the settings carry
// a disease: section) and write it as JSON
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
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/logger"
	"github.com/blgolden/epiSim/mobility"
	"github.com/blgolden/epiSim/settings"
)

var outputFile string
var maxTime float64
var seed int64
var seedSet bool // --seed was given, 0 included

func parseArgs() string {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: simulateMobility settings [--output-file file] [--max-time hours] [--seed n]\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&outputFile, "output-file", "", "JSON file written (default sim_YYYYmmddHHMMSS.json)")
	flag.StringVar(&outputFile, "o", "", "shorthand for --output-file")
	flag.Float64Var(&maxTime, "max-time", 168, "Hours simulated")
	flag.Float64Var(&maxTime, "t", 168, "shorthand for --max-time")
	flag.Int64Var(&seed, "seed", 0, "Random number generator seed (default from the clock)")
	flag.Int64Var(&seed, "s", 0, "shorthand for --seed")
	flag.StringVar(&logger.OutputMode, "outputMode", "verbose", "'verbose'(default) or 'quiet'")
	flag.Parse()

	// flags may also follow the positional settings path
	if flag.NArg() < 1 {
		flag.Usage()
		logger.LogWriterFatal("no settings file name provided")
	}
	path := flag.Arg(0)
	if err := flag.CommandLine.Parse(flag.Args()[1:]); err != nil {
		logger.LogWriterFatal(err.Error())
	}
	if flag.NArg() > 0 {
		flag.Usage()
		logger.LogWriterFatal(fmt.Sprintf("unexpected arguments %v", flag.Args()))
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" || f.Name == "s" {
			seedSet = true
		}
	})
	return path
}

// The seed of this run, from the clock unless one was given
func runSeed(now time.Time) int64 {
	if seedSet {
		return seed
	}
	return now.UnixNano()
}

// Simulate the trace and, if the run carries a disease, the epidemic on a
// copy of it. tests is nil without a disease.
func simulate(ctx context.Context, run settings.Run, maxTime float64, seed int64) (*mobility.Trace, []mobility.TestEntry, error) {
	sim, err := mobility.New(run.Bundle.Mobility)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("Simulating %g hours of mobility (seed %d)\n", maxTime, seed)
	tr, err := sim.Simulate(ctx, maxTime, seed, run.Bundle.DynamicTracing)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("%d visits\n", len(tr.Visits))
	if !run.HasDisease {
		return tr, nil, nil
	}

	b := run.Bundle
	model, err := disease.New(tr.Clone(), b.Distributions.Clone(), seed, b.DynamicTracing)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("Launching epidemic\n")
	if err := model.LaunchEpidemic(ctx, b.Params, b.InitialCounts, b.Testing, b.Measures); err != nil {
		return nil, nil, err
	}
	tests := disease.Entries(model.TestLog)
	logger.Printf("%d tests\n", len(tests))
	return tr, tests, nil
}

func main() {
	path := parseArgs()
	now := time.Now()
	seed = runSeed(now)
	logger.Seed = seed
	if outputFile == "" {
		outputFile = now.Format("sim_20060102150405.json")
	}

	run, err := settings.Load(path)
	if err != nil {
		logger.LogWriterFatal(err.Error())
	}
	logger.Printf("Loaded %s: %d people, %d sites\n", path, run.Bundle.Mobility.NumPeople(), run.Bundle.Mobility.NumSites())

	tr, tests, err := simulate(context.Background(), run, maxTime, seed)
	if err != nil {
		logger.LogWriterFatal(err.Error())
	}

	f, err := os.Create(outputFile)
	if err != nil {
		logger.LogWriterFatal("Cannot open output file " + outputFile)
	}
	if err := mobility.WriteJSON(f, tr, now, tests); err != nil {
		f.Close()
		logger.LogWriterFatal(err.Error())
	}
	if err := f.Close(); err != nil {
		logger.LogWriterFatal(err.Error())
	}
	logger.Printf("Wrote %s\n", outputFile)
	fmt.Println("DONE!")
}
