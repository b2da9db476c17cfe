// starter project main.go
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
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/blgolden/epiSim/calibrate"
	"github.com/blgolden/epiSim/ensemble"
	"github.com/blgolden/epiSim/logger"
	"github.com/blgolden/epiSim/settings"
	"github.com/blgolden/epiSim/store"

	hjson "github.com/hjson/hjson-go"
)

var version string = "0.3.0"

var settingsFile *string  // hjson settings bundle
var realCasesFile *string // csv of observed daily positives
var seedTime *float64     // hour of the seed count snapshot
var cumulative *bool      // sum the observed series before comparing
var dbFile *string        // sqlite database the ensemble is saved to
var outputFile *string    // hjson file of the calibrated seed counts

var run settings.Run

// Parse the arg list looking for the settings file
func parseArgs() {

	settingsFile = flag.String("settings", "", "The hjson settings bundle (required)")
	flag.StringVar(&logger.OutputMode, "outputMode", "verbose", "'verbose'(default), 'table' or 'quiet'")
	flag.StringVar(&logger.User, "user", "admin", "user=[Username]")
	seed := flag.Int64("seed", 0, "Master random number generator seed, overrides the settings file")
	repeats := flag.Int("repeats", 0, "Number of repeats, overrides the settings file")
	cpus := flag.Int("cpus", 0, "Number of repeats run at once, overrides the settings file")
	maxTime := flag.Float64("maxTime", 0, "Hours simulated, overrides the settings file")
	storeMobility := flag.Bool("storeMobility", false, "Keep the mobility trace of every repeat")
	onFailure := flag.String("onFailure", "", "'abort' or 'record' a failed repeat, overrides the settings file")
	realCasesFile = flag.String("realCases", "", "Optional csv of observed daily positive tests to calibrate against")
	seedTime = flag.Float64("seedTime", 0, "Hour at which the calibrated repeat is snapshot")
	cumulative = flag.Bool("cumulative", false, "Sum the observed series before comparing")
	dbFile = flag.String("db", "", "Optional sqlite database the ensemble is saved to")
	outputFile = flag.String("outputFile", "", "Optional hjson file of the calibrated seed counts")
	isVersion := flag.Bool("version", false, "prints the version number of starter")

	flag.Parse()

	if *isVersion {
		fmt.Println("Version:", version)
		os.Exit(0)
	}

	if *settingsFile == "" {
		if logger.Verbose() {
			fmt.Printf("\nUsage of ./starter:\n")
			flag.PrintDefaults()
			fmt.Println()
		}
		logger.LogWriterFatal("no settings file name provided")
	}

	var err error
	run, err = settings.Load(*settingsFile)
	if err != nil {
		logger.LogWriterFatal(err.Error())
	}
	if !run.HasDisease {
		logger.LogWriterFatal("'disease:' key not found in " + *settingsFile)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			run.Config.Seed = *seed
		case "repeats":
			run.Config.Repeats = *repeats
		case "cpus":
			run.Config.Workers = *cpus
		case "maxTime":
			run.Bundle.MaxTime = *maxTime
		case "storeMobility":
			run.Config.StoreMobility = *storeMobility
		case "onFailure":
			if run.Config.OnFailure, err = ensemble.ParseFailurePolicy(*onFailure); err != nil {
				logger.LogWriterFatal(err.Error())
			}
		}
	})
	logger.Seed = run.Config.Seed
}

// Read a csv of daily counts. Either one count per line or "day,count".
func loadRealCases(r io.Reader) ([]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	var cases []int
	for i, row := range rows {
		v := strings.TrimSpace(row[len(row)-1])
		n, err := strconv.Atoi(v)
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: %q is not a count", i+1, v)
		}
		cases = append(cases, n)
	}
	return cases, nil
}

// Write the table of ensemble statistics to the screen
func publishStats(s *ensemble.Summary, elapsed time.Duration) {

	fmt.Println("\t ____________________________________________________")
	fmt.Println("\t| Statistic    |   N  |     Mean     | StdDev       |")
	fmt.Println("\t|______________|______|______________|______________|")
	for _, st := range s.Stats() {
		fmt.Printf("\t| %-12s | %4d |  %10.2f  |  %10.2f  |\n", st.Name, st.N, st.Mean, st.StdDev)
	}
	fmt.Println("\t|____________________________________________________|")
	failed := s.Repeats - len(s.Usable())
	fmt.Printf("\t *Repeats: %d (%d failed), people: %d, hours: %g\n", s.Repeats, failed, s.People, s.MaxTime)
	fmt.Printf("\t *Ensemble %s in %v\n\n", s.ID, elapsed)
}

func publishCalibration(res calibrate.Result) {

	fmt.Printf("\tBest repeat: %d, loss: %g\n", res.Best, res.Loss)
	fmt.Printf("\tSeed counts at hour %g:\n", res.Time)
	m := res.Seeds.Map()
	for _, k := range []string{"expo", "iasy", "ipre", "isym_posi", "isym_notposi", "resi_posi", "resi_notposi"} {
		fmt.Printf("\t\t%-13s %d\n", k, m[k])
	}
	fmt.Println()
}

func writeSeeds(path string, res calibrate.Result) error {
	b, err := hjson.Marshal(map[string]interface{}{
		"initialCounts": res.Seeds.Map(),
		"bestRepeat":    res.Best,
		"loss":          res.Loss,
		"seedTime":      res.Time,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0644)
}

func main() {

	parseArgs()

	if logger.Verbose() && run.Comment != "" {
		fmt.Printf("Comment: %v\n\n", run.Comment)
	}

	ctx := context.Background()
	start := time.Now()
	summary, err := ensemble.LaunchParallel(ctx, run.Config, run.Bundle)
	if err != nil {
		logger.LogWriterFatal(err.Error())
	}
	elapsed := time.Since(start)
	logger.LogWriter(fmt.Sprintf("ensemble %s: %d repeats of %d people in %v", summary.ID, summary.Repeats, summary.People, elapsed))
	for r := 0; r < summary.Repeats; r++ {
		if err := summary.Failed(r); err != nil {
			logger.LogWriter(fmt.Sprintf("ensemble %s: seed %d: %v", summary.ID, summary.Seeds[r], err))
		}
	}

	if logger.OutputMode != "quiet" {
		publishStats(summary, elapsed)
	}

	var db *store.Store
	if *dbFile != "" {
		if db, err = store.Open(*dbFile); err != nil {
			logger.LogWriterFatal(err.Error())
		}
		defer db.Close()
		if err := db.SaveSummary(ctx, summary); err != nil {
			logger.LogWriterFatal(err.Error())
		}
		logger.Printf("Saved ensemble %s to %s\n", summary.ID, *dbFile)
	}

	if *realCasesFile == "" {
		return
	}
	f, err := os.Open(*realCasesFile)
	if err != nil {
		logger.LogWriterFatal("Failed to open " + *realCasesFile)
	}
	cases, err := loadRealCases(f)
	f.Close()
	if err != nil {
		logger.LogWriterFatal(*realCasesFile + ": " + err.Error())
	}

	opt := calibrate.Options{CumulativeReference: *cumulative}
	res, err := calibrate.ExtractSeeds(summary, *seedTime, cases, opt)
	if err != nil {
		logger.LogWriterFatal(err.Error())
	}
	if logger.OutputMode != "quiet" {
		publishCalibration(res)
	}
	if db != nil {
		id, err := db.SaveCalibration(ctx, summary.ID, cases, opt, res)
		if err != nil {
			logger.LogWriterFatal(err.Error())
		}
		logger.Printf("Saved calibration %s\n", id)
	}
	if *outputFile != "" {
		if err := writeSeeds(*outputFile, res); err != nil {
			logger.LogWriterFatal("Cannot write outputFile: " + err.Error())
		}
	}
}
