// store.go
//
// SQLite persistence of ensemble summaries and calibrations
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
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blgolden/epiSim/calibrate"
	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/ensemble"
	"github.com/blgolden/epiSim/measures"
	"github.com/blgolden/epiSim/mobility"
	"github.com/blgolden/epiSim/timeline"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("store: not found")

// Only entered categories get a person_states row; the rest are the sentinels.
const schema = `
CREATE TABLE IF NOT EXISTS ensembles (
	ensemble_id     TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	max_time        REAL NOT NULL,
	repeats         INTEGER NOT NULL,
	people          INTEGER NOT NULL,
	sites           INTEGER NOT NULL,
	dynamic_tracing INTEGER NOT NULL,
	site_loc        TEXT NOT NULL,
	home_loc        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS repeats (
	ensemble_id   TEXT NOT NULL,
	repeat        INTEGER NOT NULL,
	seed          INTEGER NOT NULL,
	error         TEXT,
	measures_json TEXT,
	tests_json    TEXT,
	PRIMARY KEY (ensemble_id, repeat),
	FOREIGN KEY (ensemble_id) REFERENCES ensembles(ensemble_id)
);

CREATE TABLE IF NOT EXISTS people (
	ensemble_id   TEXT NOT NULL,
	repeat        INTEGER NOT NULL,
	person        INTEGER NOT NULL,
	age           INTEGER NOT NULL,
	children_iasy INTEGER NOT NULL,
	children_ipre INTEGER NOT NULL,
	children_isym INTEGER NOT NULL,
	PRIMARY KEY (ensemble_id, repeat, person),
	FOREIGN KEY (ensemble_id) REFERENCES ensembles(ensemble_id)
);

CREATE TABLE IF NOT EXISTS person_states (
	ensemble_id TEXT NOT NULL,
	repeat      INTEGER NOT NULL,
	person      INTEGER NOT NULL,
	category    TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	ended_at    TEXT NOT NULL,
	PRIMARY KEY (ensemble_id, repeat, person, category),
	FOREIGN KEY (ensemble_id) REFERENCES ensembles(ensemble_id)
);

CREATE TABLE IF NOT EXISTS calibrations (
	calibration_id  TEXT PRIMARY KEY,
	ensemble_id     TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	snapshot_time   REAL NOT NULL,
	real_cases_json TEXT NOT NULL,
	cumulative_ref  INTEGER NOT NULL,
	best            INTEGER NOT NULL,
	loss            REAL NOT NULL,
	seeds_json      TEXT NOT NULL,
	FOREIGN KEY (ensemble_id) REFERENCES ensembles(ensemble_id)
);
`

// Store keeps ensembles in SQLite
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database and runs migrations
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func marshal(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

// SaveSummary writes every merged and failed row of sum. Stored traces are
// not persisted.
func (s *Store) SaveSummary(ctx context.Context, sum *ensemble.Summary) error {
	siteLoc, err := marshal(sum.SiteLoc)
	if err != nil {
		return fmt.Errorf("marshal site locations: %w", err)
	}
	homeLoc, err := marshal(sum.HomeLoc)
	if err != nil {
		return fmt.Errorf("marshal home locations: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ensembles (ensemble_id, created_at, max_time, repeats, people, sites, dynamic_tracing, site_loc, home_loc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID.String(), time.Now().UTC().Format(time.RFC3339Nano), sum.MaxTime, sum.Repeats, sum.People,
		sum.Sites, sum.DynamicTracing, siteLoc, homeLoc,
	)
	if err != nil {
		return fmt.Errorf("insert ensemble: %w", err)
	}

	insRepeat, err := tx.PrepareContext(ctx,
		`INSERT INTO repeats (ensemble_id, repeat, seed, error, measures_json, tests_json) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare repeats: %w", err)
	}
	defer insRepeat.Close()
	insPerson, err := tx.PrepareContext(ctx,
		`INSERT INTO people (ensemble_id, repeat, person, age, children_iasy, children_ipre, children_isym) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare people: %w", err)
	}
	defer insPerson.Close()
	insState, err := tx.PrepareContext(ctx,
		`INSERT INTO person_states (ensemble_id, repeat, person, category, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare person states: %w", err)
	}
	defer insState.Close()

	id := sum.ID.String()
	for r := 0; r < sum.Repeats; r++ {
		if ferr := sum.Failed(r); ferr != nil {
			if _, err := insRepeat.ExecContext(ctx, id, r, sum.Seeds[r], ferr.Error(), nil, nil); err != nil {
				return fmt.Errorf("insert repeat %d: %w", r, err)
			}
			continue
		}
		if !sum.Merged(r) {
			continue
		}
		ms, err := marshal(sum.Measures[r])
		if err != nil {
			return fmt.Errorf("marshal measures of repeat %d: %w", r, err)
		}
		tests, err := marshal(sum.Tests[r])
		if err != nil {
			return fmt.Errorf("marshal tests of repeat %d: %w", r, err)
		}
		if _, err := insRepeat.ExecContext(ctx, id, r, sum.Seeds[r], nil, ms, tests); err != nil {
			return fmt.Errorf("insert repeat %d: %w", r, err)
		}
		for p := 0; p < sum.People; p++ {
			_, err := insPerson.ExecContext(ctx, id, r, p, sum.Age(r, p),
				sum.Children(timeline.Iasy, r, p), sum.Children(timeline.Ipre, r, p), sum.Children(timeline.Isym, r, p))
			if err != nil {
				return fmt.Errorf("insert person %d/%d: %w", r, p, err)
			}
			for _, c := range timeline.All {
				if !sum.Active(c, r, p) {
					continue
				}
				iv := sum.Interval(c, r, p)
				if _, err := insState.ExecContext(ctx, id, r, p, c.String(), iv.Start.String(), iv.End.String()); err != nil {
					return fmt.Errorf("insert state %v of %d/%d: %w", c, r, p, err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadSummary rebuilds a saved summary
func (s *Store) LoadSummary(ctx context.Context, id uuid.UUID) (*ensemble.Summary, error) {
	var (
		maxTime          float64
		repeats, people  int
		sites            int
		tracing          bool
		siteLoc, homeLoc string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT max_time, repeats, people, sites, dynamic_tracing, site_loc, home_loc FROM ensembles WHERE ensemble_id = ?`,
		id.String(),
	).Scan(&maxTime, &repeats, &people, &sites, &tracing, &siteLoc, &homeLoc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ensemble %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query ensemble: %w", err)
	}

	sum, err := ensemble.NewSummary(ensemble.Dims{Repeats: repeats, People: people, MaxTime: maxTime, DynamicTracing: tracing})
	if err != nil {
		return nil, err
	}
	sum.ID = id
	var sl, hl []mobility.Location
	if err := json.Unmarshal([]byte(siteLoc), &sl); err != nil {
		return nil, fmt.Errorf("site locations: %w", err)
	}
	if err := json.Unmarshal([]byte(homeLoc), &hl); err != nil {
		return nil, fmt.Errorf("home locations: %w", err)
	}

	recs, err := s.loadRecords(ctx, id, people)
	if err != nil {
		return nil, err
	}
	for r, rec := range recs {
		if rec.failed {
			if err := sum.MarkFailed(r, rec.Seed, errors.New(rec.reason)); err != nil {
				return nil, err
			}
			continue
		}
		rec.Sites, rec.SiteLoc, rec.HomeLoc = sites, sl, hl
		if err := sum.MergeRepeat(r, rec.Record); err != nil {
			return nil, err
		}
	}
	sum.Sites, sum.SiteLoc, sum.HomeLoc = sites, sl, hl
	return sum, nil
}

type storedRecord struct {
	ensemble.Record
	failed bool
	reason string
}

func (s *Store) loadRecords(ctx context.Context, id uuid.UUID, people int) (map[int]*storedRecord, error) {
	recs := make(map[int]*storedRecord)
	rows, err := s.db.QueryContext(ctx,
		`SELECT repeat, seed, error, measures_json, tests_json FROM repeats WHERE ensemble_id = ? ORDER BY repeat`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query repeats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r         int
			seed      int64
			failed    sql.NullString
			ms, tests sql.NullString
		)
		if err := rows.Scan(&r, &seed, &failed, &ms, &tests); err != nil {
			return nil, fmt.Errorf("scan repeat: %w", err)
		}
		rec := &storedRecord{Record: ensemble.Record{Repeat: r, Seed: seed}, failed: failed.Valid, reason: failed.String}
		if !failed.Valid {
			rec.Timelines = make([]timeline.Timeline, people)
			for p := range rec.Timelines {
				rec.Timelines[p] = timeline.NewTimeline()
			}
			rec.Age = make([]int, people)
			for i := range rec.Children {
				rec.Children[i] = make([]int, people)
			}
			var ml measures.List
			if err := json.Unmarshal([]byte(ms.String), &ml); err != nil {
				return nil, fmt.Errorf("measures of repeat %d: %w", r, err)
			}
			var tl []disease.TestResult
			if err := json.Unmarshal([]byte(tests.String), &tl); err != nil {
				return nil, fmt.Errorf("tests of repeat %d: %w", r, err)
			}
			rec.Measures, rec.Tests = ml, tl
		}
		recs[r] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.db.QueryContext(ctx,
		`SELECT repeat, person, age, children_iasy, children_ipre, children_isym FROM people WHERE ensemble_id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var r, p, age int
		var ch [3]int
		if err := prows.Scan(&r, &p, &age, &ch[0], &ch[1], &ch[2]); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		rec, ok := recs[r]
		if !ok || rec.failed || p < 0 || p >= people {
			return nil, fmt.Errorf("store: person %d of repeat %d has no repeat row", p, r)
		}
		rec.Age[p] = age
		for i := range ch {
			rec.Children[i][p] = ch[i]
		}
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	srows, err := s.db.QueryContext(ctx,
		`SELECT repeat, person, category, started_at, ended_at FROM person_states WHERE ensemble_id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query person states: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var r, p int
		var cat, start, end string
		if err := srows.Scan(&r, &p, &cat, &start, &end); err != nil {
			return nil, fmt.Errorf("scan person state: %w", err)
		}
		rec, ok := recs[r]
		if !ok || rec.failed || p < 0 || p >= people {
			return nil, fmt.Errorf("store: state of person %d of repeat %d has no repeat row", p, r)
		}
		c, err := timeline.ParseCategory(cat)
		if err != nil {
			return nil, err
		}
		sb, err := timeline.ParseBound(start)
		if err != nil {
			return nil, err
		}
		eb, err := timeline.ParseBound(end)
		if err != nil {
			return nil, err
		}
		iv, err := timeline.NewInterval(sb, eb)
		if err != nil {
			return nil, err
		}
		rec.Timelines[p].Entered[c] = true
		rec.Timelines[p].Intervals[c] = iv
	}
	return recs, srows.Err()
}

// EnsembleInfo describes a saved ensemble
type EnsembleInfo struct {
	ID        uuid.UUID
	CreatedAt time.Time
	MaxTime   float64
	Repeats   int
	People    int
}

// ListEnsembles returns the saved ensembles, oldest first
func (s *Store) ListEnsembles(ctx context.Context) ([]EnsembleInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ensemble_id, created_at, max_time, repeats, people FROM ensembles ORDER BY created_at, ensemble_id`)
	if err != nil {
		return nil, fmt.Errorf("query ensembles: %w", err)
	}
	defer rows.Close()
	var out []EnsembleInfo
	for rows.Next() {
		var e EnsembleInfo
		var id, created string
		if err := rows.Scan(&id, &created, &e.MaxTime, &e.Repeats, &e.People); err != nil {
			return nil, fmt.Errorf("scan ensemble: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("ensemble id %q: %w", id, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("created_at %q: %w", created, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Calibration is a saved calibration run
type Calibration struct {
	ID         uuid.UUID
	EnsembleID uuid.UUID
	CreatedAt  time.Time
	RealCases  []int
	Options    calibrate.Options
	Result     calibrate.Result // Losses are not kept
}

// SaveCalibration records the outcome of calibrating a saved ensemble
func (s *Store) SaveCalibration(ctx context.Context, ensembleID uuid.UUID, realCases []int, opt calibrate.Options, res calibrate.Result) (uuid.UUID, error) {
	id := uuid.New()
	cases, err := marshal(realCases)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal real cases: %w", err)
	}
	seeds, err := marshal(res.Seeds.Map())
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal seeds: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO calibrations (calibration_id, ensemble_id, created_at, snapshot_time, real_cases_json, cumulative_ref, best, loss, seeds_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), ensembleID.String(), time.Now().UTC().Format(time.RFC3339Nano), res.Time, cases,
		opt.CumulativeReference, res.Best, res.Loss, seeds,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert calibration: %w", err)
	}
	return id, nil
}

// Calibrations lists the calibrations of an ensemble, oldest first
func (s *Store) Calibrations(ctx context.Context, ensembleID uuid.UUID) ([]Calibration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT calibration_id, created_at, snapshot_time, real_cases_json, cumulative_ref, best, loss, seeds_json
		 FROM calibrations WHERE ensemble_id = ? ORDER BY created_at, calibration_id`, ensembleID.String())
	if err != nil {
		return nil, fmt.Errorf("query calibrations: %w", err)
	}
	defer rows.Close()
	var out []Calibration
	for rows.Next() {
		c := Calibration{EnsembleID: ensembleID}
		var id, created, cases, seeds string
		if err := rows.Scan(&id, &created, &c.Result.Time, &cases, &c.Options.CumulativeReference, &c.Result.Best, &c.Result.Loss, &seeds); err != nil {
			return nil, fmt.Errorf("scan calibration: %w", err)
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cases), &c.RealCases); err != nil {
			return nil, fmt.Errorf("real cases: %w", err)
		}
		var m disease.InitialCounts
		if err := json.Unmarshal([]byte(seeds), &m); err != nil {
			return nil, fmt.Errorf("seeds: %w", err)
		}
		c.Result.Seeds = calibrate.SeedCounts{
			Expo:        m[disease.SeedExpo],
			Iasy:        m[disease.SeedIasy],
			Ipre:        m[disease.SeedIpre],
			IsymPosi:    m[disease.SeedIsymPosi],
			IsymNotPosi: m[disease.SeedIsymNotPosi],
			ResiPosi:    m[disease.SeedResiPosi],
			ResiNotPosi: m[disease.SeedResiNotPosi],
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
