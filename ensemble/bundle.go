// bundle.go
//
// Everything one repeat needs, and the collaborators that run it
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

	"github.com/blgolden/epiSim/disease"
	"github.com/blgolden/epiSim/measures"
	"github.com/blgolden/epiSim/mobility"
)

// MobilitySimulator produces the visit trace of one repeat
type MobilitySimulator interface {
	Simulate(ctx context.Context, maxTime float64, seed int64, dynamicTracing bool) (*mobility.Trace, error)
}

// DiseaseModel runs an epidemic over a trace. It is used once.
type DiseaseModel interface {
	LaunchEpidemic(ctx context.Context, params disease.Params, initial disease.InitialCounts, testing disease.Testing, ml measures.List) error
	Outcome() disease.Outcome
}

type MobilityFactory func(mobility.Settings) (MobilitySimulator, error)
type DiseaseFactory func(tr *mobility.Trace, dist disease.Distributions, seed int64, dynamicTracing bool) (DiseaseModel, error)

// NewMobility builds the reference mobility simulator
func NewMobility(s mobility.Settings) (MobilitySimulator, error) {
	sim, err := mobility.New(s)
	if err != nil {
		return nil, err
	}
	return sim, nil
}

// NewDisease builds the reference disease model
func NewDisease(tr *mobility.Trace, dist disease.Distributions, seed int64, dynamicTracing bool) (DiseaseModel, error) {
	m, err := disease.New(tr, dist, seed, dynamicTracing)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Bundle is the parameter set of an ensemble. Each repeat runs on its own clone.
type Bundle struct {
	Mobility       mobility.Settings
	Distributions  disease.Distributions
	Params         disease.Params
	InitialCounts  disease.InitialCounts
	Testing        disease.Testing
	Measures       measures.List
	MaxTime        float64 // hours
	DynamicTracing bool

	// nil uses the reference implementations
	MakeMobility MobilityFactory
	MakeDisease  DiseaseFactory
}

// Clone deep copies every parameter. Factories are shared, they hold no state.
func (b Bundle) Clone() Bundle {
	c := b
	c.Mobility = b.Mobility.Clone()
	c.Distributions = b.Distributions.Clone()
	c.Params = b.Params.Clone()
	c.InitialCounts = b.InitialCounts.Clone()
	c.Measures = b.Measures.Clone()
	return c
}

func (b Bundle) mobilityFactory() MobilityFactory {
	if b.MakeMobility != nil {
		return b.MakeMobility
	}
	return NewMobility
}

func (b Bundle) diseaseFactory() DiseaseFactory {
	if b.MakeDisease != nil {
		return b.MakeDisease
	}
	return NewDisease
}
