package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/atnsim/internal/engine"
	"github.com/nvandessel/atnsim/internal/jobs"
)

func TestDemoNodeConfig(t *testing.T) {
	want := "2,[5],2000,1.000,0,0,[70],2494,13.000,1,X=0.155,0"
	assert.Equal(t, want, Demo().NodeConfig())
}

func TestScenarioJobValidates(t *testing.T) {
	for _, sc := range []Scenario{Demo(), Chain(4, 10), RandomWeb(7, 6, 2, 0.3, 10)} {
		job := sc.Job(3)
		assert.NoError(t, job.Validate(), sc.Name)
		ids, err := job.NodeIDs()
		require.NoError(t, err, sc.Name)
		assert.Len(t, ids, len(sc.Species), sc.Name)
	}
}

func TestRandomWebIsReproducible(t *testing.T) {
	a := RandomWeb(42, 8, 2, 0.25, 10)
	b := RandomWeb(42, 8, 2, 0.25, 10)
	assert.Equal(t, a.NodeConfig(), b.NodeConfig(), "node configs differ for the same seed")
	for id := 3; id <= 8; id++ {
		assert.NotEmpty(t, a.Links[id], "consumer %d has no prey", id)
		for _, prey := range a.Links[id] {
			assert.Less(t, prey, id, "consumer %d eats %d, want a lower id", id, prey)
		}
	}
}

func TestChainConserves(t *testing.T) {
	r := NewTestRunner(t)
	result := r.MustRun(Chain(4, 40))

	res := result.Results["chain-4"]
	AssertCompleted(t, res)
	AssertFinite(t, res)
	AssertConserved(t, res, 1e-6)
	AssertProducerCount(t, res, 1)
}

func TestRandomWebsConserve(t *testing.T) {
	r := NewTestRunner(t)
	scenarios := []Scenario{
		RandomWeb(1, 5, 2, 0.4, 30),
		RandomWeb(2, 7, 3, 0.3, 30),
	}
	result := r.MustRun(scenarios...)

	require.Equal(t, 2, result.Summary.Total())
	for _, sc := range scenarios {
		res, ok := result.Results[sc.Name]
		if !assert.True(t, ok, "no result for %s", sc.Name) {
			continue
		}
		AssertConserved(t, res, 1e-6)
	}
}

func TestRunnerRejectsDuplicateNames(t *testing.T) {
	e, err := engine.New(engine.DefaultOptions())
	require.NoError(t, err)
	r := NewRunner(e, jobs.NewMemoryStore())
	_, err = r.Run(context.Background(), []Scenario{Demo(), Demo()}, nil)
	assert.Error(t, err, "duplicate scenario names should fail")
}
