package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/atnsim/internal/constants"
	"github.com/nvandessel/atnsim/internal/foodweb"
	"github.com/nvandessel/atnsim/internal/integrator"
	"github.com/nvandessel/atnsim/internal/jobs"
	"github.com/nvandessel/atnsim/internal/params"
)

const demoNodeConfig = "2,[5],2000,1.000,0,0,[70],2494,13.000,1,X=0.155,0"

func demoJob(id, steps int) *jobs.Job {
	return &jobs.Job{
		ID:         id,
		NodeConfig: demoNodeConfig,
		Timesteps:  steps,
		Links:      map[int][]int{70: {5}},
	}
}

func newEngine(t *testing.T, mutate func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func TestNew_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero scale", func(o *Options) { o.BiomassScale = 0 }},
		{"negative init", func(o *Options) { o.InitTimeIndex = -1 }},
		{"zero interval", func(o *Options) { o.Integration.TimeInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}
}

func TestProcessSimJob_DemoJob(t *testing.T) {
	e := newEngine(t, nil)

	res, err := e.ProcessSimJob(context.Background(), NewJobContext(demoJob(1, 20)))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, []int{5, 70}, res.Nodes)
	assert.Equal(t, 19, res.LastTimestep)
	assert.False(t, res.Partial())
	assert.Greater(t, res.Elapsed.Nanoseconds(), int64(0))

	assert.Equal(t, 2000.0, res.Ecosystem.Calculated.Get(5, 0))
	assert.Equal(t, 2494.0, res.Ecosystem.Calculated.Get(70, 0))
	for ts := 1; ts < 20; ts++ {
		for _, id := range res.Nodes {
			v := res.Ecosystem.Calculated.Get(id, ts)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "species %d t=%d", id, ts)
			assert.Greater(t, v, 0.0, "species %d t=%d", id, ts)
		}
	}

	assert.True(t, res.Graph.Feeds(70, 5))
	assert.True(t, res.Graph.IsProducer(5))
}

func TestProcessSimJob_ContributionsReconcileWithBiomassChange(t *testing.T) {
	e := newEngine(t, nil)

	res, err := e.ProcessSimJob(context.Background(), NewJobContext(demoJob(1, 30)))
	require.NoError(t, err)

	for ts := 1; ts < 30; ts++ {
		for i, id := range res.Nodes {
			delta := res.Ecosystem.Calculated.Get(id, ts) - res.Ecosystem.Calculated.Get(id, ts-1)
			sum := res.Contributions.RowSum(ts-1, i) * res.Scale
			assert.InDelta(t, delta, sum, 1e-6*math.Max(1, math.Abs(delta)), "species %d t=%d", id, ts)
		}
	}
}

func TestProcessSimJob_AttributesFlowToPreviousSlot(t *testing.T) {
	e := newEngine(t, nil)

	res, err := e.ProcessSimJob(context.Background(), NewJobContext(demoJob(1, 10)))
	require.NoError(t, err)

	for ts := 0; ts < 9; ts++ {
		assert.True(t, res.Contributions.Filled(ts), "slot %d", ts)
	}
	assert.False(t, res.Contributions.Filled(9), "the last slot has no step leading out of it")

	table, err := res.Table()
	require.NoError(t, err)
	row, ok := table.Row("i.70.j.5.")
	require.True(t, ok)
	assert.Equal(t, 9, row.Valid)
	// Predator 70 gains from eating 5 during the first step.
	assert.Greater(t, row.Values[0], 0.0)
	prey, ok := table.Row("i.5.j.70.")
	require.True(t, ok)
	assert.Less(t, prey.Values[0], 0.0)
}

func TestProcessSimJob_Idempotent(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	a, err := e.ProcessSimJob(ctx, NewJobContext(demoJob(1, 25)))
	require.NoError(t, err)
	b, err := e.ProcessSimJob(ctx, NewJobContext(demoJob(1, 25)))
	require.NoError(t, err)

	for _, id := range a.Nodes {
		sa, _ := a.Ecosystem.Calculated.Series(id)
		sb, _ := b.Ecosystem.Calculated.Series(id)
		assert.Equal(t, sa, sb, "species %d", id)
	}
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestProcessSimJob_ScaleInvariance(t *testing.T) {
	ctx := context.Background()
	base := &jobs.Job{
		ID:         1,
		NodeConfig: "2,[5],2000,1.000,1,K=10000,0,[70],2494,13.000,1,X=0.155,0",
		Timesteps:  15,
		Links:      map[int][]int{70: {5}},
	}
	doubled := &jobs.Job{
		ID:         2,
		NodeConfig: "2,[5],4000,1.000,1,K=20000,0,[70],4988,13.000,1,X=0.155,0",
		Timesteps:  15,
		Links:      map[int][]int{70: {5}},
	}

	a, err := newEngine(t, nil).ProcessSimJob(ctx, NewJobContext(base))
	require.NoError(t, err)
	b, err := newEngine(t, func(o *Options) { o.BiomassScale = 2000 }).ProcessSimJob(ctx, NewJobContext(doubled))
	require.NoError(t, err)

	for ts := 0; ts < 15; ts++ {
		for _, id := range a.Nodes {
			na := a.Ecosystem.Calculated.Get(id, ts) / a.Scale
			nb := b.Ecosystem.Calculated.Get(id, ts) / b.Scale
			assert.InDelta(t, na, nb, 1e-12, "species %d t=%d", id, ts)
		}
	}
}

func TestProcessSimJob_DivergenceKeepsPartialResult(t *testing.T) {
	e := newEngine(t, func(o *Options) {
		o.Integration.MaxOrder = 2
		o.Integration.MaxHalvings = 0
	})
	jc := NewJobContext(demoJob(1, 20))
	jc.Overrides = map[params.Param]float64{params.MaxIngestionRate: 1e9}

	res, err := e.ProcessSimJob(context.Background(), jc)
	require.Error(t, err)
	var div *integrator.DivergenceError
	require.ErrorAs(t, err, &div)
	require.NotNil(t, res)

	assert.True(t, res.Partial())
	assert.Less(t, res.LastTimestep, 19)
	assert.NotEmpty(t, res.Divergence.Table)

	table, err := res.Table()
	require.NoError(t, err)
	calc, ok := table.Row("i.5.calc")
	require.True(t, ok)
	assert.Equal(t, res.LastTimestep+1, calc.Valid)
	assert.Equal(t, 2000.0, calc.Values[0])
}

func TestProcessSimJob_StoredRelationshipTableMatchesLinks(t *testing.T) {
	ctx := context.Background()
	linked := demoJob(1, 12)
	stored := demoJob(2, 12)
	stored.RelationshipCSV = foodweb.BuildPathTable(foodweb.ConsumeMap(linked.Links), []int{5, 70}, constants.MaxPathDepth).String()
	stored.Links = nil

	e := newEngine(t, nil)
	a, err := e.ProcessSimJob(ctx, NewJobContext(linked))
	require.NoError(t, err)
	b, err := e.ProcessSimJob(ctx, NewJobContext(stored))
	require.NoError(t, err)

	for _, id := range a.Nodes {
		sa, _ := a.Ecosystem.Calculated.Series(id)
		sb, _ := b.Ecosystem.Calculated.Series(id)
		assert.Equal(t, sa, sb, "species %d", id)
	}
}

func TestProcessSimJob_MalformedRelationshipTable(t *testing.T) {
	job := demoJob(1, 10)
	job.RelationshipCSV = "predator,prey\n70,5\n\nnode,name\n5,node5,p\n"

	res, err := newEngine(t, nil).ProcessSimJob(context.Background(), NewJobContext(job))
	assert.Nil(t, res)
	var malformed *foodweb.MalformedGraphInputError
	assert.ErrorAs(t, err, &malformed)
}

func TestProcessSimJob_StrictRejectsInvalidParameters(t *testing.T) {
	src := params.DefaultSource()
	src[constants.KeyAssimilationPlant] = "1.5"

	jc := NewJobContext(demoJob(1, 10))
	_, err := newEngine(t, func(o *Options) { o.Links = src }).ProcessSimJob(context.Background(), jc)
	assert.NoError(t, err, "permissive by default")

	_, err = newEngine(t, func(o *Options) { o.Links = src; o.Strict = true }).ProcessSimJob(context.Background(), jc)
	assert.Error(t, err)
}

func TestProcessSimJob_MissingParameter(t *testing.T) {
	src := params.DefaultSource()
	delete(src, constants.KeyFunctionalResponse)

	_, err := newEngine(t, func(o *Options) { o.Links = src }).ProcessSimJob(context.Background(), NewJobContext(demoJob(1, 10)))
	var cfgErr *params.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestProcessSimJob_ObservedSeriesAndInitIndex(t *testing.T) {
	job := demoJob(1, 10)
	job.Biomass = map[int][]float64{
		5:  {1900, 1950, 2000},
		70: {2400, 2450, 2494},
	}

	res, err := newEngine(t, func(o *Options) { o.InitTimeIndex = 2 }).ProcessSimJob(context.Background(), NewJobContext(job))
	require.NoError(t, err)

	assert.Equal(t, 1950.0, res.Ecosystem.Calculated.Get(5, 1))
	assert.Equal(t, 2494.0, res.Ecosystem.Calculated.Get(70, 2))
	assert.False(t, res.Contributions.Filled(1))
	assert.True(t, res.Contributions.Filled(2))
	assert.Equal(t, 1900.0, res.Ecosystem.Observed.Get(5, 0))
}

func TestProcessSimJob_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newEngine(t, nil).ProcessSimJob(ctx, NewJobContext(demoJob(1, 10)))
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRelationshipTable(t *testing.T) {
	text, err := RelationshipTable(demoJob(1, 10))
	require.NoError(t, err)

	rows, err := foodweb.ParseTable(text)
	require.NoError(t, err)
	g, err := foodweb.BuildGraph(rows, []int{5, 70})
	require.NoError(t, err)
	assert.True(t, g.Feeds(70, 5))
}
