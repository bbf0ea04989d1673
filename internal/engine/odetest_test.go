package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/atnsim/internal/constants"
	"github.com/nvandessel/atnsim/internal/integrator"
)

func TestGenODETestDataset_Test2(t *testing.T) {
	e := newEngine(t, nil)

	ds, err := e.GenODETestDataset(context.Background(), integrator.ReferenceTest2, constants.DefaultReferenceTimesteps)
	require.NoError(t, err)
	require.Equal(t, 20, ds.Valid)

	assert.InDelta(t, 0.0, ds.X[0], 1e-15)
	assert.InDelta(t, 0.38, ds.X[19], 1e-12)
	assert.Less(t, ds.MaxAbsError(), 20*constants.DefaultMaxError)

	table := ds.Table()
	assert.Equal(t, "x", table.HeaderLabel)
	assert.Equal(t, "0.0000", table.Header[0])
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "exact", table.Rows[0].Label)
	assert.Equal(t, "calc", table.Rows[1].Label)
}

func TestGenODETestDataset_Test1BeforePole(t *testing.T) {
	e := newEngine(t, nil)

	ds, err := e.GenODETestDataset(context.Background(), integrator.ReferenceTest1, constants.DefaultReferenceTimesteps)
	if err != nil {
		var div *integrator.DivergenceError
		require.ErrorAs(t, err, &div)
		require.NotNil(t, ds)
	}
	require.GreaterOrEqual(t, ds.Valid, 5)

	for k := 0; k < ds.Valid && ds.X[k] < math.Pi/2; k++ {
		bound := constants.DefaultMaxError * math.Max(1, math.Abs(ds.Exact[k])) * float64(k+1)
		assert.InDelta(t, ds.Exact[k], ds.Computed[k], bound, "x=%.4f", ds.X[k])
	}
}

func TestGenODETestDataset_RejectsATN(t *testing.T) {
	_, err := newEngine(t, nil).GenODETestDataset(context.Background(), integrator.ATN, 20)
	assert.Error(t, err)
}
