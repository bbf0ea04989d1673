package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGet(t *testing.T) {
	s := New([]int{70, 5}, 3)

	require.NoError(t, s.Set(5, 2, 1.5))
	assert.Equal(t, 1.5, s.Get(5, 2))
	assert.Zero(t, s.Get(5, 3))
	assert.Error(t, s.Set(5, 3, 1), "out of range")
	assert.Error(t, s.Set(9, 0, 1), "unknown species")
	assert.Equal(t, []int{5, 70}, s.Nodes())
}

func TestStore_SeriesIsCopy(t *testing.T) {
	s := New([]int{1}, 2)
	_ = s.Set(1, 0, 4)
	ser, ok := s.Series(1)
	require.True(t, ok, "Series(1) missing")
	ser[0] = 99
	assert.Equal(t, 4.0, s.Get(1, 0), "mutating the copy changed the store")
}

func TestStore_StateRoundTrip(t *testing.T) {
	nodes := []int{5, 70}
	s := New(nodes, 2)
	require.NoError(t, s.Fill(5, []float64{2000, 0, 7}))
	_ = s.Set(70, 0, 2494)

	state := s.State(nodes, 0, 1000)
	assert.Equal(t, []float64{2, 2.494}, state)
	require.NoError(t, s.SetState(nodes, 1, state, 1000))
	assert.InDelta(t, 2494, s.Get(70, 1), 1e-9)
	assert.Error(t, s.SetState(nodes, 1, []float64{1}, 1000), "length mismatch")
}

func TestNewEcosystem_Separate(t *testing.T) {
	e := NewEcosystem([]int{1}, 2)
	_ = e.Observed.Set(1, 0, 3)
	assert.Zero(t, e.Calculated.Get(1, 0))
}
