package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoConfig = "2,[5],2000,1.000,0,0,[70],2494,13.000,1,X=0.155,0"

func TestParseNodeConfig(t *testing.T) {
	specs, err := ParseNodeConfig(demoConfig)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, 5, specs[0].ID)
	assert.Equal(t, 2000.0, specs[0].Biomass)
	assert.Equal(t, 1.0, specs[0].PerUnitBiomass)
	assert.Equal(t, 70, specs[1].ID)
	assert.Equal(t, 2494.0, specs[1].Biomass)
	assert.Equal(t, 13.0, specs[1].PerUnitBiomass)
	assert.Equal(t, 0.155, specs[1].Param("X", 0.5))
	assert.Equal(t, 0.5, specs[0].Param("X", 0.5), "default")
}

func TestParseNodeConfig_LinkParams(t *testing.T) {
	specs, err := ParseNodeConfig("1,[3], 10, 1, 2, R=1.5, K=300, 1, Y=4")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"R": 1.5, "K": 300}, specs[0].NodeParams)
	assert.Equal(t, map[string]string{"Y": "4"}, specs[0].LinkParams)
}

func TestParseNodeConfig_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad count", "two,[5],1,1,0,0"},
		{"missing brackets", "1,5,1,1,0,0"},
		{"bad id", "1,[x],1,1,0,0"},
		{"bad biomass", "1,[5],lots,1,0,0"},
		{"truncated", "2,[5],1,1,0,0"},
		{"param without value", "1,[5],1,1,1,X,0"},
		{"param not a number", "1,[5],1,1,1,X=fast,0"},
		{"trailing tokens", "1,[5],1,1,0,0,extra"},
		{"duplicate node", "2,[5],1,1,0,0,[5],1,1,0,0"},
		{"negative count", "-1"},
		{"huge node count", "9000000000000000000,[5],2000,1.000,0,0"},
		{"node count beyond tokens", "3,[5],2000,1.000,0,0,[6],1,1,0,0"},
		{"huge parameter count", "1,[5],2000,1.000,9000000000000000000,X=1,0"},
		{"huge link count", "1,[5],2000,1.000,0,9000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = ParseNodeConfig(tt.input) })
			assert.Error(t, err, "ParseNodeConfig(%q)", tt.input)
		})
	}
}

func sampleJob(id int) *Job {
	return &Job{
		ID:          id,
		Description: "atn1",
		NodeConfig:  demoConfig,
		Timesteps:   4,
		Biomass:     map[int][]float64{5: {2000, 2100, 2150, 2160}, 70: {2494, 2400}},
		Links:       map[int][]int{70: {5}},
		Include:     id%2 == 0,
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	for _, id := range []int{3, 1, 2} {
		require.NoError(t, s.SaveJob(ctx, sampleJob(id)), "SaveJob(%d)", id)
	}

	got, err := s.LoadJob(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, sampleJob(2), got)

	var missing *MissingJobError
	_, err = s.LoadJob(ctx, 99)
	if assert.ErrorAs(t, err, &missing) {
		assert.Equal(t, 99, missing.JobID)
	}

	included, err := s.IncludedJobIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, included)

	require.NoError(t, s.MarkProcessed(ctx, 1))
	assert.ErrorAs(t, s.MarkProcessed(ctx, 42), &missing)
	unprocessed, err := s.UnprocessedJobIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, unprocessed)

	// Saving again replaces links and series.
	updated := sampleJob(3)
	updated.Links = map[int][]int{5: {70}}
	updated.Biomass = nil
	require.NoError(t, s.SaveJob(ctx, updated))
	got, err = s.LoadJob(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, updated.Links, got.Links)
	assert.Nil(t, got.Biomass)

	list, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 1, list[0].ID)
	assert.True(t, list[0].Processed)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job := sampleJob(1)
	require.NoError(t, s.SaveJob(ctx, job))
	job.Links[70] = append(job.Links[70], 99)

	got, _ := s.LoadJob(ctx, 1)
	assert.Len(t, got.Links[70], 1, "stored links changed through caller's map")
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "db", "atnsim.db")
	s, err := Open(context.Background(), DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	storeContract(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "atnsim.db")

	s, err := OpenSQL(ctx, DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, s.SaveJob(ctx, sampleJob(7)))
	s.Close()

	s, err = OpenSQL(ctx, DriverSQLite, dsn)
	require.NoError(t, err, "reopen")
	defer s.Close()
	_, err = s.LoadJob(ctx, 7)
	assert.NoError(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	lite := &SQLStore{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	assert.Error(t, err)
}

func TestImportYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	content := `jobs:
  - id: 1
    description: demo
    node_config: "2,[5],2000,1.000,0,0,[70],2494,13.000,1,X=0.155,0"
    timesteps: 10
    include: true
    links:
      70: [5]
    biomass:
      5: [2000, 2010]
  - id: 2
    node_config: "1,[5],2000,1.000,0,0"
    timesteps: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewMemoryStore()
	n, err := Import(context.Background(), s, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	job, err := s.LoadJob(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, job.Include)
	assert.Equal(t, []int{5}, job.Links[70])
	assert.Equal(t, []float64{2000, 2010}, job.Biomass[5])
}

func TestParseYAML_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no jobs", "jobs: []"},
		{"missing node config", "jobs:\n  - id: 1\n    timesteps: 3\n"},
		{"too few timesteps", "jobs:\n  - id: 1\n    node_config: \"1,[5],1,1,0,0\"\n    timesteps: 1\n"},
		{"bad node config", "jobs:\n  - id: 1\n    node_config: \"1,[5]\"\n    timesteps: 3\n"},
		{"duplicate id", "jobs:\n  - id: 1\n    node_config: \"1,[5],1,1,0,0\"\n    timesteps: 3\n  - id: 1\n    node_config: \"1,[5],1,1,0,0\"\n    timesteps: 3\n"},
		{"not yaml", "jobs: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
