package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.atnsim/
// MUST be called for any test that loads config or opens stores
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	require.NoError(t, os.MkdirAll(tmpHome, 0700), "create temp home")
	t.Setenv("HOME", tmpHome)
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// mustExecute is execute for commands that are expected to succeed.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "atnsim %s", strings.Join(args, " "))
	return out
}

const testJobFile = `jobs:
  - id: 1
    description: grass and grazer
    node_config: "2,[5],2000,1.000,0,0,[70],2494,13.000,1,X=0.155,0"
    timesteps: 12
    include: true
    links:
      70: [5]
  - id: 2
    description: short replay
    node_config: "2,[5],2000,1.000,0,0,[70],2494,13.000,1,X=0.155,0"
    timesteps: 6
    links:
      70: [5]
`

func writeJobFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testJobFile), 0644), "write job file")
	return path
}

func TestRootCmdSubcommands(t *testing.T) {
	want := []string{"version", "run", "demo", "odetest", "graph", "jobs", "db", "mcp-server", "config"}
	root := newRootCmd()
	have := map[string]bool{}
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "root command is missing %q", name)
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	out := mustExecute(t, "version", "--json")
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got), "version output is not JSON:\n%s", out)
	assert.Equal(t, version, got["version"])
}

func TestConfigShow(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	path := filepath.Join(tmpDir, "config.yaml")
	content := `integration:
  max_error: 0.00001
output:
  format: arrow
  influx:
    url: http://localhost:8086
    token: secret-token
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out := mustExecute(t, "config", "show", "--config", path)
	assert.Contains(t, out, "format: arrow")
	assert.NotContains(t, out, "secret-token", "config show leaked the token")

	out = mustExecute(t, "config", "show", "--config", path, "--json")
	assert.NotContains(t, out, "secret-token", "config show --json leaked the token")
}

func TestConfigShow_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	path := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: parquet\n"), 0644))
	_, err := execute(t, "config", "show", "--config", path)
	assert.Error(t, err, "unknown output format")
}

func TestODETestCmd(t *testing.T) {
	isolateHome(t, t.TempDir())

	out := mustExecute(t, "odetest", "--equation-set", "test2", "--steps", "20", "--precision", "4")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, out)
	assert.True(t, strings.HasPrefix(lines[0], "x,0.0000,"), "header = %q", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "exact,"), "row 1 = %q", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "calc,"), "row 2 = %q", lines[2])
	assert.Len(t, strings.Split(lines[2], ","), 21)
}

func TestODETestCmd_RejectsATN(t *testing.T) {
	isolateHome(t, t.TempDir())
	_, err := execute(t, "odetest", "--equation-set", "atn")
	assert.Error(t, err)
}

func TestDemoCmd_WritesReport(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	outDir := filepath.Join(tmpDir, "reports")

	out := mustExecute(t, "demo", "--timesteps", "12", "--out", outDir, "--json")
	var got struct {
		JobID   int    `json:"job_id"`
		Partial bool   `json:"partial"`
		Report  string `json:"report"`
		Species []int  `json:"species"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got), "demo output is not JSON:\n%s", out)
	assert.Equal(t, 1, got.JobID)
	assert.False(t, got.Partial)
	assert.Len(t, got.Species, 2)

	data, err := os.ReadFile(filepath.Join(outDir, got.Report+".csv"))
	require.NoError(t, err, "report not written")
	assert.Contains(t, string(data), "i.70.j.5.")
}

func TestDemoCmd_ArrowFormat(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	mustExecute(t, "demo", "--timesteps", "6", "--out", tmpDir, "--format", "arrow")
	matches, _ := filepath.Glob(filepath.Join(tmpDir, "job_1_*.arrow"))
	assert.Len(t, matches, 1)
}

func TestJobsWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	dsn := filepath.Join(tmpDir, "jobs.db")
	outDir := filepath.Join(tmpDir, "out")
	store := []string{"--store", "sqlite", "--dsn", dsn}

	mustExecute(t, append([]string{"db", "init"}, store...)...)

	out := mustExecute(t, append([]string{"jobs", "import", writeJobFile(t, tmpDir)}, store...)...)
	assert.Contains(t, out, "Imported 2 job(s)")

	out = mustExecute(t, append([]string{"jobs", "list"}, store...)...)
	assert.Contains(t, out, "grass and grazer")
	assert.Contains(t, out, "short replay")

	out = mustExecute(t, append([]string{"run", "--unprocessed", "--out", outDir, "--json"}, store...)...)
	var summary struct {
		Mode      string `json:"mode"`
		Succeeded []int  `json:"succeeded"`
		Missing   []int  `json:"missing"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary), "run output is not a summary:\n%s", out)
	assert.Len(t, summary.Succeeded, 2)
	reports, _ := filepath.Glob(filepath.Join(outDir, "job_*.csv"))
	assert.Len(t, reports, 2)

	out = mustExecute(t, append([]string{"jobs", "list", "--unprocessed"}, store...)...)
	assert.Contains(t, out, "No jobs found.", "jobs still unprocessed after run")

	out = mustExecute(t, append([]string{"run", "--job", "1", "--job", "9", "--out", outDir, "--json"}, store...)...)
	summary.Missing = nil
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, []int{9}, summary.Missing)

	out = mustExecute(t, append([]string{"graph", "--job", "1", "--format", "dot"}, store...)...)
	assert.Contains(t, out, "digraph foodweb")
}

func TestRunCmd_Selection(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"none", nil, true},
		{"explicit", []string{"--job", "1", "--job", "2"}, false},
		{"included", []string{"--included"}, false},
		{"unprocessed", []string{"--unprocessed"}, false},
		{"conflicting", []string{"--job", "1", "--included"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRunCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))
			_, err := selectionFromFlags(cmd)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRenderJobGraph_UnknownFormat(t *testing.T) {
	_, err := renderJobGraph("svg", func() (string, error) { return "", nil }, nil)
	assert.Error(t, err)
}

func TestValidateOutputDir(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"existing dir", tmpDir, false},
		{"missing dir", filepath.Join(tmpDir, "new"), false},
		{"blank", "  ", true},
		{"file", file, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOutputDir(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	isolateHome(t, t.TempDir())

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "", "")
	addOutputFlags(cmd)
	addStoreFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--format", "lineproto", "--precision", "3", "--store", "memory", "--strict", "--log-level", "debug"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "lineproto", cfg.Output.Format)
	assert.Equal(t, 3, cfg.Output.Precision)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.True(t, cfg.Strict)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDBBackupRestore(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	source := []string{"--store", "sqlite", "--dsn", filepath.Join(tmpDir, "source.db")}
	target := []string{"--store", "sqlite", "--dsn", filepath.Join(tmpDir, "target.db")}

	mustExecute(t, append([]string{"jobs", "import", writeJobFile(t, tmpDir)}, source...)...)

	out := mustExecute(t, append([]string{"db", "backup", "--json", "--keep", "3"}, source...)...)
	var backed struct {
		Path string `json:"path"`
		Jobs int    `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &backed), "backup output is not JSON:\n%s", out)
	assert.Equal(t, 2, backed.Jobs)

	out = mustExecute(t, append([]string{"db", "restore", backed.Path}, target...)...)
	assert.Contains(t, out, "Restored 2 job(s)")

	out = mustExecute(t, append([]string{"jobs", "list"}, target...)...)
	assert.Contains(t, out, "grass and grazer", "restored store is missing job 1")

	stray := filepath.Join(tmpDir, "stray.snap")
	mustExecute(t, append([]string{"db", "backup", "--output", stray}, source...)...)
	_, err := execute(t, append([]string{"db", "restore", stray}, target...)...)
	assert.Error(t, err, "restore outside the backup directory should be refused")
	_, err = execute(t, append([]string{"db", "restore", stray, "--any-path"}, target...)...)
	assert.NoError(t, err, "db restore --any-path")
}
