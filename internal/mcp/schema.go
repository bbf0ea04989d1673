package mcp

// ReplicateJobInput defines the input for the replicate_job tool.
type ReplicateJobInput struct {
	JobID     int  `json:"job_id" jsonschema:"Id of the stored simulation job to replicate"`
	Precision *int `json:"precision,omitempty" jsonschema:"Decimals of the returned CSV cells (default from configuration)"`
}

// ReplicateJobOutput defines the output for the replicate_job tool.
type ReplicateJobOutput struct {
	JobID        int     `json:"job_id"`
	RunID        string  `json:"run_id"`
	Species      []int   `json:"species" jsonschema:"Species node ids in report order"`
	Timesteps    int     `json:"timesteps"`
	LastTimestep int     `json:"last_timestep" jsonschema:"Last timestep holding a calculated value"`
	Diverged     bool    `json:"diverged"`
	Divergence   string  `json:"divergence,omitempty" jsonschema:"Divergence message when integration stopped early"`
	ElapsedMs    int64   `json:"elapsed_ms"`
	CSV          string  `json:"csv" jsonschema:"Report table as CSV text"`
	MaxBiomass   float64 `json:"max_biomass" jsonschema:"Largest calculated biomass in raw units"`
}

// ReferenceTestInput defines the input for the run_reference_test tool.
type ReferenceTestInput struct {
	EquationSet string `json:"equation_set" jsonschema:"Reference equation set: test1 or test2"`
	Steps       int    `json:"steps,omitempty" jsonschema:"Timesteps to integrate (default 20)"`
}

// ReferenceTestOutput defines the output for the run_reference_test tool.
type ReferenceTestOutput struct {
	EquationSet string    `json:"equation_set"`
	X           []float64 `json:"x"`
	Exact       []float64 `json:"exact"`
	Computed    []float64 `json:"computed" jsonschema:"Integrated values; only the first valid entries are meaningful"`
	Valid       int       `json:"valid"`
	MaxAbsError float64   `json:"max_abs_error"`
	Diverged    bool      `json:"diverged"`
}

// DescribeFoodwebInput defines the input for the describe_foodweb tool.
type DescribeFoodwebInput struct {
	JobID  int    `json:"job_id" jsonschema:"Id of the stored simulation job"`
	Format string `json:"format,omitempty" jsonschema:"Output format: csv, dot or json (default csv)"`
}

// DescribeFoodwebOutput defines the output for the describe_foodweb tool.
type DescribeFoodwebOutput struct {
	JobID     int    `json:"job_id"`
	Format    string `json:"format"`
	Graph     string `json:"graph" jsonschema:"Rendered relationship graph"`
	Species   []int  `json:"species"`
	Producers []int  `json:"producers"`
}

// ListJobsInput defines the input for the list_jobs tool.
type ListJobsInput struct {
	Unprocessed bool `json:"unprocessed,omitempty" jsonschema:"Only list jobs not yet processed"`
}

// ListJobsOutput defines the output for the list_jobs tool.
type ListJobsOutput struct {
	Jobs  []JobSummary `json:"jobs"`
	Count int          `json:"count"`
}

// JobSummary provides a list view of a job.
type JobSummary struct {
	ID          int    `json:"id"`
	Description string `json:"description,omitempty"`
	Timesteps   int    `json:"timesteps"`
	Species     int    `json:"species"`
	Include     bool   `json:"include"`
	Processed   bool   `json:"processed"`
}
