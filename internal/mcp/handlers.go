package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/atnsim/internal/constants"
	"github.com/nvandessel/atnsim/internal/engine"
	"github.com/nvandessel/atnsim/internal/foodweb"
	"github.com/nvandessel/atnsim/internal/integrator"
	"github.com/nvandessel/atnsim/internal/report"
	"github.com/nvandessel/atnsim/internal/sanitize"
)

const jobResourcePrefix = "atnsim://jobs/"

// registerTools registers all simulation tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "replicate_job",
		Description: "Integrate a stored simulation job and return its biomass and contribution report as CSV",
	}, s.handleReplicateJob)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "run_reference_test",
		Description: "Integrate a reference equation set with a known analytic solution and compare",
	}, s.handleReferenceTest)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "describe_foodweb",
		Description: "Render the relationship graph of a stored job as a CSV path table, DOT or JSON",
	}, s.handleDescribeFoodweb)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "list_jobs",
		Description: "List stored simulation jobs",
	}, s.handleListJobs)

	return nil
}

// registerResources registers the job resource template.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: jobResourcePrefix + "{id}",
		Name:        "atnsim-job",
		Description: "Node configuration, timesteps and feeding links of a stored simulation job.",
		MIMEType:    "text/markdown",
	}, s.handleJobResource)
}

func (s *Server) handleReplicateJob(ctx context.Context, req *sdk.CallToolRequest, args ReplicateJobInput) (_ *sdk.CallToolResult, _ ReplicateJobOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("replicate_job", start, retErr, map[string]string{"job_id": strconv.Itoa(args.JobID)})
	}()
	if err := s.limiters.Check("replicate_job"); err != nil {
		return nil, ReplicateJobOutput{}, err
	}

	job, err := s.store.LoadJob(ctx, args.JobID)
	if err != nil {
		return nil, ReplicateJobOutput{}, err
	}

	res, err := s.engine.ProcessSimJob(ctx, engine.NewJobContext(job))
	var div *integrator.DivergenceError
	if err != nil && !(errors.As(err, &div) && res != nil) {
		return nil, ReplicateJobOutput{}, err
	}

	table, err := res.Table()
	if err != nil {
		return nil, ReplicateJobOutput{}, fmt.Errorf("assemble report: %w", err)
	}
	precision := s.precision
	if args.Precision != nil {
		precision = *args.Precision
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, table, precision); err != nil {
		return nil, ReplicateJobOutput{}, err
	}

	out := ReplicateJobOutput{
		JobID:        job.ID,
		RunID:        res.RunID.String(),
		Species:      res.Nodes,
		Timesteps:    job.Timesteps,
		LastTimestep: res.LastTimestep,
		Diverged:     res.Partial(),
		ElapsedMs:    res.Elapsed.Milliseconds(),
		CSV:          buf.String(),
	}
	if res.Divergence != nil {
		out.Divergence = res.Divergence.Error()
	}
	for _, id := range res.Nodes {
		for ts := 0; ts <= res.LastTimestep; ts++ {
			if v := res.Ecosystem.Calculated.Get(id, ts); v > out.MaxBiomass {
				out.MaxBiomass = v
			}
		}
	}
	return nil, out, nil
}

func (s *Server) handleReferenceTest(ctx context.Context, req *sdk.CallToolRequest, args ReferenceTestInput) (_ *sdk.CallToolResult, _ ReferenceTestOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("run_reference_test", start, retErr, map[string]string{"equation_set": args.EquationSet})
	}()
	if err := s.limiters.Check("run_reference_test"); err != nil {
		return nil, ReferenceTestOutput{}, err
	}

	set, err := integrator.ParseEquationSet(args.EquationSet)
	if err != nil {
		return nil, ReferenceTestOutput{}, err
	}
	steps := args.Steps
	if steps == 0 {
		steps = constants.DefaultReferenceTimesteps
	}

	ds, err := s.engine.GenODETestDataset(ctx, set, steps)
	var div *integrator.DivergenceError
	if err != nil && !(errors.As(err, &div) && ds != nil) {
		return nil, ReferenceTestOutput{}, err
	}

	return nil, ReferenceTestOutput{
		EquationSet: set.String(),
		X:           ds.X,
		Exact:       ds.Exact,
		Computed:    ds.Computed,
		Valid:       ds.Valid,
		MaxAbsError: ds.MaxAbsError(),
		Diverged:    ds.Divergence != nil,
	}, nil
}

func (s *Server) handleDescribeFoodweb(ctx context.Context, req *sdk.CallToolRequest, args DescribeFoodwebInput) (_ *sdk.CallToolResult, _ DescribeFoodwebOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("describe_foodweb", start, retErr, map[string]string{
			"job_id": strconv.Itoa(args.JobID),
			"format": args.Format,
		})
	}()
	if err := s.limiters.Check("describe_foodweb"); err != nil {
		return nil, DescribeFoodwebOutput{}, err
	}

	job, err := s.store.LoadJob(ctx, args.JobID)
	if err != nil {
		return nil, DescribeFoodwebOutput{}, err
	}
	nodes, err := job.NodeIDs()
	if err != nil {
		return nil, DescribeFoodwebOutput{}, err
	}
	sort.Ints(nodes)
	g, err := engine.JobGraph(job, nodes)
	if err != nil {
		return nil, DescribeFoodwebOutput{}, err
	}

	format := foodweb.Format(args.Format)
	if format == "" {
		format = foodweb.FormatCSV
	}
	out := DescribeFoodwebOutput{JobID: job.ID, Format: string(format), Species: nodes}
	for _, id := range nodes {
		if g.IsProducer(id) {
			out.Producers = append(out.Producers, id)
		}
	}

	switch format {
	case foodweb.FormatCSV:
		out.Graph, err = engine.RelationshipTable(job)
	case foodweb.FormatDOT:
		out.Graph = foodweb.RenderDOT(g, nil, true)
	case foodweb.FormatJSON:
		var data []byte
		data, err = foodweb.RenderJSON(g, nil)
		out.Graph = string(data)
	default:
		err = fmt.Errorf("unsupported format %q (valid: csv, dot, json)", format)
	}
	if err != nil {
		return nil, DescribeFoodwebOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) handleListJobs(ctx context.Context, req *sdk.CallToolRequest, args ListJobsInput) (_ *sdk.CallToolResult, _ ListJobsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("list_jobs", start, retErr, map[string]string{"unprocessed": strconv.FormatBool(args.Unprocessed)})
	}()
	if err := s.limiters.Check("list_jobs"); err != nil {
		return nil, ListJobsOutput{}, err
	}

	all, err := s.store.ListJobs(ctx)
	if err != nil {
		return nil, ListJobsOutput{}, err
	}
	out := ListJobsOutput{Jobs: []JobSummary{}}
	for _, j := range all {
		if args.Unprocessed && j.Processed {
			continue
		}
		species := 0
		if ids, err := j.NodeIDs(); err == nil {
			species = len(ids)
		}
		out.Jobs = append(out.Jobs, JobSummary{
			ID:          j.ID,
			Description: sanitize.Description(j.Description),
			Timesteps:   j.Timesteps,
			Species:     species,
			Include:     j.Include,
			Processed:   j.Processed,
		})
	}
	out.Count = len(out.Jobs)
	return nil, out, nil
}

// handleJobResource renders one job as markdown.
// URI format: atnsim://jobs/{id}
func (s *Server) handleJobResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, jobResourcePrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id, err := strconv.Atoi(strings.TrimPrefix(uri, jobResourcePrefix))
	if err != nil {
		return nil, fmt.Errorf("invalid job id in %s: %w", uri, err)
	}
	job, err := s.store.LoadJob(ctx, id)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Job %d\n\n", job.ID)
	if job.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", sanitize.Description(job.Description))
	}
	fmt.Fprintf(&sb, "**Timesteps:** %d\n", job.Timesteps)
	fmt.Fprintf(&sb, "**Node config:** `%s`\n", sanitize.InlineCode(job.NodeConfig))
	fmt.Fprintf(&sb, "**Include:** %t  **Processed:** %t\n", job.Include, job.Processed)
	if preds := job.PredatorIDs(); len(preds) > 0 {
		sb.WriteString("\n## Feeding links\n\n")
		for _, p := range preds {
			prey := make([]string, len(job.Links[p]))
			for i, v := range job.Links[p] {
				prey[i] = strconv.Itoa(v)
			}
			fmt.Fprintf(&sb, "- %d eats %s\n", p, strings.Join(prey, ", "))
		}
	}
	if job.RelationshipCSV != "" {
		sb.WriteString("\nA relationship table is stored with this job.\n")
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}
