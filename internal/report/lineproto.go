package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names used for line-protocol output.
const (
	MeasurementBiomass      = "biomass"
	MeasurementContribution = "contribution"
)

// PointOptions stamps identity and time onto generated points.
type PointOptions struct {
	RunID string
	JobID int
	// Start is the wall time of timestep 0.
	Start time.Time
	// Interval is the wall time between timesteps.
	Interval time.Duration
}

// Points converts the valid cells of every row into InfluxDB points.
func Points(t *Table, opts PointOptions) []*write.Point {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	var out []*write.Point
	for _, r := range t.Rows {
		for c := 0; c < r.Valid && c < len(r.Values); c++ {
			var p *write.Point
			switch r.Kind {
			case RowContribution:
				p = influxdb2.NewPointWithMeasurement(MeasurementContribution).
					AddTag("i", strconv.Itoa(r.I)).
					AddTag("j", strconv.Itoa(r.J))
			case RowObserved, RowCalculated:
				p = influxdb2.NewPointWithMeasurement(MeasurementBiomass).
					AddTag("species", strconv.Itoa(r.I)).
					AddTag("series", string(r.Kind))
			default:
				p = influxdb2.NewPointWithMeasurement(r.Label)
			}
			p.AddTag("job", strconv.Itoa(opts.JobID)).
				AddField("value", r.Values[c]).
				AddField("timestep", c).
				SetTime(opts.Start.Add(time.Duration(c) * opts.Interval))
			if opts.RunID != "" {
				p.AddTag("run_id", opts.RunID)
			}
			out = append(out, p)
		}
	}
	return out
}

// WriteLineProtocol writes the table as InfluxDB line protocol, one point
// per valid cell, with nanosecond timestamps.
func WriteLineProtocol(w io.Writer, t *Table, opts PointOptions) error {
	for _, p := range Points(t, opts) {
		if _, err := io.WriteString(w, write.PointToLineProtocol(p, time.Nanosecond)); err != nil {
			return fmt.Errorf("write line protocol: %w", err)
		}
	}
	return nil
}

// InfluxConfig locates an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink pushes report points to an InfluxDB server.
type InfluxSink struct {
	client influxdb2.Client
	cfg    InfluxConfig
}

// NewInfluxSink creates a sink. No connection is made until Write.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	return &InfluxSink{client: influxdb2.NewClient(cfg.URL, cfg.Token), cfg: cfg}
}

// Write sends the table's points with a blocking write.
func (s *InfluxSink) Write(ctx context.Context, t *Table, opts PointOptions) error {
	writeAPI := s.client.WriteAPIBlocking(s.cfg.Org, s.cfg.Bucket)
	if err := writeAPI.WritePoint(ctx, Points(t, opts)...); err != nil {
		return fmt.Errorf("write points to %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
