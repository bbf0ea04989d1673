// Package jobs loads and stores simulation jobs: the species of a food web,
// their node parameters, the historical biomass series and the feeding
// links or raw relationship table used to build the ecosystem graph.
package jobs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Job is one simulation job.
type Job struct {
	ID          int    `json:"id" yaml:"id" validate:"gte=0"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// NodeConfig lists species, initial biomass and node parameters.
	NodeConfig string `json:"node_config" yaml:"node_config" validate:"required"`
	Timesteps  int    `json:"timesteps" yaml:"timesteps" validate:"gte=2"`
	// Biomass holds the observed series per species node id.
	Biomass map[int][]float64 `json:"biomass,omitempty" yaml:"biomass,omitempty"`
	// Links maps a predator node id to the node ids it eats.
	Links map[int][]int `json:"links,omitempty" yaml:"links,omitempty"`
	// RelationshipCSV is a stored three-section relationship table. When
	// set it takes precedence over Links.
	RelationshipCSV string    `json:"relationship_csv,omitempty" yaml:"relationship_csv,omitempty"`
	Include         bool      `json:"include" yaml:"include"`
	Processed       bool      `json:"processed" yaml:"processed"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

var validate = validator.New()

// Validate checks the job record and that its node configuration parses.
func (j *Job) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("invalid job %d: %w", j.ID, err)
	}
	if _, err := ParseNodeConfig(j.NodeConfig); err != nil {
		return fmt.Errorf("invalid job %d: %w", j.ID, err)
	}
	return nil
}

// Species parses the node configuration.
func (j *Job) Species() ([]NodeSpec, error) {
	return ParseNodeConfig(j.NodeConfig)
}

// NodeIDs returns the species node ids in node configuration order.
func (j *Job) NodeIDs() ([]int, error) {
	specs, err := j.Species()
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	return ids, nil
}

// PredatorIDs returns the predators in Links, ascending.
func (j *Job) PredatorIDs() []int {
	out := make([]int, 0, len(j.Links))
	for id := range j.Links {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// NodeSpec is one species entry of a node configuration.
type NodeSpec struct {
	ID             int
	Biomass        float64
	PerUnitBiomass float64
	// NodeParams holds node parameters such as X, R and K.
	NodeParams map[string]float64
	// LinkParams holds raw per-link parameter entries.
	LinkParams map[string]string
}

// Param returns the node parameter name, or def when absent.
func (n NodeSpec) Param(name string, def float64) float64 {
	if v, ok := n.NodeParams[name]; ok {
		return v
	}
	return def
}

// ParseNodeConfig parses a node configuration string of the form
//
//	count,[id],biomass,perUnitBiomass,nodeParamCount,k=v...,linkParamCount,k=v...
//
// with one bracketed block per species, for example
// "2,[5],2000,1.000,0,0,[70],2494,13.000,1,X=0.155,0".
func ParseNodeConfig(s string) ([]NodeSpec, error) {
	tokens := strings.Split(strings.TrimSpace(s), ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	p := &tokenizer{tokens: tokens}

	count, err := p.int("node count")
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("node config: negative node count %d", count)
	}
	// Each node spends at least five tokens: [id], two biomasses and two counts.
	if count > p.remaining()/5 {
		return nil, fmt.Errorf("node config: node count %d exceeds the %d remaining tokens", count, p.remaining())
	}

	specs := make([]NodeSpec, 0, count)
	seen := make(map[int]bool, count)
	for n := 0; n < count; n++ {
		var spec NodeSpec
		raw, err := p.next("node id")
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
			return nil, fmt.Errorf("node config token %d: expected [id], got %q", p.pos-1, raw)
		}
		if spec.ID, err = strconv.Atoi(raw[1 : len(raw)-1]); err != nil {
			return nil, fmt.Errorf("node config token %d: node id: %w", p.pos-1, err)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("node config: duplicate node %d", spec.ID)
		}
		seen[spec.ID] = true

		if spec.Biomass, err = p.float("biomass"); err != nil {
			return nil, err
		}
		if spec.PerUnitBiomass, err = p.float("per-unit biomass"); err != nil {
			return nil, err
		}

		params, err := p.pairs("node parameter")
		if err != nil {
			return nil, err
		}
		spec.NodeParams = make(map[string]float64, len(params))
		for k, v := range params {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("node %d parameter %s: %w", spec.ID, k, err)
			}
			spec.NodeParams[k] = f
		}

		if spec.LinkParams, err = p.pairs("link parameter"); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("node config: %d unexpected trailing tokens", len(p.tokens)-p.pos)
	}
	return specs, nil
}

type tokenizer struct {
	tokens []string
	pos    int
}

func (p *tokenizer) remaining() int { return len(p.tokens) - p.pos }

func (p *tokenizer) next(what string) (string, error) {
	if p.pos >= len(p.tokens) {
		return "", fmt.Errorf("node config: missing %s at token %d", what, p.pos)
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, nil
}

func (p *tokenizer) int(what string) (int, error) {
	tok, err := p.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("node config token %d: %s: %w", p.pos-1, what, err)
	}
	return v, nil
}

func (p *tokenizer) float(what string) (float64, error) {
	tok, err := p.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("node config token %d: %s: %w", p.pos-1, what, err)
	}
	return v, nil
}

// pairs reads a count followed by that many key=value tokens.
func (p *tokenizer) pairs(what string) (map[string]string, error) {
	count, err := p.int(what + " count")
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("node config token %d: negative %s count", p.pos-1, what)
	}
	if count > p.remaining() {
		return nil, fmt.Errorf("node config token %d: %s count %d exceeds the %d remaining tokens", p.pos-1, what, count, p.remaining())
	}
	out := make(map[string]string, count)
	for i := 0; i < count; i++ {
		tok, err := p.next(what)
		if err != nil {
			return nil, err
		}
		k, v, ok := strings.Cut(tok, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("node config token %d: %s %q is not key=value", p.pos-1, what, tok)
		}
		out[k] = v
	}
	return out, nil
}
