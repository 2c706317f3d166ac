package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ppiankov/chapterfeed/internal/model"
	"github.com/ppiankov/chapterfeed/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// JobSpec is one feed build of a batch
type JobSpec struct {
	Name   string
	Config *model.Config
}

// Builder runs a single feed build
type Builder interface {
	Build(ctx context.Context, job JobSpec) (*pipeline.Result, error)
}

// BuildJob wraps a JobSpec for the pool
type BuildJob struct {
	Index   int
	Spec    JobSpec
	Builder Builder
}

// Execute executes the build job
func (j *BuildJob) Execute(ctx context.Context) Result {
	result, err := j.Builder.Build(ctx, j.Spec)
	return &BuildResult{
		Index:  j.Index,
		Name:   j.Spec.Name,
		Result: result,
		Error:  err,
	}
}

// BuildResult represents the outcome of a build job
type BuildResult struct {
	Index  int
	Name   string
	Result *pipeline.Result
	Error  error
}

// GetError returns the error from the build result
func (r *BuildResult) GetError() error {
	return r.Error
}

// BatchProcessor runs multiple builds concurrently
type BatchProcessor struct {
	builder     Builder
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(builder Builder, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		builder:     builder,
		concurrency: concurrency,
	}
}

// ProcessJobs runs every job and returns the results in job order
func (b *BatchProcessor) ProcessJobs(ctx context.Context, jobs []JobSpec) []*BuildResult {
	if len(jobs) == 0 {
		return []*BuildResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, spec := range jobs {
		if ctx.Err() != nil {
			break
		}
		pool.Submit(&BuildJob{Index: i, Spec: spec, Builder: b.builder})
	}

	// Queued jobs are dropped once the batch is cancelled
	if ctx.Err() != nil {
		pool.Shutdown()
	}
	results := pool.Wait()

	out := make([]*BuildResult, 0, len(jobs))
	seen := make(map[int]bool, len(results))
	for _, r := range results {
		br := r.(*BuildResult)
		seen[br.Index] = true
		out = append(out, br)
	}

	// Jobs the pool never ran still get a result
	for i, spec := range jobs {
		if !seen[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out = append(out, &BuildResult{Index: i, Name: spec.Name, Error: fmt.Errorf("not started: %w", err)})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// jobsFile is the on-disk batch description
type jobsFile struct {
	Jobs []yaml.Node `yaml:"jobs"`
}

// ReadJobsFile reads a YAML jobs file. Each job overlays base, so a job only
// names what differs, typically feed, output and extraction.
func ReadJobsFile(path string, base *model.Config) ([]JobSpec, error) {
	if base == nil {
		base = model.DefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	var file jobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse jobs file: %w", err)
	}
	if len(file.Jobs) == 0 {
		return nil, fmt.Errorf("jobs file %s defines no jobs", path)
	}

	specs := make([]JobSpec, 0, len(file.Jobs))
	names := make(map[string]bool)
	outputs := make(map[string]string)

	for i := range file.Jobs {
		node := &file.Jobs[i]

		var header struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&header); err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		name := header.Name
		if name == "" {
			name = fmt.Sprintf("job-%d", i+1)
		}
		if names[name] {
			return nil, fmt.Errorf("job %d: duplicate name %q", i+1, name)
		}
		names[name] = true

		cfg := *base
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("job %q: %w", name, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("job %q: %w", name, err)
		}

		out := filepath.Clean(cfg.Output.Path)
		if other, ok := outputs[out]; ok {
			return nil, fmt.Errorf("job %q: output %s already written by job %q", name, cfg.Output.Path, other)
		}
		outputs[out] = name

		specs = append(specs, JobSpec{Name: name, Config: &cfg})
	}

	return specs, nil
}
