package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/ppiankov/chapterfeed/internal/cache"
	"github.com/ppiankov/chapterfeed/internal/model"
	"github.com/ppiankov/chapterfeed/internal/pipeline"
	"github.com/ppiankov/chapterfeed/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	concurrency  int
	batchTimeout time.Duration
	batchNoCache bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <jobs.yaml>",
	Short: "Build several feeds in parallel from a jobs file",
	Long: `Batch builds every feed listed in a YAML jobs file concurrently.
Each job overlays the loaded configuration:

  jobs:
    - name: quick-transmigration
      feed:
        url: https://siftrss.com/f/eqw6xQQQK8q
        series_filter: Quick Transmigration
      output:
        path: feeds/qt.xml
    - name: villainess
      feed:
        url: https://example.com/feed
      output:
        path: feeds/villainess.xml
      extraction:
        policy: strict

Jobs share the fetch cache and the per-host rate limit. The exit code is
that of the most severe failure (3 over 2 over 1).

Example:
  chapterfeed batch jobs.yaml
  chapterfeed batch jobs.yaml --concurrency 4 --timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchNoCache, "no-cache", false, "disable cache (force fresh fetch)")
}

// pipelineBuilder runs jobs through pipelines that share one cache and limiter
type pipelineBuilder struct {
	logger  *zap.Logger
	cache   cache.Cache
	limiter pipeline.RateLimiter
}

// Build runs a single job
func (b *pipelineBuilder) Build(ctx context.Context, job worker.JobSpec) (*pipeline.Result, error) {
	p, err := pipeline.New(job.Config, b.logger.With(zap.String("job", job.Name)),
		pipeline.WithCache(b.cache),
		pipeline.WithLimiter(b.limiter),
	)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

func runBatch(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if batchNoCache {
		base.Cache.Enabled = false
	}

	jobs, err := worker.ReadJobsFile(args[0], base)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	return runJobs(ctx, base, jobs, concurrency, getLogger(), cmd.ErrOrStderr())
}

// runJobs builds every job and reports per-job outcomes to out. The returned
// error joins all job failures.
func runJobs(ctx context.Context, base *model.Config, jobs []worker.JobSpec, workers int, log *zap.Logger, out io.Writer) error {
	builder := &pipelineBuilder{
		logger:  log,
		cache:   cache.New(base.Cache),
		limiter: worker.NewLimiter(base.RateLimiting.RequestsPerSecond, base.RateLimiting.BurstSize),
	}

	fmt.Fprintf(out, "⚙️  Building %d feeds with %d workers...\n\n", len(jobs), workers)

	results := worker.NewBatchProcessor(builder, workers).ProcessJobs(ctx, jobs)

	var failures []error
	for _, r := range results {
		if r.Error != nil {
			failures = append(failures, fmt.Errorf("job %q: %w", r.Name, r.Error))
			fmt.Fprintf(out, "✗ %s: %v\n", r.Name, r.Error)
			continue
		}
		fmt.Fprintf(out, "✓ %s: %s (%d items, first item: Chapter %d)\n",
			r.Name, r.Result.OutputPath, len(r.Result.Records), r.Result.TopChapter())
	}

	fmt.Fprintf(out, "\n  Total:     %d\n", len(results))
	fmt.Fprintf(out, "  Success:   %d\n", len(results)-len(failures))
	fmt.Fprintf(out, "  Failures:  %d\n", len(failures))

	return errors.Join(failures...)
}
