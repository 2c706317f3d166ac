package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ppiankov/chapterfeed/internal/model"
	"github.com/ppiankov/chapterfeed/internal/pipeline"
	"github.com/ppiankov/chapterfeed/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// buildOptions holds flag values that override the loaded configuration
type buildOptions struct {
	feedURL    string
	output     string
	series     string
	policy     string
	attempts   int
	timeout    time.Duration
	noCache    bool
	cacheDir   string
	robots     bool
	httpProxy  string
	httpsProxy string
	userAgent  string
}

var buildOpts buildOptions

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Fetch the upstream feed and write the sorted chapter feed",
	Long: `Build fetches the configured upstream feed, extracts series, chapter and
arc from every entry, sorts chapters newest first and writes the result.

Exit codes:
  0  feed written
  1  configuration or write error
  2  no valid chapters found (no file written)
  3  upstream feed could not be fetched or parsed

Example:
  chapterfeed build
  chapterfeed build --feed-url https://siftrss.com/f/eqw6xQQQK8q --output feed.xml
  chapterfeed build --series "Quick Transmigration" --policy strict`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd.Flags(), &buildOpts)
}

func addBuildFlags(fs *pflag.FlagSet, o *buildOptions) {
	// Feed flags
	fs.StringVar(&o.feedURL, "feed-url", "", "upstream feed URL")
	fs.StringVarP(&o.output, "output", "o", "", "output feed path")
	fs.StringVar(&o.series, "series", "", "only keep entries whose title contains this text")
	fs.StringVar(&o.policy, "policy", "", "extraction policy for unparsed titles: degrade or strict")

	// HTTP flags
	fs.IntVar(&o.attempts, "attempts", 1, "fetch attempts; more than 1 retries transient failures")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "HTTP timeout")
	fs.StringVar(&o.userAgent, "ua", "", "HTTP User-Agent")
	fs.BoolVar(&o.robots, "robots", false, "respect robots.txt of the upstream host")
	fs.StringVar(&o.httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	fs.StringVar(&o.httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// Cache flags
	fs.BoolVar(&o.noCache, "no-cache", false, "disable cache (force fresh fetch)")
	fs.StringVar(&o.cacheDir, "cache-dir", "", "persist fetched feeds in this directory")
}

// apply copies every flag the user set onto cfg
func (o *buildOptions) apply(fs *pflag.FlagSet, cfg *model.Config) error {
	if fs.Changed("feed-url") {
		cfg.Feed.URL = o.feedURL
	}
	if fs.Changed("output") {
		cfg.Output.Path = o.output
	}
	if fs.Changed("series") {
		cfg.Feed.SeriesFilter = o.series
	}
	if fs.Changed("policy") {
		policy, err := model.ParsePolicy(o.policy)
		if err != nil {
			return err
		}
		cfg.Extraction.Policy = policy
	}
	if fs.Changed("attempts") {
		cfg.HTTP.Attempts = o.attempts
	}
	if fs.Changed("timeout") {
		cfg.HTTP.Timeout = o.timeout
	}
	if fs.Changed("ua") {
		cfg.HTTP.UserAgent = o.userAgent
	}
	if fs.Changed("robots") {
		cfg.HTTP.RespectRobots = o.robots
	}
	if fs.Changed("http-proxy") {
		cfg.HTTP.HTTPProxy = o.httpProxy
	}
	if fs.Changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = o.httpsProxy
	}
	if fs.Changed("cache-dir") {
		cfg.Cache.Dir = o.cacheDir
	}
	if o.noCache {
		cfg.Cache.Enabled = false
	}
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if err := buildOpts.apply(cmd.Flags(), cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	_, err = build(ctx, cfg, getLogger(), cmd.OutOrStdout())
	return err
}

// build runs one pipeline and prints the confirmation to out
func build(ctx context.Context, cfg *model.Config, log *zap.Logger, out io.Writer) (*pipeline.Result, error) {
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	p, err := pipeline.New(cfg, log, pipeline.WithLimiter(limiter))
	if err != nil {
		return nil, err
	}

	result, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "✓ Wrote %s (%d items, first item: Chapter %d)\n",
		result.OutputPath, len(result.Records), result.TopChapter())
	return result, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
