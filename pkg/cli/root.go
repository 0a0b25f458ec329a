// Package cli defines the command-line interface for fb2disqus.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fb2disqus/pkg/config"
	"fb2disqus/pkg/logging"
	"fb2disqus/pkg/pipeline"
)

// flagValues holds the raw command-line values. They are applied on top of
// the file and environment configuration only when the flag was set.
type flagValues struct {
	configPath string
	envFile    string

	output          string
	verbose         bool
	logLevel        string
	workers         int
	batchSize       int
	failFast        bool
	timeout         time.Duration
	retries         int
	clientType      string
	contentSelector string
	dateSelector    string
	commentStatus   string
	approved        int
	endpoint        string
	accessToken     string
	include         []string
	exclude         []string
	skipRoot        bool
}

// Execute builds the root command, runs it with args and returns any error.
// Reports and progress go to stdout, logs to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	return cmd.ExecuteContext(ctx)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	flags := &flagValues{}

	cmd := &cobra.Command{
		Use:   "fb2disqus SITEMAP [-o OUTPUT_FILE] [-v]",
		Short: "Export Facebook comments of every sitemap URL as a Disqus (WXR) import file",
		Long: "fb2disqus reads a sitemap (local file or http(s) URL), downloads the Facebook comments of every\n" +
			"URL it lists and writes a WordPress eXtended RSS file that the Disqus importer accepts.\n" +
			"Only pages with at least one comment are exported. Permalinks must not have changed.",
		Example: "  fb2disqus local_sitemap.xml\n" +
			"  fb2disqus http://example.com/remote_sitemap.xml -o my_output_file.xml -v",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usageErrorf("expected one SITEMAP argument, got %d", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runExport(cmd, flags, args[0], stdout, stderr)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	f.StringVar(&flags.envFile, "env-file", "", "dotenv file read before FB2DSQ_* environment variables")
	f.StringVarP(&flags.output, "output", "o", config.DefaultOutput, "File to save Disqus XML")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Print per-URL progress and enable debug logs")
	f.IntVarP(&flags.workers, "workers", "w", config.DefaultWorkers, "URLs processed in parallel")
	f.IntVar(&flags.batchSize, "batch-size", config.DefaultBatchSize, fmt.Sprintf("URLs per comments request (max %d)", config.MaxBatchSize))
	f.BoolVar(&flags.failFast, "fail-fast", false, "Abort on the first URL that fails instead of skipping it")
	f.DurationVar(&flags.timeout, "timeout", config.DefaultTimeout, "Per-request HTTP timeout")
	f.IntVar(&flags.retries, "retries", 0, "Retries with exponential backoff for 429, 5xx and network errors")
	f.StringVar(&flags.clientType, "client-type", "browser", "HTTP header profile (default, browser, cloudflare)")
	f.StringVar(&flags.contentSelector, "content-selector", "", "CSS selector for the page body, or \"readability\"")
	f.StringVar(&flags.dateSelector, "date-selector", "", "CSS selector for the publication date (default: sitemap lastmod)")
	f.StringVar(&flags.commentStatus, "comment-status", config.DefaultCommentStatus, "wp:comment_status of every page (open, closed)")
	f.IntVar(&flags.approved, "approved", config.DefaultApproved, "wp:comment_approved of every comment (1, 0)")
	f.StringVar(&flags.endpoint, "endpoint", config.DefaultEndpoint, "Comments feed endpoint")
	f.StringVar(&flags.accessToken, "access-token", "", "Graph API access token (prefer FB2DSQ_ACCESS_TOKEN)")
	f.StringSliceVar(&flags.include, "include", nil, "Only process URLs containing one of these substrings")
	f.StringSliceVar(&flags.exclude, "exclude", nil, "Skip URLs containing one of these substrings")
	f.BoolVar(&flags.skipRoot, "skip-root", false, "Skip the site root URL")

	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newInspectCommand(flags, stdout, stderr))

	return cmd
}

// runExport loads the configuration and runs one export.
func runExport(cmd *cobra.Command, flags *flagValues, source string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd.Flags(), flags)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(stderr, logging.ParseLevel(cfg.LogLevel)).With("run", uuid.NewString())
	logger.Debug("Configuration loaded", "config", cfg.String())

	summary, err := pipeline.FromConfig(cfg, logger, stdout).Run(cmd.Context(), source)
	if err != nil {
		return err
	}

	report(stdout, logger, cfg.Output, summary)
	return nil
}

func report(w io.Writer, logger *slog.Logger, output string, summary *pipeline.Summary) {
	if len(summary.Failures) > 0 {
		logger.Warn("Some URLs were skipped", "skipped", len(summary.Failures))
	}

	if !summary.Written {
		fmt.Fprintf(w, "No URLs found in %s.\n", summary.Source)
		return
	}

	fmt.Fprintf(w, "Successfully wrote %s with comments for %d pages.\n", output, len(summary.Documents))
}

// loadConfig layers defaults, the YAML file, the environment and the flags
// that were set, then validates the result.
func loadConfig(fs *pflag.FlagSet, flags *flagValues) (*config.Config, error) {
	cfg := config.Default()

	if flags.configPath != "" {
		loaded, err := config.LoadFile(flags.configPath)
		if err != nil {
			return nil, usageErrorf("%v", err)
		}
		cfg = loaded
	}

	var dotenv map[string]string
	if flags.envFile != "" {
		vars, err := config.ReadEnvFile(flags.envFile)
		if err != nil {
			return nil, usageErrorf("%v", err)
		}
		dotenv = vars
	}

	if err := cfg.ApplyEnv(dotenv); err != nil {
		return nil, usageErrorf("%v", err)
	}

	applyFlags(fs, flags, cfg)

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageErrorf("invalid configuration: %v", err)
	}

	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, flags *flagValues, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("output", func() { cfg.Output = flags.output })
	set("verbose", func() { cfg.Verbose = flags.verbose })
	set("log-level", func() { cfg.LogLevel = flags.logLevel })
	set("workers", func() { cfg.Workers = flags.workers })
	set("batch-size", func() { cfg.Comments.BatchSize = flags.batchSize })
	set("fail-fast", func() { cfg.FailFast = flags.failFast })
	set("timeout", func() { cfg.HTTP.Timeout = flags.timeout })
	set("retries", func() { cfg.HTTP.Retries = flags.retries })
	set("client-type", func() { cfg.HTTP.ClientType = flags.clientType })
	set("content-selector", func() { cfg.Page.ContentSelector = flags.contentSelector })
	set("date-selector", func() { cfg.Page.DateSelector = flags.dateSelector })
	set("comment-status", func() { cfg.Export.CommentStatus = flags.commentStatus })
	set("approved", func() { cfg.Export.Approved = flags.approved })
	set("endpoint", func() { cfg.Comments.Endpoint = flags.endpoint })
	set("access-token", func() { cfg.Comments.AccessToken = flags.accessToken })
	set("include", func() { cfg.Filter.Include = flags.include })
	set("exclude", func() { cfg.Filter.Exclude = flags.exclude })
	set("skip-root", func() { cfg.Filter.SkipRoot = flags.skipRoot })
}
