package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"turing-log-tail/internal/api"
	"turing-log-tail/internal/config"
	"turing-log-tail/internal/console"
	"turing-log-tail/internal/logstream"
	"turing-log-tail/internal/model"
	"turing-log-tail/pkg/log"
)

// tailFlags holds the command line overrides of the tail command.
type tailFlags struct {
	project   int
	router    int
	job       int
	component string
	tail      string
	interval  string
	batchSize int
	search    string
	expr      string
	baseURL   string
	timezone  string
	noColor   bool
	watch     bool
}

var tailOpts tailFlags

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the logs of a router or job component",
	Long: `Follow the pod logs of one component of a router or job.

The last 1000 records are shown first, then new records are fetched every
poll interval until interrupted. Editing component_type or tail_lines in the
config file while tailing switches the stream without restarting.

Examples:
  logtail tail --project 1 --router 7
  logtail tail --project 1 --router 7 --component enricher --tail 100
  logtail tail --project 1 --job 3 --component driver --search error
  logtail tail --project 1 --router 7 --expr 'message'`,
	Args: cobra.NoArgs,
	RunE: runTailCmd,
}

func init() {
	f := tailCmd.Flags()
	f.IntVar(&tailOpts.project, "project", 0, "project id")
	f.IntVar(&tailOpts.router, "router", 0, "router id")
	f.IntVar(&tailOpts.job, "job", 0, "job id")
	f.StringVar(&tailOpts.component, "component", "", "component type (router, enricher, ensembler, image_builder, driver, executor)")
	f.StringVar(&tailOpts.tail, "tail", "", "initial records: 100, 1000 or start")
	f.StringVar(&tailOpts.interval, "interval", "", "poll interval, e.g. 5s")
	f.IntVar(&tailOpts.batchSize, "batch-size", 0, "records requested per incremental poll")
	f.StringVar(&tailOpts.search, "search", "", "highlight occurrences of this term")
	f.StringVar(&tailOpts.expr, "expr", "", "JMESPath expression applied to JSON payloads")
	f.StringVar(&tailOpts.baseURL, "base-url", "", "API base URL")
	f.StringVar(&tailOpts.timezone, "timezone", "", "IANA timezone for timestamps (default local)")
	f.BoolVar(&tailOpts.noColor, "no-color", false, "disable colored output")
	f.BoolVar(&tailOpts.watch, "watch", true, "apply config file edits while tailing")
	tailCmd.MarkFlagsMutuallyExclusive("router", "job")
	rootCmd.AddCommand(tailCmd)
}

// apply copies the flags reported as changed onto cfg.
func (o tailFlags) apply(changed func(name string) bool, cfg *config.Config) {
	if changed("project") {
		cfg.ProjectID = o.project
	}
	if changed("router") {
		cfg.Resource = model.ResourceRouters
		cfg.ResourceID = o.router
		if !changed("component") && !cfg.Resource.HasComponent(cfg.ComponentType) {
			cfg.ComponentType = cfg.Resource.DefaultComponent()
		}
	}
	if changed("job") {
		cfg.Resource = model.ResourceJobs
		cfg.ResourceID = o.job
		if !changed("component") && !cfg.Resource.HasComponent(cfg.ComponentType) {
			cfg.ComponentType = cfg.Resource.DefaultComponent()
		}
	}
	if changed("component") {
		cfg.ComponentType = o.component
	}
	if changed("tail") {
		cfg.TailLines = o.tail
	}
	if changed("interval") {
		cfg.PollInterval = o.interval
	}
	if changed("batch-size") {
		cfg.BatchSize = o.batchSize
	}
	if changed("search") {
		cfg.Search = o.search
	}
	if changed("expr") {
		cfg.PayloadExpression = o.expr
	}
	if changed("base-url") {
		cfg.APIBaseURL = o.baseURL
	}
	if changed("timezone") {
		cfg.Timezone = o.timezone
	}
}

func runTailCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	changed := cmd.Flags().Changed
	tailOpts.apply(changed, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.InitLog(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := &tailRun{
		cfg:       cfg,
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
		overrides: func(next *config.Config) { tailOpts.apply(changed, next) },
	}
	if tailOpts.noColor {
		run.writerOpts = append(run.writerOpts, console.WithColor(false))
	}
	if tailOpts.watch {
		if _, err := os.Stat(cfgFile); err == nil {
			run.watchPath = cfgFile
		}
	}
	return run.run(ctx)
}

// tailRun follows one resource until its context ends.
type tailRun struct {
	cfg        *config.Config
	out        io.Writer
	errOut     io.Writer
	writerOpts []console.Option
	// watchPath enables config reloads when non-empty.
	watchPath string
	// overrides re-applies command line flags to reloaded configs.
	overrides func(*config.Config)
}

func (r *tailRun) run(ctx context.Context) error {
	cfg := r.cfg
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	codec, err := logstream.NewCodec(
		logstream.WithLocation(loc),
		logstream.WithPayloadExpression(cfg.PayloadExpression),
	)
	if err != nil {
		return err
	}
	timeout, err := cfg.RequestTimeoutDuration()
	if err != nil {
		return err
	}
	var clientOpts []api.Option
	if timeout > 0 {
		clientOpts = append(clientOpts, api.WithTimeout(timeout))
	}
	client := api.NewClient(cfg.APIBaseURL, cfg.LogsPath(), clientOpts...)

	stream := logstream.NewStream(client, cfg.InitialQuery(), codec, cfg.StreamConfig())
	writer := console.NewWriter(r.out, r.errOut, append([]console.Option{console.WithSearch(cfg.Search)}, r.writerOpts...)...)
	writer.Attach(stream.Emitter())
	defer writer.Detach()

	log.Info("Tailing logs",
		"stream_id", stream.ID(),
		"resource", describe(cfg),
		"url", client.URL(model.LogsQuery{}),
		"tail_lines", cfg.TailLines,
	)
	stream.Start()

	var watcher *config.ConfigWatcher
	if r.watchPath != "" {
		watcher = config.NewConfigWatcher(r.watchPath, r.reloader(stream))
		if err := watcher.Start(ctx); err != nil {
			log.Warn("Config reload disabled", "error", err)
			watcher = nil
		}
	}

	<-ctx.Done()
	// No reload may restart the stream once teardown begins.
	if watcher != nil {
		watcher.Stop()
	}
	stream.Abort()
	stream.Close()
	log.Info("Stopped tailing", "stream_id", stream.ID(), "lines", writer.Lines(), "errors", writer.Errors())
	return nil
}

// reloader maps config edits to stream filter updates. Settings other than
// the filters take effect on the next run.
func (r *tailRun) reloader(stream *logstream.Stream) func(*config.Config) {
	current := *r.cfg
	return func(next *config.Config) {
		if r.overrides != nil {
			r.overrides(next)
		}
		if next.Resource != current.Resource || next.ResourceID != current.ResourceID || next.ProjectID != current.ProjectID {
			log.Warn("Config changed the tailed resource; restart to apply",
				"resource", next.Resource, "resource_id", strconv.Itoa(next.ResourceID))
			return
		}
		update, changed := current.FilterUpdate(next)
		if !changed {
			return
		}
		if err := stream.UpdateQuery(update); err != nil {
			log.Warn("Ignoring config change", "error", err)
			return
		}
		if update.ComponentType != nil {
			current.ComponentType = next.ComponentType
		}
		if update.TailLines != nil {
			current.TailLines = next.TailLines
		}
		q := stream.Query()
		log.Debug("Applied config change", "component_type", q.ComponentType, "tail_lines", q.TailLines.String())
	}
}

func describe(cfg *config.Config) string {
	return fmt.Sprintf("%s/%d/%s", cfg.Resource, cfg.ResourceID, cfg.ComponentType)
}
