package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"priceowl/crawlworker/config"
	"priceowl/crawlworker/internal/dispatch"
	"priceowl/crawlworker/internal/extractor"
	"priceowl/crawlworker/internal/fetch"
	"priceowl/crawlworker/internal/ingest"
	"priceowl/crawlworker/internal/job"
	"priceowl/crawlworker/internal/retailer"
	"priceowl/crawlworker/internal/sched"
	"priceowl/crawlworker/internal/stats"
	"priceowl/crawlworker/logger"
	"priceowl/crawlworker/pkg/metrics"
	"priceowl/crawlworker/services/cache"
	"priceowl/crawlworker/services/publisher"
	"priceowl/crawlworker/services/worker"
)

func main() {
	godotenv.Load()
	logger.Init()
	log := logger.Default

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer app.Close()

	switch command {
	case "serve":
		err = app.serve(ctx)
	case "dispatch":
		err = app.dispatch(ctx, args)
	case "pause":
		err = app.pause(ctx, args)
	case "resume":
		err = app.resume(ctx, args)
	case "disable":
		err = app.disable(ctx, args)
	case "enable":
		err = app.enable(ctx, args)
	case "retailers":
		err = app.listRetailers(ctx)
	case "deadletter":
		err = app.deadletter(ctx, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Command failed")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: crawlworker <command> [flags]

Commands:
  serve                                run workers, scheduler, and metrics endpoint
  dispatch [--retailer slug] [--sync] [--queue name] [--delay d] [--unlocker]
                                       enqueue (or run inline) crawl jobs
  pause <slug> [--duration d] [--reason text]
                                       exclude a retailer until the pause expires
  resume <slug>                        clear a pause explicitly
  disable <slug> [--reason text]       exclude a retailer until re-enabled
  enable <slug>                        re-activate a disabled retailer
  retailers                            list retailers with health state
  deadletter list|retry|retry-all|delete [id]
                                       inspect and replay failed jobs
`)
}

// app wires the shared services every subcommand needs
type app struct {
	cfg       *config.Config
	db        *pgxpool.Pool
	redis     *redis.Client
	pub       publisher.Publisher
	retailers retailer.Store
	stats     stats.Store
	letters   *job.PGDeadLetterStore
	queue     job.Queue
	registry  *extractor.Registry
	executor  *job.Executor
	ingester  *ingest.StreamIngester
	unlocker  *fetch.UnlockerAdapter
	log       *logger.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.ForComponent("app")

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	thresholds := retailer.Thresholds{
		Degraded: cfg.DegradedThreshold,
		Failed:   cfg.FailedThreshold,
	}
	retailerStore := retailer.NewPGStore(db, thresholds)
	if err := retailerStore.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	statStore := stats.NewPGStore(db)
	if err := statStore.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	letters := job.NewPGDeadLetterStore(db)
	if err := letters.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	pub := publisher.NewRedisPublisher(ctx, redisClient,
		cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)
	ingester := ingest.NewStreamIngester(pub)

	registry := extractor.NewRegistry()
	extractor.RegisterBuiltins(registry)

	var unlocker *fetch.UnlockerAdapter
	if len(cfg.ProxyURLs) > 0 {
		unlocker = fetch.NewUnlockerAdapter(cfg.ProxyURLs, cfg.FetchTimeout)
	}

	execCfg := job.ExecutorConfig{
		Registry:     registry,
		Retailers:    retailerStore,
		Stats:        statStore,
		Listings:     ingester,
		Reviews:      ingester,
		Notifier:     ingester,
		Standard:     fetch.NewStandardAdapter(cfg.FetchTimeout),
		Pacer:        fetch.NewPacer(cache.NewMemcacheService(cfg.MemcacheAddr)),
		DeadLetters:  letters,
		FetchTimeout: cfg.FetchTimeout,
	}
	if unlocker != nil {
		execCfg.Unlocker = unlocker
	}
	executor := job.NewExecutor(execCfg)

	return &app{
		cfg:       cfg,
		db:        db,
		redis:     redisClient,
		pub:       pub,
		retailers: retailerStore,
		stats:     statStore,
		letters:   letters,
		queue:     job.NewRedisQueue(redisClient),
		registry:  registry,
		executor:  executor,
		ingester:  ingester,
		unlocker:  unlocker,
		log:       log,
	}, nil
}

func (a *app) Close() {
	if a.pub != nil {
		a.pub.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) dispatcher() *dispatch.Dispatcher {
	return dispatch.New(a.retailers, a.registry, a.queue, a.executor,
		a.cfg.DefaultQueue, a.cfg.StaggerDelay)
}

// serve runs the long-lived process: worker pool, scheduler, and the
// metrics endpoint. It returns when the context is cancelled.
func (a *app) serve(ctx context.Context) error {
	metrics.Init()

	a.log.Info().
		Str("environment", a.cfg.Environment).
		Int("workers", a.cfg.WorkerCount).
		Str("metrics_addr", a.cfg.MetricsAddr).
		Msg("Starting crawl worker")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.WithError(err).Error().Msg("Metrics server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
	}()

	if a.unlocker != nil {
		a.unlocker.Probe(ctx)
		go func() {
			ticker := time.NewTicker(15 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					a.unlocker.Probe(ctx)
				}
			}
		}()
	}

	scheduler := sched.New(sched.Config{
		Dispatcher:    a.dispatcher(),
		Retailers:     a.retailers,
		Notifier:      a.ingester,
		Locker:        sched.NewRedisLocker(a.redis),
		Interval:      a.cfg.ScheduleInterval,
		SweepInterval: a.cfg.SweepInterval,
		LockTTL:       a.cfg.ScheduleLockTTL,
	})
	go scheduler.Run(ctx)

	pool := worker.NewPool(a.queue, a.executor, a.pub,
		[]string{a.cfg.DefaultQueue}, a.cfg.WorkerCount, a.cfg.PollInterval)
	pool.Run(ctx)

	a.log.Info().Msg("Shutting down")
	return nil
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dispatch", flag.ExitOnError)
	slug := fs.String("retailer", "", "dispatch a single retailer by slug")
	sync := fs.Bool("sync", false, "execute jobs inline instead of enqueueing")
	queue := fs.String("queue", "", "queue name override")
	delay := fs.Duration("delay", 0, "base delay before the first job")
	unlocker := fs.Bool("unlocker", false, "route fetches through the proxy unlocker")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := dispatch.Options{
		Queue:       *queue,
		Delay:       *delay,
		Sync:        *sync,
		UseUnlocker: *unlocker,
	}

	d := a.dispatcher()
	var report *dispatch.Report
	var err error
	if *slug != "" {
		report, err = d.DispatchRetailer(ctx, *slug, opts)
	} else {
		report, err = d.DispatchAll(ctx, opts)
	}
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %d job(s) dispatched\n", report.RunID, report.Total())
	for skipped, reason := range report.Skipped {
		fmt.Printf("  skipped %s: %s\n", skipped, reason)
	}
	return nil
}

func (a *app) pause(ctx context.Context, args []string) error {
	slug, rest, err := slugArg("pause", args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("pause", flag.ExitOnError)
	duration := fs.Duration("duration", a.cfg.DefaultPauseDuration, "how long the pause lasts")
	reason := fs.String("reason", "operator pause", "reason recorded in the status notification")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	before, err := a.retailers.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	after, err := a.retailers.Pause(ctx, slug, time.Now().Add(*duration))
	if err != nil {
		return err
	}
	a.notify(ctx, before, after, *reason)
	fmt.Printf("%s is %s until %s\n", slug, after.Status, after.PauseExpiry.Format(time.RFC3339))
	return nil
}

func (a *app) resume(ctx context.Context, args []string) error {
	slug, _, err := slugArg("resume", args)
	if err != nil {
		return err
	}
	before, err := a.retailers.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	after, err := a.retailers.Resume(ctx, slug)
	if err != nil {
		return err
	}
	a.notify(ctx, before, after, "operator resume")
	fmt.Printf("%s is %s\n", slug, after.Status)
	return nil
}

func (a *app) disable(ctx context.Context, args []string) error {
	slug, rest, err := slugArg("disable", args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("disable", flag.ExitOnError)
	reason := fs.String("reason", "operator disable", "reason recorded in the status notification")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	before, err := a.retailers.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	after, err := a.retailers.Disable(ctx, slug)
	if err != nil {
		return err
	}
	a.notify(ctx, before, after, *reason)
	fmt.Printf("%s is %s\n", slug, after.Status)
	return nil
}

func (a *app) enable(ctx context.Context, args []string) error {
	slug, _, err := slugArg("enable", args)
	if err != nil {
		return err
	}
	before, err := a.retailers.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	after, err := a.retailers.Enable(ctx, slug)
	if err != nil {
		return err
	}
	a.notify(ctx, before, after, "operator enable")
	fmt.Printf("%s is %s\n", slug, after.Status)
	return nil
}

func (a *app) listRetailers(ctx context.Context) error {
	retailers, err := a.retailers.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tSTATUS\tFAILURES\tEXTRACTOR\tPAUSED UNTIL\tLAST CRAWLED")
	for _, r := range retailers {
		pausedUntil := "-"
		if r.PauseExpiry != nil {
			pausedUntil = r.PauseExpiry.Format(time.RFC3339)
		}
		lastCrawled := "never"
		if r.LastCrawledAt != nil {
			lastCrawled = r.LastCrawledAt.Format(time.RFC3339)
		}
		extractorKey := r.ExtractorKey
		if extractorKey == "" {
			extractorKey = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.Slug, r.Status, r.ConsecutiveFailures, extractorKey, pausedUntil, lastCrawled)
	}
	return w.Flush()
}

func (a *app) deadletter(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: deadletter list|retry|retry-all|delete [id]")
	}
	switch args[0] {
	case "list":
		letters, err := a.letters.List(ctx, 100)
		if err != nil {
			return err
		}
		if len(letters) == 0 {
			fmt.Println("no dead letters")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRETAILER\tURL\tFAILED AT\tREASON")
		for _, d := range letters {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				d.ID, d.Job.RetailerSlug, d.Job.URL, d.FailedAt.Format(time.RFC3339), d.Reason)
		}
		return w.Flush()
	case "retry":
		if len(args) < 2 {
			return fmt.Errorf("usage: deadletter retry <id>")
		}
		if err := job.Retry(ctx, a.letters, a.queue, args[1]); err != nil {
			return err
		}
		fmt.Printf("re-enqueued %s\n", args[1])
		return nil
	case "retry-all":
		retried, err := job.RetryAll(ctx, a.letters, a.queue)
		if err != nil {
			return err
		}
		fmt.Printf("re-enqueued %d job(s)\n", retried)
		return nil
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: deadletter delete <id>")
		}
		if err := a.letters.Delete(ctx, args[1]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[1])
		return nil
	default:
		return fmt.Errorf("unknown deadletter action %q", args[0])
	}
}

func (a *app) notify(ctx context.Context, before, after *retailer.Retailer, reason string) {
	if before.Status == after.Status {
		return
	}
	change := ingest.StatusChange{
		Slug:   after.Slug,
		From:   string(before.Status),
		To:     string(after.Status),
		Reason: reason,
	}
	if err := a.ingester.NotifyStatusChange(ctx, change); err != nil {
		a.log.WithError(err).WithField("retailer", after.Slug).
			Warn().Msg("Failed to publish status change")
	}
}

// slugArg extracts the leading positional slug so the remaining args can go
// through a FlagSet
func slugArg(command string, args []string) (string, []string, error) {
	if len(args) < 1 || args[0] == "" || args[0][0] == '-' {
		return "", nil, fmt.Errorf("usage: %s <slug> [flags]", command)
	}
	return args[0], args[1:], nil
}
