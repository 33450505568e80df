package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vetproxy/checker"
	"vetproxy/config"
	"vetproxy/geo"
	"vetproxy/judge"
	"vetproxy/logger"
	"vetproxy/proxy"
	"vetproxy/scraper"
	"vetproxy/storage"
)

// settleGrace bounds how long shutdown waits for an in-flight cycle to
// notice cancellation before persisting and exiting anyway
const settleGrace = time.Second

// Daemon runs the scrape-check-persist cycle on a timer until stopped
type Daemon struct {
	cfg     *config.Config
	scraper *scraper.Scraper
	checker *checker.Checker
	manager *proxy.Manager
	files   *storage.FileStore
	mongo   *storage.MongoStorage
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New assembles the pipeline from configuration and seeds the pool from
// the previous run's persisted state
func New(cfg *config.Config) (*Daemon, error) {
	log := logger.WithComponent("daemon")

	scr := scraper.New()
	scr.SetMaxWorkers(cfg.Scrape.Workers)
	scr.SetTimeout(cfg.GetScrapeTimeout())
	if len(cfg.Scrape.Sources) > 0 {
		sources := make([]scraper.Source, 0, len(cfg.Scrape.Sources))
		for _, src := range cfg.Scrape.Sources {
			sources = append(sources, scraper.Source{URL: src.URL, Kind: scraper.ParseKind(src.Kind)})
		}
		scr.SetSources(sources)
	}

	resolver := geo.NewResolver()
	resolver.SetAPIURL(cfg.Geo.APIURL)
	resolver.SetTimeout(cfg.GetGeoTimeout())
	resolver.SetRateLimit(cfg.Geo.RatePerMinute)

	jdg := judge.New()
	jdg.SetEchoURL(cfg.Check.JudgeURL)

	chk := checker.New(resolver, jdg)
	chk.SetProbeURL(cfg.Check.ProbeURL)
	chk.SetTimeout(cfg.GetCheckTimeout())
	chk.SetMaxWorkers(cfg.Check.Workers)
	chk.SetSocks5(cfg.Check.Socks5)

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		cfg:     cfg,
		scraper: scr,
		checker: chk,
		manager: proxy.NewManager(),
		files:   storage.NewFileStore(cfg.Files.Cache, cfg.Files.Active),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.MongoDB.Enabled {
		mongo, err := storage.NewMongoStorage(cfg.MongoDB.DSN, cfg.MongoDB.Database, cfg.MongoDB.Collection, cfg.GetMongoTimeout())
		if err != nil {
			log.Warn().Err(err).Msg("MongoDB unavailable, continuing with file storage only")
		} else {
			d.mongo = mongo
		}
	}

	seed, err := d.files.LoadSeed()
	if err != nil {
		log.Warn().Err(err).Msg("could not load previous results")
	} else if len(seed) > 0 {
		d.manager.SeedCached(seed)
		log.Info().Int("count", len(seed)).Msg("seeded pool from previous run")
	}

	return d, nil
}

// Run executes one cycle immediately, then repeats on the configured
// interval until a shutdown signal arrives. Cycles run in their own
// goroutine so a signal can interrupt one mid-flight.
func (d *Daemon) Run() error {
	d.log.Info().
		Dur("interval", d.cfg.GetInterval()).
		Int("pool", d.manager.Len()).
		Msg("daemon starting")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	cycleDone := make(chan struct{}, 1)
	running := false
	startCycle := func() {
		if running {
			d.log.Warn().Msg("previous cycle still running, skipping this tick")
			return
		}
		running = true
		go func() {
			d.runCycle(d.ctx)
			cycleDone <- struct{}{}
		}()
	}

	startCycle()

	ticker := time.NewTicker(d.cfg.GetInterval())
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			d.log.Info().Msg("shutdown signal received")
			d.cancel()
			if running {
				select {
				case <-cycleDone:
				case <-time.After(settleGrace):
					d.log.Warn().Msg("cycle did not settle in time, persisting partial state")
				}
			}
			return d.shutdown()

		case <-cycleDone:
			running = false

		case <-ticker.C:
			startCycle()
		}
	}
}

// Stop cancels the daemon context, unblocking Run
func (d *Daemon) Stop() {
	d.cancel()
}

// runCycle performs one scrape-check-persist pass
func (d *Daemon) runCycle(ctx context.Context) {
	start := time.Now()
	d.log.Info().Msg("starting refresh cycle")

	endpoints, err := d.scraper.Scrape(ctx)
	if errors.Is(err, scraper.ErrAllSourcesFailed) {
		d.log.Error().Msg("every source failed, keeping previous pool and skipping checks")
		return
	}

	added := d.manager.AddRaw(endpoints)
	d.log.Info().Int("scraped", len(endpoints)).Int("new", added).Msg("scrape merged into pool")

	if ctx.Err() != nil {
		d.persist(ctx)
		return
	}

	candidates := d.manager.Endpoints()
	d.manager.MarkChecking(candidates)

	progress := func(checked, total int, rec *proxy.Record) {
		if rec != nil {
			d.manager.Upsert(rec)
		}
		if checked%100 == 0 || checked == total {
			d.log.Info().
				Int("checked", checked).
				Int("total", total).
				Int("active", d.manager.ActiveCount()).
				Msg("check progress")
		}
	}

	records := d.checker.CheckAll(ctx, candidates, progress)

	if ctx.Err() == nil {
		// Anything still marked checking never completed a probe this
		// run and is considered dead
		if pruned := d.manager.PruneStale(); pruned > 0 {
			d.log.Info().Int("pruned", pruned).Msg("dropped unresponsive endpoints")
		}
	}

	d.persist(ctx)

	d.log.Info().
		Int("working", len(records)).
		Int("active", d.manager.ActiveCount()).
		Int("pool", d.manager.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("refresh cycle finished")
}

// persist writes the pool to every configured store
func (d *Daemon) persist(ctx context.Context) {
	records := d.manager.Records()
	if err := d.files.SaveRecords(records); err != nil {
		d.log.Error().Err(err).Msg("could not save record cache")
	}

	active := d.manager.Active()
	endpoints := make([]string, 0, len(active))
	for _, rec := range active {
		endpoints = append(endpoints, rec.Endpoint)
	}
	if err := d.files.SaveActive(endpoints); err != nil {
		d.log.Error().Err(err).Msg("could not save active list")
	}

	if d.mongo != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := d.mongo.SaveRecords(saveCtx, active); err != nil {
			d.log.Error().Err(err).Msg("could not save records to MongoDB")
		}
	}
}

// shutdown persists final state and releases resources
func (d *Daemon) shutdown() error {
	d.log.Info().Msg("shutting down")
	d.persist(context.Background())

	if d.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.mongo.Close(ctx); err != nil {
			d.log.Warn().Err(err).Msg("error closing MongoDB connection")
		}
	}

	d.log.Info().Int("active", d.manager.ActiveCount()).Msg("daemon stopped")
	return nil
}
