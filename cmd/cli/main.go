package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vetproxy/checker"
	"vetproxy/config"
	"vetproxy/geo"
	"vetproxy/judge"
	"vetproxy/logger"
	"vetproxy/proxy"
	"vetproxy/storage"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Path to configuration file")
		action     = flag.String("action", "stats", "Action to perform: stats, check, validate")
		count      = flag.Int("count", 0, "Number of proxies to re-check (0 for all)")
		help       = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if err := logger.Init("warn", ""); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}

	switch *action {
	case "stats":
		showStats(cfg)
	case "check":
		recheckProxies(cfg, *count)
	case "validate":
		validateConfig(cfg)
	default:
		fmt.Printf("Unknown action: %s\n", *action)
		showHelp()
	}
}

func showStats(cfg *config.Config) {
	store := storage.NewFileStore(cfg.Files.Cache, cfg.Files.Active)
	records, err := store.LoadRecords()
	if err != nil {
		log.Fatalf("Error loading record cache: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("No cached records found. Run a scrape first.")
		return
	}

	manager := proxy.NewManager()
	manager.UpsertAll(records)
	manager.PrintSummary()

	fastest := manager.Fastest(10)
	if len(fastest) > 0 {
		fmt.Printf("\n⚡ Fastest proxies:\n")
		for i, rec := range fastest {
			fmt.Printf("   %d. %s (%.2fms, %s, %s)\n", i+1, rec.Endpoint, rec.LatencyMs, rec.CountryCode, rec.Privacy)
		}
	}
}

func recheckProxies(cfg *config.Config, count int) {
	store := storage.NewFileStore(cfg.Files.Cache, cfg.Files.Active)

	seed, err := store.LoadSeed()
	if err != nil {
		log.Fatalf("Error loading cached proxies: %v", err)
	}
	if len(seed) == 0 {
		fmt.Println("No cached proxies found. Run a scrape first.")
		return
	}

	manager := proxy.NewManager()
	manager.SeedCached(seed)

	candidates := manager.Endpoints()
	if count > 0 && count < len(candidates) {
		candidates = candidates[:count]
	}

	fmt.Printf("🔍 Re-checking %d of %d cached proxies...\n", len(candidates), manager.Len())

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager.MarkChecking(candidates)
	chk.CheckAll(ctx, candidates, func(checked, total int, rec *proxy.Record) {
		if rec != nil {
			manager.Upsert(rec)
		}
		if checked%100 == 0 || checked == total {
			fmt.Printf("   Progress: %d/%d (%d active)\n", checked, total, manager.ActiveCount())
		}
	})

	if ctx.Err() == nil {
		if pruned := manager.PruneStale(); pruned > 0 {
			fmt.Printf("🧹 Dropped %d unresponsive proxies\n", pruned)
		}
	} else {
		fmt.Println("\n⚠️  Interrupted, keeping unchecked proxies in the pool")
	}

	manager.PrintSummary()

	if err := store.SaveRecords(manager.Records()); err != nil {
		log.Printf("Error saving record cache: %v", err)
	}
	active := manager.Active()
	endpoints := make([]string, 0, len(active))
	for _, rec := range active {
		endpoints = append(endpoints, rec.Endpoint)
	}
	if err := store.SaveActive(endpoints); err != nil {
		log.Printf("Error saving active list: %v", err)
	}

	fmt.Println("\n✅ Re-check completed!")
}

func validateConfig(cfg *config.Config) {
	fmt.Println("🔍 Validating configuration...")

	fmt.Printf("✅ Probe URL: %s\n", cfg.Check.ProbeURL)
	fmt.Printf("✅ Judge URL: %s\n", cfg.Check.JudgeURL)
	fmt.Printf("✅ Geo API: %s\n", cfg.Geo.APIURL)
	fmt.Printf("✅ Scrape workers: %d (timeout %v)\n", cfg.Scrape.Workers, cfg.GetScrapeTimeout())
	fmt.Printf("✅ Check workers: %d (timeout %v)\n", cfg.Check.Workers, cfg.GetCheckTimeout())
	fmt.Printf("✅ Refresh interval: %v\n", cfg.GetInterval())
	fmt.Printf("✅ Record cache: %s\n", cfg.Files.Cache)
	fmt.Printf("✅ Active list: %s\n", cfg.Files.Active)

	if len(cfg.Scrape.Sources) > 0 {
		fmt.Printf("✅ Custom sources: %d\n", len(cfg.Scrape.Sources))
	} else {
		fmt.Println("✅ Sources: built-in list")
	}

	fmt.Printf("\n🗄️ MongoDB Configuration:\n")
	fmt.Printf("   Enabled: %v\n", cfg.MongoDB.Enabled)
	if cfg.MongoDB.Enabled {
		fmt.Printf("   DSN: %s\n", cfg.MongoDB.DSN)
		fmt.Printf("   Database: %s\n", cfg.MongoDB.Database)
		fmt.Printf("   Collection: %s\n", cfg.MongoDB.Collection)
		fmt.Printf("   Timeout: %v\n", cfg.GetMongoTimeout())
	}

	fmt.Println("\n✅ Configuration is valid!")
}

func showHelp() {
	fmt.Println("VetProxy Admin - Proxy Pool Management Tool")
	fmt.Println("============================================")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vetproxy-admin [flags]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  stats    - Show statistics for the cached proxy pool")
	fmt.Println("  check    - Re-check cached proxies and refresh the pool")
	fmt.Println("  validate - Validate configuration")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Show pool statistics")
	fmt.Println("  vetproxy-admin -action stats")
	fmt.Println()
	fmt.Println("  # Re-check the 50 first cached proxies")
	fmt.Println("  vetproxy-admin -action check -count 50")
	fmt.Println()
	fmt.Println("  # Validate configuration")
	fmt.Println("  vetproxy-admin -action validate")
}
