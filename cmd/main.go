package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"

	"vetproxy/checker"
	"vetproxy/geo"
	"vetproxy/judge"
	"vetproxy/logger"
	"vetproxy/proxy"
	"vetproxy/scraper"
	"vetproxy/storage"
)

func main() {
	var (
		workers      = flag.Int("workers", 100, "Concurrent workers for scraping (1-9999)")
		timeout      = flag.Int("timeout", 30, "Timeout in seconds for source fetches")
		check        = flag.Bool("check", false, "Check scraped proxies")
		checkWorkers = flag.Int("check-workers", 100, "Concurrent workers for checking (1-9999)")
		checkTimeout = flag.Int("check-timeout", 5, "Timeout in seconds for proxy checks")
		probeURL     = flag.String("probe", "http://www.google.com", "URL fetched through each proxy")
		judgeURL     = flag.String("judge", "http://httpbin.org/headers", "Header-echo URL for anonymity checks")
		socks5       = flag.Bool("socks5", false, "Treat candidates as SOCKS5 proxies")
		sample       = flag.Int("sample", 0, "Check only the first N proxies (0 for all)")
		input        = flag.String("input", "", "Load endpoints from file instead of scraping")
		cacheFile    = flag.String("cache", "output/proxy_cache.json", "Record cache output file")
		activeFile   = flag.String("active", "output/active_proxies.txt", "Active endpoint list output file")
		logLevel     = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
		help         = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	if err := logger.Init(*logLevel, ""); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("🚀 VetProxy - Proxy Scraper & Checker")
	fmt.Println("=====================================")

	store := storage.NewFileStore(*cacheFile, *activeFile)

	candidates, err := collectCandidates(ctx, *input, *workers, *timeout)
	if err != nil {
		log.Fatalf("Error collecting candidates: %v", err)
	}
	if len(candidates) == 0 {
		fmt.Println("❌ No proxies found!")
		return
	}

	fmt.Printf("✅ Collected %d unique endpoints\n", len(candidates))

	manager := proxy.NewManager()
	manager.AddRaw(candidates)

	if !*check {
		if err := store.SaveActive(candidates); err != nil {
			log.Printf("Error saving endpoints: %v", err)
		} else {
			fmt.Printf("💾 Endpoints saved to %s\n", *activeFile)
		}
		showSample(candidates, 5)
		fmt.Println("\n🎉 Scrape completed!")
		return
	}

	if *sample > 0 && len(candidates) > *sample {
		fmt.Printf("Checking sample of %d proxies...\n", *sample)
		candidates = candidates[:*sample]
	}

	records := checkProxies(ctx, candidates, *checkWorkers, *checkTimeout, *probeURL, *judgeURL, *socks5)
	manager.UpsertAll(records)

	if ctx.Err() != nil {
		fmt.Println("\n⚠️  Interrupted, reporting partial results")
	}

	manager.PrintSummary()
	showFastest(manager, 5)

	if err := store.SaveRecords(manager.Records()); err != nil {
		log.Printf("Error saving record cache: %v", err)
	} else {
		fmt.Printf("\n💾 Records saved to %s\n", *cacheFile)
	}

	active := manager.Active()
	endpoints := make([]string, 0, len(active))
	for _, rec := range active {
		endpoints = append(endpoints, rec.Endpoint)
	}
	if err := store.SaveActive(endpoints); err != nil {
		log.Printf("Error saving active list: %v", err)
	} else {
		fmt.Printf("💾 Active proxies saved to %s\n", *activeFile)
	}

	fmt.Println("\n🎉 Proxy check completed!")
}

// collectCandidates either loads endpoints from a file or scrapes the
// default sources
func collectCandidates(ctx context.Context, input string, workers, timeoutSec int) ([]string, error) {
	if input != "" {
		fmt.Printf("📂 Loading endpoints from %s...\n", input)
		fileStore := storage.NewFileStore("", input)
		return fileStore.LoadActive()
	}

	scr := scraper.New()
	scr.SetMaxWorkers(workers)
	scr.SetTimeout(time.Duration(timeoutSec) * time.Second)

	fmt.Printf("🔍 Scraping %d sources...\n", len(scr.Sources()))
	return scr.Scrape(ctx)
}

// checkProxies runs the bounded check pool with a progress bar
func checkProxies(ctx context.Context, candidates []string, workers, timeoutSec int, probeURL, judgeURL string, socks5 bool) []*proxy.Record {
	resolver := geo.NewResolver()

	jdg := judge.New()
	jdg.SetEchoURL(judgeURL)

	chk := checker.New(resolver, jdg)
	chk.SetProbeURL(probeURL)
	chk.SetTimeout(time.Duration(timeoutSec) * time.Second)
	chk.SetMaxWorkers(workers)
	chk.SetSocks5(socks5)

	fmt.Printf("\n🔍 Checking %d proxies...\n", len(candidates))

	bar := pb.New(len(candidates))
	bar.Set("prefix", "Checking ")
	bar.Start()

	records := chk.CheckAll(ctx, candidates, func(checked, total int, rec *proxy.Record) {
		bar.Increment()
	})
	bar.Finish()

	return records
}

func showSample(endpoints []string, count int) {
	if len(endpoints) < count {
		count = len(endpoints)
	}
	if count == 0 {
		return
	}

	fmt.Printf("\n📋 Sample endpoints:\n")
	for i := 0; i < count; i++ {
		fmt.Printf("   %d. %s\n", i+1, endpoints[i])
	}
}

func showFastest(manager *proxy.Manager, count int) {
	fastest := manager.Fastest(count)
	if len(fastest) == 0 {
		return
	}

	fmt.Printf("\n⚡ Fastest proxies:\n")
	for i, rec := range fastest {
		fmt.Printf("   %d. %s (%.2fms, %s, %s)\n", i+1, rec.Endpoint, rec.LatencyMs, rec.CountryCode, rec.Privacy)
	}
}

func showHelp() {
	fmt.Println("VetProxy - Proxy Scraper & Checker")
	fmt.Println("===================================")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vetproxy-cli [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Scrape only")
	fmt.Println("  vetproxy-cli")
	fmt.Println()
	fmt.Println("  # Scrape and check everything")
	fmt.Println("  vetproxy-cli -check")
	fmt.Println()
	fmt.Println("  # Check a sample with more workers")
	fmt.Println("  vetproxy-cli -check -sample 200 -check-workers 300")
	fmt.Println()
	fmt.Println("  # Re-check a saved list of SOCKS5 proxies")
	fmt.Println("  vetproxy-cli -input output/active_proxies.txt -check -socks5")
}
