package main

import (
	"flag"
	"fmt"
	"log"

	"vetproxy/config"
	"vetproxy/daemon"
	"vetproxy/logger"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Path to configuration file")
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

	if err := logger.Init(cfg.Daemon.LogLevel, cfg.Files.LogFile); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}

	fmt.Println("🚀 VetProxy - Proxy Scrape & Check Daemon")
	fmt.Println("=========================================")
	fmt.Printf("Configuration loaded from: %s\n", *configFile)
	fmt.Printf("Probe URL: %s\n", cfg.Check.ProbeURL)
	fmt.Printf("Cycle interval: %v\n", cfg.GetInterval())
	fmt.Printf("Check workers: %d\n", cfg.Check.Workers)
	fmt.Printf("Check timeout: %v\n", cfg.GetCheckTimeout())
	fmt.Println()

	d, err := daemon.New(cfg)
	if err != nil {
		log.Fatalf("Error creating daemon: %v", err)
	}

	if err := d.Run(); err != nil {
		log.Fatalf("Daemon error: %v", err)
	}
}

func showHelp() {
	fmt.Println("VetProxy - Proxy Scrape & Check Daemon")
	fmt.Println("=======================================")
	fmt.Println()
	fmt.Println("The daemon scrapes proxy lists, checks each candidate by routing a")
	fmt.Println("real request through it, and keeps a vetted pool with latency,")
	fmt.Println("country and anonymity metadata.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vetproxy [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  Create a config.yaml file to customize settings.")
	fmt.Println("  The daemon will use default values if no config file is found.")
	fmt.Println()
	fmt.Println("Example config.yaml:")
	fmt.Println(`  scrape:
    workers: 100       # concurrent source fetches (1-9999)
    timeout: 30        # per-source timeout in seconds

  check:
    workers: 100       # concurrent proxy checks (1-9999)
    timeout: 5         # per-proxy timeout in seconds
    probe_url: "http://www.google.com"

  daemon:
    interval: 1800     # seconds between refresh cycles
    log_level: info

  files:
    cache: output/proxy_cache.json
    active: output/active_proxies.txt`)
	fmt.Println()
	fmt.Println("The daemon will:")
	fmt.Println("  - Scrape candidate endpoints from the configured sources")
	fmt.Println("  - Check each candidate with a proxied request")
	fmt.Println("  - Enrich working proxies with geo and anonymity data")
	fmt.Println("  - Persist the pool and repeat on the configured interval")
}
