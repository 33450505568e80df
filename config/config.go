package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one proxy list source
type SourceConfig struct {
	URL  string `yaml:"url"`
	Kind string `yaml:"kind"`
}

// Config represents the application configuration
type Config struct {
	Scrape struct {
		Workers int            `yaml:"workers"`
		Timeout int            `yaml:"timeout"`
		Sources []SourceConfig `yaml:"sources"`
	} `yaml:"scrape"`

	Check struct {
		Workers  int    `yaml:"workers"`
		Timeout  int    `yaml:"timeout"`
		ProbeURL string `yaml:"probe_url"`
		JudgeURL string `yaml:"judge_url"`
		Socks5   bool   `yaml:"socks5"`
	} `yaml:"check"`

	Geo struct {
		APIURL        string `yaml:"api_url"`
		Timeout       int    `yaml:"timeout"`
		RatePerMinute int    `yaml:"rate_per_minute"`
	} `yaml:"geo"`

	Daemon struct {
		Interval int    `yaml:"interval"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"daemon"`

	Files struct {
		Cache   string `yaml:"cache"`
		Active  string `yaml:"active"`
		LogFile string `yaml:"log_file"`
	} `yaml:"files"`

	MongoDB struct {
		Enabled    bool   `yaml:"enabled"`
		DSN        string `yaml:"dsn"`
		Database   string `yaml:"database"`
		Collection string `yaml:"collection"`
		Timeout    int    `yaml:"timeout"`
	} `yaml:"mongodb"`
}

// Worker pool bounds shared by the scrape and check phases
const (
	DefaultWorkers = 100
	MinWorkers     = 1
	MaxWorkers     = 9999
)

// LoadConfig loads configuration from a YAML file. A missing file is not
// an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	// Set default values
	config.Scrape.Workers = DefaultWorkers
	config.Scrape.Timeout = 30
	config.Check.Workers = DefaultWorkers
	config.Check.Timeout = 5
	config.Check.ProbeURL = "http://www.google.com"
	config.Check.JudgeURL = "http://httpbin.org/headers"
	config.Geo.APIURL = "http://ip-api.com/json/"
	config.Geo.Timeout = 5
	config.Geo.RatePerMinute = 45
	config.Daemon.Interval = 1800
	config.Daemon.LogLevel = "info"
	config.Files.Cache = "output/proxy_cache.json"
	config.Files.Active = "output/active_proxies.txt"
	config.Files.LogFile = ""
	config.MongoDB.Enabled = false
	config.MongoDB.DSN = "mongodb://localhost:27017"
	config.MongoDB.Database = "vetproxy"
	config.MongoDB.Collection = "proxies"
	config.MongoDB.Timeout = 10

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("Config file not found, using defaults. Create %s to customize settings.\n", configPath)
		return config, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("error opening config file: %v", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for values the pipeline cannot run
// with. Worker counts must stay within 1-9999; zero means "use default".
func (c *Config) Validate() error {
	if c.Scrape.Workers == 0 {
		c.Scrape.Workers = DefaultWorkers
	}
	if c.Check.Workers == 0 {
		c.Check.Workers = DefaultWorkers
	}

	if c.Scrape.Workers < MinWorkers || c.Scrape.Workers > MaxWorkers {
		return fmt.Errorf("scrape.workers must be between %d and %d, got %d", MinWorkers, MaxWorkers, c.Scrape.Workers)
	}
	if c.Check.Workers < MinWorkers || c.Check.Workers > MaxWorkers {
		return fmt.Errorf("check.workers must be between %d and %d, got %d", MinWorkers, MaxWorkers, c.Check.Workers)
	}

	if c.Scrape.Timeout <= 0 {
		c.Scrape.Timeout = 30
	}
	if c.Check.Timeout <= 0 {
		c.Check.Timeout = 5
	}
	if c.Geo.Timeout <= 0 {
		c.Geo.Timeout = 5
	}
	if c.Geo.RatePerMinute <= 0 {
		c.Geo.RatePerMinute = 45
	}
	if c.Daemon.Interval <= 0 {
		c.Daemon.Interval = 1800
	}

	for i, src := range c.Scrape.Sources {
		if src.URL == "" {
			return fmt.Errorf("scrape.sources[%d]: url is required", i)
		}
		switch src.Kind {
		case "", "text", "json", "html":
		default:
			return fmt.Errorf("scrape.sources[%d]: unknown kind %q", i, src.Kind)
		}
	}

	return nil
}

// GetScrapeTimeout returns the per-source fetch timeout as time.Duration
func (c *Config) GetScrapeTimeout() time.Duration {
	return time.Duration(c.Scrape.Timeout) * time.Second
}

// GetCheckTimeout returns the per-candidate probe timeout as time.Duration
func (c *Config) GetCheckTimeout() time.Duration {
	return time.Duration(c.Check.Timeout) * time.Second
}

// GetGeoTimeout returns the geolocation lookup timeout as time.Duration
func (c *Config) GetGeoTimeout() time.Duration {
	return time.Duration(c.Geo.Timeout) * time.Second
}

// GetInterval returns the daemon cycle interval as time.Duration
func (c *Config) GetInterval() time.Duration {
	return time.Duration(c.Daemon.Interval) * time.Second
}

// GetMongoTimeout returns the MongoDB connection timeout as time.Duration
func (c *Config) GetMongoTimeout() time.Duration {
	return time.Duration(c.MongoDB.Timeout) * time.Second
}
