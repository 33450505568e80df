package checker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/corpix/uarand"
	"github.com/rs/zerolog"
	socks "golang.org/x/net/proxy"

	"vetproxy/geo"
	"vetproxy/judge"
	"vetproxy/logger"
	"vetproxy/proxy"
)

// ErrBadStatus reports a probe response with an unexpected status code
var ErrBadStatus = errors.New("unexpected response status")

const (
	defaultProbeURL = "http://www.google.com"
	defaultTimeout  = 5 * time.Second
	defaultWorkers  = 100
)

// Checker validates candidate endpoints by routing a real request through
// them and enriches survivors with geolocation and anonymity metadata.
// Either enrichment collaborator may be nil, in which case that field
// stays Unknown.
type Checker struct {
	probeURL   string
	timeout    time.Duration
	maxWorkers int
	socks5     bool
	resolver   *geo.Resolver
	judge      *judge.Judge
	log        zerolog.Logger
}

// New creates a checker with the given enrichment collaborators
func New(resolver *geo.Resolver, j *judge.Judge) *Checker {
	return &Checker{
		probeURL:   defaultProbeURL,
		timeout:    defaultTimeout,
		maxWorkers: defaultWorkers,
		resolver:   resolver,
		judge:      j,
		log:        logger.WithComponent("checker"),
	}
}

// SetProbeURL sets the URL fetched through each candidate
func (c *Checker) SetProbeURL(probeURL string) {
	c.probeURL = probeURL
}

// SetTimeout sets the per-candidate probe timeout
func (c *Checker) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SetMaxWorkers sets the maximum number of concurrent checks. Values
// outside 1-9999 are ignored.
func (c *Checker) SetMaxWorkers(workers int) {
	if workers >= 1 && workers <= 9999 {
		c.maxWorkers = workers
	}
}

// SetSocks5 switches the probe transport to SOCKS5 dialing instead of
// HTTP proxying
func (c *Checker) SetSocks5(enabled bool) {
	c.socks5 = enabled
}

// Check probes one endpoint. On success it returns a fully populated
// record; on failure it returns nil and the reason. Enrichment failures
// never fail the check, they just leave Unknown fields behind.
func (c *Checker) Check(ctx context.Context, endpoint string) (*proxy.Record, error) {
	client, err := c.newProxyClient(endpoint)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.probeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", uarand.GetRandom())

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrBadStatus, resp.StatusCode)
	}

	country, countryCode := "Unknown", "??"
	if c.resolver != nil {
		host, _, err := net.SplitHostPort(endpoint)
		if err != nil {
			host = endpoint
		}
		info := c.resolver.Lookup(ctx, host)
		country, countryCode = info.Country, info.CountryCode
	}

	privacy := proxy.PrivacyUnknown
	if c.judge != nil {
		privacy = c.judge.Classify(ctx, client)
	}

	return &proxy.Record{
		Endpoint:      endpoint,
		Status:        proxy.StatusActive,
		Country:       country,
		CountryCode:   countryCode,
		Privacy:       privacy,
		LatencyMs:     roundMs(latency),
		LastCheckedAt: time.Now(),
	}, nil
}

// newProxyClient builds an HTTP client that routes every request through
// the candidate endpoint
func (c *Checker) newProxyClient(endpoint string) (*http.Client, error) {
	var transport *http.Transport

	if c.socks5 {
		dialer, err := socks.SOCKS5("tcp", endpoint, nil, &net.Dialer{Timeout: c.timeout})
		if err != nil {
			return nil, fmt.Errorf("error creating SOCKS5 dialer: %w", err)
		}
		transport = &http.Transport{
			DialContext:       dialer.(socks.ContextDialer).DialContext,
			DisableKeepAlives: true,
		}
	} else {
		proxyURL, err := url.Parse("http://" + endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
			DialContext: (&net.Dialer{
				Timeout: c.timeout,
			}).DialContext,
			DisableKeepAlives: true,
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}, nil
}

// roundMs converts a duration to milliseconds with two decimal places
func roundMs(d time.Duration) float64 {
	return math.Round(d.Seconds()*1e5) / 100
}
