package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"vetproxy/logger"
	"vetproxy/proxy"
)

// ErrAllSourcesFailed reports that every configured source fetch failed.
// The scrape result is still valid (empty), but callers should treat the
// run as a sourcing outage rather than an empty internet.
var ErrAllSourcesFailed = errors.New("all proxy sources failed")

const (
	defaultTimeout = 30 * time.Second
)

// proxyItem represents a single proxy entry from a JSON API. Port is a
// json.Number because APIs disagree on quoting it.
type proxyItem struct {
	IP   string      `json:"ip"`
	Port json.Number `json:"port"`
}

// proxyListResponse covers the common JSON API envelope shapes
type proxyListResponse struct {
	Data    []proxyItem `json:"data"`
	Proxies []proxyItem `json:"proxies"`
}

// Scraper gathers candidate endpoints from the configured sources
type Scraper struct {
	sources    []Source
	httpClient *http.Client
	maxWorkers int
	timeout    time.Duration
	log        zerolog.Logger
}

// New creates a scraper over the default source list
func New() *Scraper {
	return &Scraper{
		sources:    DefaultSources(),
		maxWorkers: 100,
		timeout:    defaultTimeout,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		log: logger.WithComponent("scraper"),
	}
}

// SetSources replaces the source list
func (s *Scraper) SetSources(sources []Source) {
	if len(sources) > 0 {
		s.sources = sources
	}
}

// SetMaxWorkers sets the maximum number of concurrent source fetches.
// Values outside 1-9999 are ignored.
func (s *Scraper) SetMaxWorkers(workers int) {
	if workers >= 1 && workers <= 9999 {
		s.maxWorkers = workers
	}
}

// SetTimeout sets the per-source fetch timeout
func (s *Scraper) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
	s.httpClient.Timeout = timeout
}

// Sources returns the configured source list
func (s *Scraper) Sources() []Source {
	return s.sources
}

// Scrape fetches every source concurrently and returns the deduplicated
// endpoint union, sorted. One failing source never aborts the run; it
// just contributes nothing. Cancelling ctx stops new fetches and returns
// whatever accumulated so far with a nil error. Only when every source
// failed (and ctx is still live) does Scrape return ErrAllSourcesFailed.
func (s *Scraper) Scrape(ctx context.Context) ([]string, error) {
	start := time.Now()
	s.log.Info().Int("sources", len(s.sources)).Int("workers", s.maxWorkers).Msg("starting scrape")

	endpoints := make(map[string]struct{})
	var mu sync.Mutex

	semaphore := make(chan struct{}, s.maxWorkers)
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	for _, source := range s.sources {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(src Source) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			found, err := s.fetchSource(ctx, src)
			if err != nil {
				failed.Add(1)
				s.log.Warn().Err(err).Str("url", src.URL).Msg("source fetch failed")
				return
			}
			fetched.Add(1)

			mu.Lock()
			for _, endpoint := range found {
				endpoints[endpoint] = struct{}{}
			}
			mu.Unlock()

			s.log.Debug().Str("url", src.URL).Int("found", len(found)).Msg("source fetched")
		}(source)
	}

	wg.Wait()

	unique := make([]string, 0, len(endpoints))
	for endpoint := range endpoints {
		unique = append(unique, endpoint)
	}
	sort.Strings(unique)

	s.log.Info().
		Int("unique", len(unique)).
		Int64("sources_ok", fetched.Load()).
		Int64("sources_failed", failed.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("scrape finished")

	if fetched.Load() == 0 && failed.Load() > 0 && ctx.Err() == nil {
		return unique, ErrAllSourcesFailed
	}
	return unique, nil
}

// fetchSource dispatches on the source kind
func (s *Scraper) fetchSource(ctx context.Context, src Source) ([]string, error) {
	switch src.Kind {
	case KindHTML:
		return s.fetchHTML(ctx, src.URL)
	case KindJSON:
		body, err := s.fetchBody(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		return parseJSONEndpoints(body), nil
	default:
		body, err := s.fetchBody(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		return Extract(string(body)), nil
	}
}

// fetchBody performs a single GET against a source URL
func (s *Scraper) fetchBody(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", uarand.GetRandom())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	return body, nil
}

// fetchHTML crawls an HTML table site and collects ip:port pairs from its
// rows. The collector is not context-aware, so cancellation is only
// observed before the visit starts; the request timeout bounds the rest.
func (s *Scraper) fetchHTML(ctx context.Context, pageURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.UserAgent(uarand.GetRandom()),
	)
	collector.SetRequestTimeout(s.timeout)

	var endpoints []string
	collector.OnHTML("tbody tr", func(row *colly.HTMLElement) {
		if endpoint, ok := extractRow(row.DOM); ok {
			endpoints = append(endpoints, endpoint)
		}
	})

	if err := collector.Visit(pageURL); err != nil {
		return nil, err
	}
	return endpoints, nil
}

// extractRow pulls an ip:port pair out of the first two cells of a proxy
// table row
func extractRow(row *goquery.Selection) (string, bool) {
	cells := row.Find("td")
	ip := strings.TrimSpace(cells.Eq(0).Text())
	port := strings.TrimSpace(cells.Eq(1).Text())
	if ip == "" || port == "" {
		return "", false
	}

	endpoint := fmt.Sprintf("%s:%s", ip, port)
	if !proxy.ValidEndpoint(endpoint) {
		return "", false
	}
	return endpoint, true
}

// parseJSONEndpoints decodes the known proxy list API shapes: an object
// with a data or proxies array, or a bare array of entries
func parseJSONEndpoints(body []byte) []string {
	var response proxyListResponse
	if err := json.Unmarshal(body, &response); err != nil {
		var items []proxyItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil
		}
		response.Data = items
	}

	items := response.Data
	if len(items) == 0 {
		items = response.Proxies
	}

	var endpoints []string
	for _, item := range items {
		if item.IP == "" || item.Port == "" {
			continue
		}
		endpoint := fmt.Sprintf("%s:%s", item.IP, item.Port)
		if proxy.ValidEndpoint(endpoint) {
			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints
}
