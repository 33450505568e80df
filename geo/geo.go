package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"vetproxy/logger"
)

const (
	defaultAPIURL = "http://ip-api.com/json/"
	defaultRPM    = 45
	lookupTimeout = 5 * time.Second
)

// Info holds the location metadata for one IP address
type Info struct {
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Region      string `json:"regionName"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
}

// Unknown is the placeholder returned when a lookup fails. It is never
// cached, so the next lookup for the same address retries.
func Unknown() Info {
	return Info{Country: "Unknown", CountryCode: "??"}
}

// apiResponse defines the structure of the ip-api.com JSON response
type apiResponse struct {
	Status      string `json:"status"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
}

// Resolver looks up geolocation data by bare IP, memoizing every
// successful answer for the lifetime of the process. Outbound calls are
// rate limited to stay inside the lookup service's free tier.
type Resolver struct {
	client  *http.Client
	apiURL  string
	limiter *rate.Limiter
	group   singleflight.Group
	log     zerolog.Logger

	mu    sync.RWMutex
	cache map[string]Info
}

// NewResolver creates a resolver against ip-api.com
func NewResolver() *Resolver {
	return &Resolver{
		client:  &http.Client{Timeout: lookupTimeout},
		apiURL:  defaultAPIURL,
		limiter: rate.NewLimiter(rate.Every(time.Minute/defaultRPM), defaultRPM),
		log:     logger.WithComponent("geo"),
		cache:   make(map[string]Info),
	}
}

// SetAPIURL replaces the lookup endpoint prefix. The address is appended
// directly, so the prefix must end with a slash.
func (r *Resolver) SetAPIURL(apiURL string) {
	r.apiURL = apiURL
}

// SetTimeout sets the per-lookup timeout
func (r *Resolver) SetTimeout(timeout time.Duration) {
	r.client.Timeout = timeout
}

// SetRateLimit caps outbound lookups per minute
func (r *Resolver) SetRateLimit(perMinute int) {
	if perMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
}

// Lookup resolves addr to location metadata. Overlapping lookups for the
// same address share one outbound request. Failures return Unknown and
// leave the cache untouched.
func (r *Resolver) Lookup(ctx context.Context, addr string) Info {
	r.mu.RLock()
	info, ok := r.cache[addr]
	r.mu.RUnlock()
	if ok {
		return info
	}

	v, err, _ := r.group.Do(addr, func() (interface{}, error) {
		return r.fetch(ctx, addr)
	})
	if err != nil {
		r.log.Debug().Err(err).Str("addr", addr).Msg("geo lookup failed")
		return Unknown()
	}
	return v.(Info)
}

// CacheSize returns the number of cached addresses
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// fetch performs one outbound lookup, caching the result on success
func (r *Resolver) fetch(ctx context.Context, addr string) (Info, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Info{}, err
	}

	lookupURL := fmt.Sprintf("%s%s?fields=status,country,countryCode,regionName,city,isp", r.apiURL, addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return Info{}, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Info{}, fmt.Errorf("error decoding response: %w", err)
	}

	if payload.Status != "success" {
		return Info{}, fmt.Errorf("lookup returned status %q", payload.Status)
	}

	info := Info{
		Country:     payload.Country,
		CountryCode: payload.CountryCode,
		Region:      payload.RegionName,
		City:        payload.City,
		ISP:         payload.ISP,
	}

	r.mu.Lock()
	r.cache[addr] = info
	r.mu.Unlock()

	return info, nil
}
