package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_SuccessIsCached(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"status":"success","country":"Testland","countryCode":"TL","regionName":"North","city":"Testville","isp":"TestNet"}`)
	}))
	defer server.Close()

	resolver := NewResolver()
	resolver.SetAPIURL(server.URL + "/")

	info := resolver.Lookup(context.Background(), "1.2.3.4")
	assert.Equal(t, "Testland", info.Country)
	assert.Equal(t, "TL", info.CountryCode)
	assert.Equal(t, "North", info.Region)
	assert.Equal(t, "Testville", info.City)
	assert.Equal(t, "TestNet", info.ISP)

	again := resolver.Lookup(context.Background(), "1.2.3.4")
	assert.Equal(t, info, again)
	assert.Equal(t, int64(1), hits.Load(), "second lookup must come from cache")
	assert.Equal(t, 1, resolver.CacheSize())
}

func TestLookup_FailureIsNotCached(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"status":"fail","message":"private range"}`)
	}))
	defer server.Close()

	resolver := NewResolver()
	resolver.SetAPIURL(server.URL + "/")

	info := resolver.Lookup(context.Background(), "10.0.0.1")
	assert.Equal(t, Unknown(), info)
	assert.Zero(t, resolver.CacheSize(), "failed lookups stay out of the cache")

	resolver.Lookup(context.Background(), "10.0.0.1")
	assert.Equal(t, int64(2), hits.Load(), "failed lookups are retried")
}

func TestLookup_UnreachableService(t *testing.T) {
	resolver := NewResolver()
	resolver.SetAPIURL("http://127.0.0.1:1/")

	info := resolver.Lookup(context.Background(), "1.2.3.4")
	assert.Equal(t, Unknown(), info)
	assert.Zero(t, resolver.CacheSize())
}

func TestLookup_ConcurrentCallsShareOneRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var hits atomic.Int64
	var once sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		once.Do(func() { close(started) })
		<-release
		fmt.Fprint(w, `{"status":"success","country":"Testland","countryCode":"TL"}`)
	}))
	defer server.Close()

	resolver := NewResolver()
	resolver.SetAPIURL(server.URL + "/")

	var wg sync.WaitGroup
	results := make([]Info, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = resolver.Lookup(context.Background(), "5.6.7.8")
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), hits.Load(), "overlapping lookups share one outbound request")
	for _, info := range results {
		assert.Equal(t, "TL", info.CountryCode)
	}
}

func TestLookup_DistinctAddressesAreDistinctEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","country":"Testland","countryCode":"TL"}`)
	}))
	defer server.Close()

	resolver := NewResolver()
	resolver.SetAPIURL(server.URL + "/")

	resolver.Lookup(context.Background(), "1.1.1.1")
	resolver.Lookup(context.Background(), "2.2.2.2")
	assert.Equal(t, 2, resolver.CacheSize())
}

func TestLookup_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","country":"Testland","countryCode":"TL"}`)
	}))
	defer server.Close()

	resolver := NewResolver()
	resolver.SetAPIURL(server.URL + "/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info := resolver.Lookup(ctx, "1.2.3.4")
	assert.Equal(t, Unknown(), info)
}

func TestUnknown(t *testing.T) {
	require.Equal(t, Info{Country: "Unknown", CountryCode: "??"}, Unknown())
}
