package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetproxy/config"
	"vetproxy/proxy"
	"vetproxy/storage"
)

// cycleHarness wires a full pipeline against local test servers: one
// server acts as the candidate proxy (answering probe and echo requests
// in absolute form), one serves the source list, one fakes geolocation.
type cycleHarness struct {
	cfg      *config.Config
	endpoint string
	source   *httptest.Server
}

func newCycleHarness(t *testing.T) *cycleHarness {
	t.Helper()

	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Host {
		case "probe.test":
			fmt.Fprint(w, "ok")
		case "echo.test":
			json.NewEncoder(w).Encode(map[string]map[string]string{"headers": {}})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(proxySrv.Close)
	endpoint := strings.TrimPrefix(proxySrv.URL, "http://")

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, endpoint+"\n")
	}))
	t.Cleanup(source.Close)

	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","country":"Testland","countryCode":"TL"}`)
	}))
	t.Cleanup(geoSrv.Close)

	dir := t.TempDir()
	cfg, err := config.LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	cfg.Scrape.Sources = []config.SourceConfig{{URL: source.URL, Kind: "text"}}
	cfg.Check.ProbeURL = "http://probe.test/"
	cfg.Check.JudgeURL = "http://echo.test/headers"
	cfg.Check.Timeout = 2
	cfg.Geo.APIURL = geoSrv.URL + "/"
	cfg.Files.Cache = filepath.Join(dir, "records.json")
	cfg.Files.Active = filepath.Join(dir, "active.txt")

	return &cycleHarness{cfg: cfg, endpoint: endpoint, source: source}
}

func TestRunCycle_FullPass(t *testing.T) {
	harness := newCycleHarness(t)

	daemon, err := New(harness.cfg)
	require.NoError(t, err)

	daemon.runCycle(context.Background())

	require.Equal(t, 1, daemon.manager.ActiveCount())
	rec := daemon.manager.Active()[0]
	assert.Equal(t, harness.endpoint, rec.Endpoint)
	assert.Equal(t, proxy.StatusActive, rec.Status)
	assert.Equal(t, "Testland", rec.Country)
	assert.Equal(t, "TL", rec.CountryCode)
	assert.Equal(t, proxy.PrivacyElite, rec.Privacy)
	assert.Positive(t, rec.LatencyMs)

	store := storage.NewFileStore(harness.cfg.Files.Cache, harness.cfg.Files.Active)
	records, err := store.LoadRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, harness.endpoint, records[0].Endpoint)

	endpoints, err := store.LoadActive()
	require.NoError(t, err)
	assert.Equal(t, []string{harness.endpoint}, endpoints)
}

func TestRunCycle_PrunesDeadEndpoints(t *testing.T) {
	harness := newCycleHarness(t)

	daemon, err := New(harness.cfg)
	require.NoError(t, err)

	// A leftover from an earlier run that no longer answers
	daemon.manager.Upsert(&proxy.Record{Endpoint: "127.0.0.1:1", Status: proxy.StatusCached})

	daemon.runCycle(context.Background())

	assert.Equal(t, 1, daemon.manager.Len(), "unresponsive endpoints leave the pool")
	assert.Equal(t, harness.endpoint, daemon.manager.Endpoints()[0])
}

func TestRunCycle_AllSourcesFailedKeepsPool(t *testing.T) {
	harness := newCycleHarness(t)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)
	harness.cfg.Scrape.Sources = []config.SourceConfig{{URL: failing.URL, Kind: "text"}}

	daemon, err := New(harness.cfg)
	require.NoError(t, err)

	daemon.manager.Upsert(&proxy.Record{Endpoint: "1.2.3.4:8080", Status: proxy.StatusActive, LatencyMs: 50})

	daemon.runCycle(context.Background())

	assert.Equal(t, 1, daemon.manager.Len(), "a sourcing outage must not wipe the pool")
	assert.Equal(t, 1, daemon.manager.ActiveCount())
}

func TestRunCycle_CancelledBeforeChecks(t *testing.T) {
	harness := newCycleHarness(t)

	daemon, err := New(harness.cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	daemon.runCycle(ctx)

	// Nothing was checked, so nothing may be pruned or promoted
	assert.Zero(t, daemon.manager.ActiveCount())
}

func TestNew_SeedsFromPreviousRun(t *testing.T) {
	harness := newCycleHarness(t)

	store := storage.NewFileStore(harness.cfg.Files.Cache, harness.cfg.Files.Active)
	require.NoError(t, store.SaveRecords([]*proxy.Record{
		{Endpoint: "1.2.3.4:8080", Status: proxy.StatusActive, Country: "Testland", LastCheckedAt: time.Now()},
	}))

	daemon, err := New(harness.cfg)
	require.NoError(t, err)

	require.Equal(t, 1, daemon.manager.Len())
	rec := daemon.manager.Records()[0]
	assert.Equal(t, proxy.StatusCached, rec.Status, "restored records wait for a fresh check")
	assert.Equal(t, "Testland", rec.Country)
}

func TestStop_CancelsPipeline(t *testing.T) {
	harness := newCycleHarness(t)

	daemon, err := New(harness.cfg)
	require.NoError(t, err)

	daemon.Stop()
	assert.Error(t, daemon.ctx.Err())
}
