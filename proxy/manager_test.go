package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_AddRaw(t *testing.T) {
	manager := NewManager()

	added := manager.AddRaw([]string{"1.2.3.4:8080", "5.6.7.8:1080"})
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, manager.Len())

	added = manager.AddRaw([]string{"1.2.3.4:8080", "9.9.9.9:3128"})
	assert.Equal(t, 1, added, "already tracked endpoints are not re-added")
	assert.Equal(t, 3, manager.Len())

	for _, rec := range manager.Records() {
		assert.Equal(t, StatusRaw, rec.Status)
		assert.Equal(t, "Unknown", rec.Country)
		assert.Equal(t, "??", rec.CountryCode)
		assert.Equal(t, PrivacyUnknown, rec.Privacy)
	}
}

func TestManager_AddRawKeepsExistingRecord(t *testing.T) {
	manager := NewManager()
	manager.Upsert(&Record{Endpoint: "1.2.3.4:8080", Status: StatusActive, LatencyMs: 42})

	manager.AddRaw([]string{"1.2.3.4:8080"})

	records := manager.Records()
	require.Len(t, records, 1)
	assert.Equal(t, StatusActive, records[0].Status, "a scrape never downgrades a checked record")
	assert.Equal(t, 42.0, records[0].LatencyMs)
}

func TestManager_SeedCached(t *testing.T) {
	manager := NewManager()
	manager.SeedCached([]*Record{
		{Endpoint: "1.2.3.4:8080", Status: StatusActive, Country: "Testland"},
		nil,
		{Endpoint: ""},
	})

	records := manager.Records()
	require.Len(t, records, 1)
	assert.Equal(t, StatusCached, records[0].Status, "restored records always start cached")
	assert.Equal(t, "Testland", records[0].Country)
}

func TestManager_MarkCheckingPreservesSnapshots(t *testing.T) {
	manager := NewManager()
	manager.AddRaw([]string{"1.2.3.4:8080"})

	snapshot := manager.Records()
	require.Len(t, snapshot, 1)

	manager.MarkChecking([]string{"1.2.3.4:8080", "5.6.7.8:1080"})

	assert.Equal(t, StatusRaw, snapshot[0].Status, "earlier snapshots must not change under later marks")
	assert.Equal(t, StatusChecking, manager.Records()[0].Status)
	assert.Equal(t, 1, manager.Len(), "marking an unknown endpoint does not create it")
}

func TestManager_UpsertReplaces(t *testing.T) {
	manager := NewManager()
	manager.AddRaw([]string{"1.2.3.4:8080"})

	manager.Upsert(&Record{
		Endpoint:      "1.2.3.4:8080",
		Status:        StatusActive,
		Country:       "Testland",
		CountryCode:   "TL",
		Privacy:       PrivacyElite,
		LatencyMs:     120,
		LastCheckedAt: time.Now(),
	})

	records := manager.Records()
	require.Len(t, records, 1)
	assert.Equal(t, StatusActive, records[0].Status)
	assert.Equal(t, 120.0, records[0].LatencyMs)

	manager.Upsert(nil)
	manager.Upsert(&Record{})
	assert.Equal(t, 1, manager.Len())
}

func TestManager_PruneStale(t *testing.T) {
	manager := NewManager()
	manager.AddRaw([]string{"1.2.3.4:8080", "5.6.7.8:1080", "9.9.9.9:3128"})
	manager.MarkChecking([]string{"1.2.3.4:8080", "5.6.7.8:1080", "9.9.9.9:3128"})

	manager.Upsert(&Record{Endpoint: "1.2.3.4:8080", Status: StatusActive, LatencyMs: 50})

	removed := manager.PruneStale()
	assert.Equal(t, 2, removed, "endpoints that never came back from a check are dropped")
	assert.Equal(t, 1, manager.Len())
	assert.Equal(t, "1.2.3.4:8080", manager.Records()[0].Endpoint)
}

func TestManager_ActiveSortedByLatency(t *testing.T) {
	manager := NewManager()
	manager.UpsertAll([]*Record{
		{Endpoint: "1.1.1.1:80", Status: StatusActive, LatencyMs: 300},
		{Endpoint: "2.2.2.2:80", Status: StatusActive, LatencyMs: 100},
		{Endpoint: "3.3.3.3:80", Status: StatusRaw},
		{Endpoint: "4.4.4.4:80", Status: StatusActive, LatencyMs: 200},
	})

	active := manager.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "2.2.2.2:80", active[0].Endpoint)
	assert.Equal(t, "4.4.4.4:80", active[1].Endpoint)
	assert.Equal(t, "1.1.1.1:80", active[2].Endpoint)

	assert.Equal(t, 3, manager.ActiveCount())
}

func TestManager_RecordsSortedByEndpoint(t *testing.T) {
	manager := NewManager()
	manager.AddRaw([]string{"9.9.9.9:3128", "1.2.3.4:8080", "5.6.7.8:1080"})

	var endpoints []string
	for _, rec := range manager.Records() {
		endpoints = append(endpoints, rec.Endpoint)
	}
	assert.Equal(t, []string{"1.2.3.4:8080", "5.6.7.8:1080", "9.9.9.9:3128"}, endpoints)
	assert.Equal(t, []string{"1.2.3.4:8080", "5.6.7.8:1080", "9.9.9.9:3128"}, manager.Endpoints())
}

func TestManager_Fastest(t *testing.T) {
	manager := NewManager()
	manager.UpsertAll([]*Record{
		{Endpoint: "1.1.1.1:80", Status: StatusActive, LatencyMs: 300},
		{Endpoint: "2.2.2.2:80", Status: StatusActive, LatencyMs: 100},
	})

	fastest := manager.Fastest(1)
	require.Len(t, fastest, 1)
	assert.Equal(t, "2.2.2.2:80", fastest[0].Endpoint)

	assert.Len(t, manager.Fastest(10), 2, "asking for more than available returns everything")
}

func TestManager_Random(t *testing.T) {
	manager := NewManager()
	assert.Nil(t, manager.Random(), "no active proxies means nothing to pick")

	manager.Upsert(&Record{Endpoint: "1.1.1.1:80", Status: StatusActive})
	rec := manager.Random()
	require.NotNil(t, rec)
	assert.Equal(t, "1.1.1.1:80", rec.Endpoint)
}

func TestManager_Stats(t *testing.T) {
	manager := NewManager()
	manager.UpsertAll([]*Record{
		{Endpoint: "1.1.1.1:80", Status: StatusActive, Country: "Testland", Privacy: PrivacyElite, LatencyMs: 100},
		{Endpoint: "2.2.2.2:80", Status: StatusActive, Country: "Testland", Privacy: PrivacyAnonymous, LatencyMs: 200.55},
		{Endpoint: "3.3.3.3:80", Status: StatusActive, Country: "Otherland", Privacy: PrivacyElite, LatencyMs: 99.5},
		{Endpoint: "4.4.4.4:80", Status: StatusRaw, Country: "Ign", Privacy: PrivacyElite},
	})

	stats := manager.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Active)
	assert.Equal(t, 133.35, stats.AvgLatencyMs, "average latency is rounded to two decimals")
	assert.Equal(t, map[string]int{"Testland": 2, "Otherland": 1}, stats.ByCountry)
	assert.Equal(t, map[Privacy]int{PrivacyElite: 2, PrivacyAnonymous: 1}, stats.ByPrivacy)
}

func TestManager_StatsEmpty(t *testing.T) {
	stats := NewManager().Stats()
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Active)
	assert.Zero(t, stats.AvgLatencyMs)
}
