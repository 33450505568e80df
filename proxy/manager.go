package proxy

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// Manager tracks the pool of known endpoints and their records. It is safe
// for concurrent use; check runs upsert results while readers take
// snapshots.
type Manager struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{
		records: make(map[string]*Record),
	}
}

// AddRaw registers freshly scraped endpoints that have not been checked
// yet. Endpoints already tracked keep their current record. Returns the
// number of new entries.
func (m *Manager) AddRaw(endpoints []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, endpoint := range endpoints {
		if _, ok := m.records[endpoint]; ok {
			continue
		}
		m.records[endpoint] = &Record{
			Endpoint:    endpoint,
			Status:      StatusRaw,
			Country:     "Unknown",
			CountryCode: "??",
			Privacy:     PrivacyUnknown,
		}
		added++
	}
	return added
}

// SeedCached registers records restored from a previous run, marking them
// cached until the next check run confirms them.
func (m *Manager) SeedCached(records []*Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		if rec == nil || rec.Endpoint == "" {
			continue
		}
		seeded := *rec
		seeded.Status = StatusCached
		m.records[seeded.Endpoint] = &seeded
	}
}

// MarkChecking flags endpoints that were handed to a check run. Records
// are replaced, not mutated, so snapshots taken earlier stay intact.
func (m *Manager) MarkChecking(endpoints []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, endpoint := range endpoints {
		rec, ok := m.records[endpoint]
		if !ok {
			continue
		}
		marked := *rec
		marked.Status = StatusChecking
		m.records[endpoint] = &marked
	}
}

// Upsert replaces whatever is tracked for the endpoint with rec
func (m *Manager) Upsert(rec *Record) {
	if rec == nil || rec.Endpoint == "" {
		return
	}
	m.mu.Lock()
	m.records[rec.Endpoint] = rec
	m.mu.Unlock()
}

// UpsertAll replaces tracked records for every endpoint in records
func (m *Manager) UpsertAll(records []*Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		if rec == nil || rec.Endpoint == "" {
			continue
		}
		m.records[rec.Endpoint] = rec
	}
}

// PruneStale drops entries that went into a check run and never came back.
// Returns the number of entries removed.
func (m *Manager) PruneStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for endpoint, rec := range m.records {
		if rec.Status == StatusChecking {
			delete(m.records, endpoint)
			removed++
		}
	}
	return removed
}

// Records returns a snapshot of all tracked records sorted by endpoint
func (m *Manager) Records() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Endpoint < records[j].Endpoint
	})
	return records
}

// Active returns the records that passed their last check, fastest first
func (m *Manager) Active() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*Record
	for _, rec := range m.records {
		if rec.Status == StatusActive {
			active = append(active, rec)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].LatencyMs < active[j].LatencyMs
	})
	return active
}

// Endpoints returns all tracked endpoints sorted alphabetically
func (m *Manager) Endpoints() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	endpoints := make([]string, 0, len(m.records))
	for endpoint := range m.records {
		endpoints = append(endpoints, endpoint)
	}

	sort.Strings(endpoints)
	return endpoints
}

// Len returns the total number of tracked endpoints
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// ActiveCount returns the number of endpoints that passed their last check
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.records {
		if rec.Status == StatusActive {
			count++
		}
	}
	return count
}

// Fastest returns up to count active records with the lowest latency
func (m *Manager) Fastest(count int) []*Record {
	active := m.Active()
	if len(active) <= count {
		return active
	}
	return active[:count]
}

// Random returns a random active record, or nil when none are active
func (m *Manager) Random() *Record {
	active := m.Active()
	if len(active) == 0 {
		return nil
	}
	return active[rand.Intn(len(active))]
}

// Stats summarizes the tracked pool
type Stats struct {
	Total        int
	Active       int
	AvgLatencyMs float64
	ByCountry    map[string]int
	ByPrivacy    map[Privacy]int
}

// Stats computes summary statistics over the tracked pool
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		ByCountry: make(map[string]int),
		ByPrivacy: make(map[Privacy]int),
	}

	var latencySum float64
	for _, rec := range m.records {
		stats.Total++
		if rec.Status != StatusActive {
			continue
		}
		stats.Active++
		latencySum += rec.LatencyMs
		stats.ByCountry[rec.Country]++
		stats.ByPrivacy[rec.Privacy]++
	}

	if stats.Active > 0 {
		stats.AvgLatencyMs = math.Round(latencySum/float64(stats.Active)*100) / 100
	}
	return stats
}

// PrintSummary prints pool statistics to stdout
func (m *Manager) PrintSummary() {
	stats := m.Stats()

	fmt.Printf("\n📊 Proxy Statistics:\n")
	fmt.Printf("   Total endpoints: %d\n", stats.Total)
	fmt.Printf("   Active proxies: %d\n", stats.Active)
	if stats.Total > 0 {
		fmt.Printf("   Success rate: %.2f%%\n", float64(stats.Active)/float64(stats.Total)*100)
	}
	if stats.Active > 0 {
		fmt.Printf("   Average latency: %.2fms\n", stats.AvgLatencyMs)
	}

	if len(stats.ByCountry) > 0 {
		fmt.Printf("\n🌍 By Country:\n")
		for _, country := range sortedKeys(stats.ByCountry) {
			fmt.Printf("   %s: %d\n", country, stats.ByCountry[country])
		}
	}

	if len(stats.ByPrivacy) > 0 {
		fmt.Printf("\n🔒 By Privacy Level:\n")
		for privacy, count := range stats.ByPrivacy {
			fmt.Printf("   %s: %d\n", strings.ToUpper(string(privacy)), count)
		}
	}
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
