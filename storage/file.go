package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"vetproxy/logger"
	"vetproxy/proxy"
)

// FileStore persists the proxy pool on disk: a JSON record cache plus a
// legacy flat list of bare endpoints that older tooling still reads.
type FileStore struct {
	recordsPath string
	legacyPath  string
	log         zerolog.Logger
}

// NewFileStore creates a store writing records to recordsPath and the
// flat endpoint list to legacyPath
func NewFileStore(recordsPath, legacyPath string) *FileStore {
	return &FileStore{
		recordsPath: recordsPath,
		legacyPath:  legacyPath,
		log:         logger.WithComponent("storage"),
	}
}

// SaveRecords writes the record cache as pretty-printed JSON
func (s *FileStore) SaveRecords(records []*proxy.Record) error {
	if err := ensureDir(s.recordsPath); err != nil {
		return err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding records: %v", err)
	}

	if err := os.WriteFile(s.recordsPath, data, 0644); err != nil {
		return fmt.Errorf("error writing records file: %v", err)
	}
	return nil
}

// LoadRecords reads the record cache. A missing file is not an error; it
// just yields no records.
func (s *FileStore) LoadRecords() ([]*proxy.Record, error) {
	data, err := os.ReadFile(s.recordsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading records file: %v", err)
	}

	var records []*proxy.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error parsing records file: %v", err)
	}
	return records, nil
}

// SaveActive writes the legacy flat list, one endpoint per line
func (s *FileStore) SaveActive(endpoints []string) error {
	if err := ensureDir(s.legacyPath); err != nil {
		return err
	}

	file, err := os.Create(s.legacyPath)
	if err != nil {
		return fmt.Errorf("error creating file: %v", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	for _, endpoint := range endpoints {
		if _, err := writer.WriteString(endpoint + "\n"); err != nil {
			return fmt.Errorf("error writing to file: %v", err)
		}
	}
	return nil
}

// LoadActive reads the legacy flat list, skipping blank and malformed
// lines. A missing file yields no endpoints.
func (s *FileStore) LoadActive() ([]string, error) {
	file, err := os.Open(s.legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error opening file: %v", err)
	}
	defer file.Close()

	var endpoints []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && proxy.ValidEndpoint(line) {
			endpoints = append(endpoints, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %v", err)
	}
	return endpoints, nil
}

// LoadSeed restores the pool from a previous run: the JSON cache when
// present, otherwise the legacy flat list lifted into bare records.
func (s *FileStore) LoadSeed() ([]*proxy.Record, error) {
	records, err := s.LoadRecords()
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		s.log.Info().Int("count", len(records)).Str("path", s.recordsPath).Msg("loaded record cache")
		return records, nil
	}

	endpoints, err := s.LoadActive()
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, nil
	}

	records = make([]*proxy.Record, 0, len(endpoints))
	for _, endpoint := range endpoints {
		records = append(records, &proxy.Record{
			Endpoint:    endpoint,
			Status:      proxy.StatusCached,
			Country:     "Unknown",
			CountryCode: "??",
			Privacy:     proxy.PrivacyUnknown,
		})
	}

	s.log.Info().Int("count", len(records)).Str("path", s.legacyPath).Msg("loaded legacy endpoint list")
	return records, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory: %v", err)
	}
	return nil
}
