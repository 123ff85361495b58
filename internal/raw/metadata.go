package raw

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/nocsaren/GA-mock-to-html/internal/bloom"
)

// Sidecar is the .meta.json file written next to the companion table.
// It carries no wall-clock fields so reruns stay byte-identical.
type Sidecar struct {
	File          string                    `json:"file"`
	SchemaVersion int                       `json:"schema_version"`
	Columns       []string                  `json:"columns"`
	Stats         CompanionStats            `json:"stats"`
	BloomFilters  map[string]*bloom.Encoded `json:"bloom_filters,omitempty"`
}

// CompanionStats holds table-level statistics.
type CompanionStats struct {
	RowCount     int64  `json:"row_count"`
	SizeBytes    int64  `json:"size_bytes"`
	UserCount    int    `json:"user_count"`
	MinEventTime *int64 `json:"min_event_time,omitempty"`
	MaxEventTime *int64 `json:"max_event_time,omitempty"`
}

func newSidecar(info *PartitionInfo, stats *statsTracker) (*Sidecar, error) {
	s := &Sidecar{
		File:          filepath.Base(info.Path),
		SchemaVersion: info.Schema.Version,
		Columns:       info.Schema.ColumnNames(),
		Stats: CompanionStats{
			RowCount:     info.RowCount,
			SizeBytes:    info.SizeBytes,
			UserCount:    len(stats.users),
			MinEventTime: stats.minEventTime,
			MaxEventTime: stats.maxEventTime,
		},
	}
	if len(stats.users) == 0 {
		return s, nil
	}

	users := make([]string, 0, len(stats.users))
	for u := range stats.users {
		users = append(users, u)
	}
	sort.Strings(users)

	f := bloom.NewWithEstimates(len(users), stats.targetFPR)
	for _, u := range users {
		f.AddString(u)
	}
	enc, err := f.Encode()
	if err != nil {
		return nil, fmt.Errorf("raw: failed to encode user_pseudo_id bloom filter: %w", err)
	}
	s.BloomFilters = map[string]*bloom.Encoded{"user_pseudo_id": enc}
	return s, nil
}

// MayContainUser reports whether the companion may hold events of the user.
// A sidecar without a filter holds no users.
func (s *Sidecar) MayContainUser(pseudoID string) (bool, error) {
	enc, ok := s.BloomFilters["user_pseudo_id"]
	if !ok {
		return false, nil
	}
	f, err := bloom.Decode(enc)
	if err != nil {
		return false, err
	}
	return f.ContainsString(pseudoID), nil
}

// WriteToFile writes the sidecar as indented JSON.
func (s *Sidecar) WriteToFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("raw: failed to marshal sidecar: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("raw: failed to write sidecar: %w", err)
	}
	return nil
}

// ReadSidecar reads a sidecar written by WriteToFile.
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("raw: failed to read sidecar: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("raw: failed to parse sidecar: %w", err)
	}
	return &s, nil
}
