// internal/adapter/storage/memory.go

package storage

import (
	"context"
	"sync"

	"orcast/internal/domain/overlay"
	"orcast/internal/domain/station"
)

// MemoryHistoryStore keeps the last N render records in a ring
type MemoryHistoryStore struct {
	mu      sync.Mutex
	records []overlay.RenderRecord
	next    int
	full    bool
}

// NewMemoryHistoryStore creates a ring holding at most size records
func NewMemoryHistoryStore(size int) *MemoryHistoryStore {
	if size < 1 {
		size = 1
	}
	return &MemoryHistoryStore{
		records: make([]overlay.RenderRecord, size),
	}
}

// Record appends rec, evicting the oldest record when full
func (s *MemoryHistoryStore) Record(_ context.Context, rec overlay.RenderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[s.next] = rec
	s.next = (s.next + 1) % len(s.records)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// Recent returns up to limit records, newest first
func (s *MemoryHistoryStore) Recent(_ context.Context, limit int) ([]overlay.RenderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next
	if s.full {
		n = len(s.records)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]overlay.RenderRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (s.next - 1 - i + len(s.records)) % len(s.records)
		out = append(out, s.records[idx])
	}
	return out, nil
}

// StaticStationStore serves a fixed station list
type StaticStationStore struct {
	stations []station.HydrophoneStation
}

// NewStaticStationStore wraps a station list
func NewStaticStationStore(stations []station.HydrophoneStation) *StaticStationStore {
	return &StaticStationStore{stations: stations}
}

// ListStations returns a copy of the list
func (s *StaticStationStore) ListStations(context.Context) ([]station.HydrophoneStation, error) {
	out := make([]station.HydrophoneStation, len(s.stations))
	copy(out, s.stations)
	return out, nil
}
