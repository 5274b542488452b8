package eco

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[time.Time]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[time.Time]*Record{}}
}

// Add merges r into the day bucket of its client.
func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.ClientID] == nil {
		s.data[r.ClientID] = map[time.Time]*Record{}
	}
	d := Day(r.Date)
	rec := s.data[r.ClientID][d]
	if rec == nil {
		rec = &Record{ClientID: r.ClientID, Date: d}
		s.data[r.ClientID][d] = rec
	}
	rec.Requests += r.Requests
	rec.EnergyKWh += r.EnergyKWh
	rec.CostSaved += r.CostSaved
	rec.EmissionsAvoided += r.EmissionsAvoided
	return nil
}

// Query returns the client's records between the days of start and end
// inclusive, oldest first.
func (s *MemoryStore) Query(clientID string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, end = Day(start), Day(end)
	var res []Record
	for d, r := range s.data[clientID] {
		if d.Before(start) || d.After(end) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}
