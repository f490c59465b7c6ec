package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"imrmap/internal/domain"
	"imrmap/internal/summarize"
)

// MemStore implements Store in memory. Safe for concurrent use.
type MemStore struct {
	mu     sync.Mutex
	runs   map[string]*Run
	order  []string
	obs    map[string][]domain.Observation
	tables map[string][]*summarize.Table
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		runs:   make(map[string]*Run),
		obs:    make(map[string][]domain.Observation),
		tables: make(map[string][]*summarize.Table),
	}
}

func (s *MemStore) CreateRun(r *Run) (string, error) {
	if r == nil {
		return "", errors.New("run is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, dup := s.runs[r.ID]; dup {
		return "", fmt.Errorf("insert run: duplicate id %s", r.ID)
	}
	if r.Status == "" {
		r.Status = StatusRunning
	}
	if r.StartedAt == "" {
		r.StartedAt = nowUTC()
	}
	cp := *r
	s.runs[r.ID] = &cp
	s.order = append(s.order, r.ID)
	return r.ID, nil
}

func (s *MemStore) FinishRun(runID, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	r.Status, r.Error, r.FinishedAt = status, errMsg, nowUTC()
	return nil
}

func (s *MemStore) GetRun(runID string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// ListRuns returns every run, newest first.
func (s *MemStore) ListRuns() ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		cp := *s.runs[s.order[i]]
		list = append(list, &cp)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartedAt > list[j].StartedAt })
	return list, nil
}

func (s *MemStore) SaveObservations(runID string, obs []domain.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("save observations: run %s not found", runID)
	}
	s.obs[runID] = append(s.obs[runID], obs...)
	r.Observations = len(s.obs[runID])
	return nil
}

func (s *MemStore) ListObservations(runID string) ([]domain.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Observation(nil), s.obs[runID]...), nil
}

func (s *MemStore) SaveTable(runID string, t *summarize.Table) error {
	if t == nil {
		return errors.New("table is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("save table: run %s not found", runID)
	}
	cp := copyTable(t)
	list := s.tables[runID]
	for i, old := range list {
		if old.Name == t.Name {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	s.tables[runID] = append(list, cp)
	return nil
}

func (s *MemStore) ListTables(runID string) ([]*summarize.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*summarize.Table, 0, len(s.tables[runID]))
	for _, t := range s.tables[runID] {
		out = append(out, copyTable(t))
	}
	return out, nil
}

func (s *MemStore) Close() error { return nil }

func copyTable(t *summarize.Table) *summarize.Table {
	cp := *t
	cp.Columns = append([]summarize.Column(nil), t.Columns...)
	cp.Rows = make([]summarize.Row, len(t.Rows))
	for i, r := range t.Rows {
		r.Cells = append([]summarize.Cell(nil), r.Cells...)
		cp.Rows[i] = r
	}
	return &cp
}
