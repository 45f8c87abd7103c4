package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistrationStore is an in-memory RegistrationStore. It is the
// default backend and the one tests run against.
type MemoryRegistrationStore struct {
	mu      sync.RWMutex
	records map[string]*RegistrationRecord
}

// NewMemoryRegistrationStore creates an empty in-memory store.
func NewMemoryRegistrationStore() *MemoryRegistrationStore {
	return &MemoryRegistrationStore{records: make(map[string]*RegistrationRecord)}
}

var _ RegistrationStore = (*MemoryRegistrationStore)(nil)

func (s *MemoryRegistrationStore) CreateRegistration(_ context.Context, rec *RegistrationRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return ErrConflict
	}
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

func (s *MemoryRegistrationStore) GetRegistration(_ context.Context, id string) (*RegistrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryRegistrationStore) ListRegistrations(_ context.Context) ([]*RegistrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(*RegistrationRecord) bool { return true }), nil
}

func (s *MemoryRegistrationStore) ListEnabledRegistrations(_ context.Context) ([]*RegistrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(rec *RegistrationRecord) bool { return rec.Enabled }), nil
}

// list assumes the read lock is held.
func (s *MemoryRegistrationStore) list(keep func(*RegistrationRecord) bool) []*RegistrationRecord {
	out := make([]*RegistrationRecord, 0, len(s.records))
	for _, rec := range s.records {
		if keep(rec) {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryRegistrationStore) UpdateRegistration(_ context.Context, rec *RegistrationRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; !exists {
		return ErrNotFound
	}
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

func (s *MemoryRegistrationStore) DeleteRegistration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryRegistrationStore) Close() error { return nil }

// copyRecord deep-copies a record so callers never alias store state.
func copyRecord(rec *RegistrationRecord) *RegistrationRecord {
	if rec == nil {
		return nil
	}
	cpy := *rec
	if rec.Properties.TemplateID != nil {
		tmplID := *rec.Properties.TemplateID
		cpy.Properties.TemplateID = &tmplID
	}
	if rec.Properties.Scope != nil {
		cpy.Properties.Scope = append([]string(nil), rec.Properties.Scope...)
	}
	return &cpy
}
