package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRecordStore keeps records in process memory
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*FileRecord
}

// NewMemoryRecordStore creates an empty in-memory store
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[string]*FileRecord),
	}
}

// Insert adds rec; an existing id is an error
func (s *MemoryRecordStore) Insert(ctx context.Context, rec *FileRecord) error {
	if rec == nil || rec.FileID == "" {
		return fmt.Errorf("file ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.FileID]; exists {
		return fmt.Errorf("record already exists: %s", rec.FileID)
	}
	s.records[rec.FileID] = rec.Clone()
	return nil
}

// Get returns a copy of the record for id
func (s *MemoryRecordStore) Get(ctx context.Context, id string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Update applies fn to a copy and stores it if fn succeeds
func (s *MemoryRecordStore) Update(ctx context.Context, id string, fn func(*FileRecord) error) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	updated := rec.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	updated.FileID = id
	s.records[id] = updated
	return updated.Clone(), nil
}

// Delete removes the record for id
func (s *MemoryRecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// List returns matching records in upload order
func (s *MemoryRecordStore) List(ctx context.Context, filter Filter) ([]*FileRecord, error) {
	s.mu.RLock()
	all := make([]*FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Matches(rec) {
			all = append(all, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sortByUpload(all)
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

// OlderThan returns records uploaded before cutoff
func (s *MemoryRecordStore) OlderThan(ctx context.Context, cutoff time.Time) ([]*FileRecord, error) {
	s.mu.RLock()
	var out []*FileRecord
	for _, rec := range s.records {
		if rec.UploadedAt.Before(cutoff) {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sortByUpload(out)
	return out, nil
}

// Ping always succeeds
func (s *MemoryRecordStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryRecordStore) Close() error {
	return nil
}

func sortByUpload(recs []*FileRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].UploadedAt.Equal(recs[j].UploadedAt) {
			return recs[i].FileID < recs[j].FileID
		}
		return recs[i].UploadedAt.Before(recs[j].UploadedAt)
	})
}
