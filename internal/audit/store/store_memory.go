package store

import (
	"context"
	"slices"
	"sync"

	"portal/internal/audit"
	id "portal/pkg/domain"
)

// InMemory keeps the trail and an outbox queue in process.
type InMemory struct {
	mu        sync.RWMutex
	entries   map[id.ApplicationID][]audit.Entry
	outbox    []audit.OutboxRecord
	published map[int64]bool
	seq       int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		entries:   make(map[id.ApplicationID][]audit.Entry),
		published: make(map[int64]bool),
	}
}

func (s *InMemory) Append(_ context.Context, entry audit.Entry) error {
	payload, err := marshalPayload(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ApplicationID] = append(s.entries[entry.ApplicationID], entry)
	s.seq++
	s.outbox = append(s.outbox, audit.OutboxRecord{
		Seq:     s.seq,
		EntryID: entry.ID,
		Key:     entry.ApplicationID.String(),
		Payload: payload,
	})
	return nil
}

func (s *InMemory) ListByApplication(_ context.Context, applicationID id.ApplicationID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.entries[applicationID])
	slices.SortStableFunc(out, func(a, b audit.Entry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if out == nil {
		out = []audit.Entry{}
	}
	return out, nil
}

// FetchUnpublished returns up to limit unpublished outbox records in order.
func (s *InMemory) FetchUnpublished(_ context.Context, limit int) ([]audit.OutboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.OutboxRecord, 0, limit)
	for _, rec := range s.outbox {
		if len(out) == limit {
			break
		}
		if !s.published[rec.Seq] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, seqs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seq := range seqs {
		s.published[seq] = true
	}
	return nil
}
