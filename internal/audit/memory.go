package audit

import (
	"context"
	"sync"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

// MemoryLog keeps the audit trail in process memory.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[model.Category][]model.AuditEntry
	now     func() time.Time
}

// Compile-time check that MemoryLog implements Log.
var _ Log = (*MemoryLog)(nil)

// NewMemoryLog returns an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		entries: make(map[model.Category][]model.AuditEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryLog) Append(_ context.Context, category model.Category, payload any) (model.AuditEntry, error) {
	if err := CheckCategory(category); err != nil {
		return model.AuditEntry{}, err
	}
	data, err := EncodePayload(payload)
	if err != nil {
		return model.AuditEntry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e := model.AuditEntry{
		Seq:       int64(len(m.entries[category])) + 1,
		Category:  category,
		Timestamp: m.now(),
		Payload:   data,
	}
	m.entries[category] = append(m.entries[category], e)
	return e, nil
}

func (m *MemoryLog) Query(_ context.Context, category model.Category) ([]model.AuditEntry, error) {
	if err := CheckCategory(category); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AuditEntry, len(m.entries[category]))
	copy(out, m.entries[category])
	return out, nil
}

// Close is a no-op for the in-memory log.
func (m *MemoryLog) Close() error { return nil }
