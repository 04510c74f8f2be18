package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/audiopanel/adstudy/internal/core"
)

// MemoryStore is an in-memory core.RecordStore with the same semantics as
// the SQLite store. Tests and local development use it in place of a
// database file.
type MemoryStore struct {
	mu           sync.RWMutex
	participants map[string]*core.Participant
	order        []string
	responses    []core.SurveyResponse
	now          func() time.Time
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		participants: map[string]*core.Participant{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a copy of the record for id, or core.ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (*core.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.participants[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	clone := *p

	return &clone, nil
}

// UpsertT0 creates or re-stamps the record for id, preserving audio and QC
// state on resubmission.
func (m *MemoryStore) UpsertT0(_ context.Context, id string, condition core.Condition, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamp := completedAt

	if existing, ok := m.participants[id]; ok {
		existing.Condition = condition
		existing.T0CompletedAt = &stamp

		return nil
	}

	m.participants[id] = &core.Participant{
		ID:            id,
		Condition:     condition,
		CreatedAt:     m.now(),
		AudioStatus:   core.AudioPending,
		QCStatus:      core.QCPending,
		T0CompletedAt: &stamp,
	}
	m.order = append(m.order, id)

	return nil
}

// Update applies the non-nil fields of upd to an existing record.
func (m *MemoryStore) Update(_ context.Context, id string, upd core.RecordUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return core.ErrNotFound
	}

	if upd.AudioStatus != nil {
		p.AudioStatus = *upd.AudioStatus
	}

	if upd.AudioPath != nil {
		p.AudioPath = *upd.AudioPath
	}

	if upd.AudioError != nil {
		p.AudioError = *upd.AudioError
	}

	if upd.AudioGeneratedAt != nil {
		stamp := *upd.AudioGeneratedAt
		p.AudioGeneratedAt = &stamp
	}

	if upd.QCStatus != nil {
		p.QCStatus = *upd.QCStatus
	}

	if upd.QCCheckedAt != nil {
		stamp := *upd.QCCheckedAt
		p.QCCheckedAt = &stamp
	}

	if upd.QCNotes != nil {
		p.QCNotes = *upd.QCNotes
	}

	return nil
}

// ListPending returns up to limit pending records for the given conditions
// in insertion order.
func (m *MemoryStore) ListPending(_ context.Context, conditions []core.Condition, limit int) ([]core.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := map[core.Condition]bool{}
	for _, c := range conditions {
		wanted[c] = true
	}

	var out []core.Participant

	for _, id := range m.order {
		if len(out) >= limit {
			break
		}

		p := m.participants[id]
		if p.AudioStatus == core.AudioPending && wanted[p.Condition] {
			out = append(out, *p)
		}
	}

	return out, nil
}

// MarkLowGenerated bulk-updates every pending low record.
func (m *MemoryStore) MarkLowGenerated(_ context.Context, path string, generatedAt time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0

	for _, p := range m.participants {
		if p.Condition != core.ConditionLow || p.AudioStatus != core.AudioPending {
			continue
		}

		stamp := generatedAt
		p.AudioStatus = core.AudioGenerated
		p.AudioPath = path
		p.AudioGeneratedAt = &stamp
		p.AudioError = ""
		updated++
	}

	return updated, nil
}

// ListQCQueue returns reviewable high-condition records, newest generation
// first.
func (m *MemoryStore) ListQCQueue(_ context.Context) ([]core.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Participant

	for _, p := range m.participants {
		if p.Condition != core.ConditionHigh || p.AudioStatus != core.AudioGenerated {
			continue
		}

		if p.QCStatus != core.QCPending && p.QCStatus != core.QCNeedsFix {
			continue
		}

		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		left, right := out[i].AudioGeneratedAt, out[j].AudioGeneratedAt
		if left == nil || right == nil {
			return right == nil
		}

		return left.After(*right)
	})

	return out, nil
}

// IncrementReplacements adds one to the replacement counter under the store
// lock.
func (m *MemoryStore) IncrementReplacements(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return core.ErrNotFound
	}

	p.QCReplacements++

	return nil
}

// AppendResponse appends one survey response to the log.
func (m *MemoryStore) AppendResponse(_ context.Context, resp *core.SurveyResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *resp
	clone.Answers = map[string]int{}

	for k, v := range resp.Answers {
		clone.Answers[k] = v
	}

	m.responses = append(m.responses, clone)

	return nil
}

// ListResponses returns all responses recorded for id, oldest first.
func (m *MemoryStore) ListResponses(_ context.Context, id string) ([]core.SurveyResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.SurveyResponse

	for _, r := range m.responses {
		if r.ParticipantID == id {
			out = append(out, r)
		}
	}

	return out, nil
}

// StampT1 sets the T1 completion timestamp for id.
func (m *MemoryStore) StampT1(_ context.Context, id string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return core.ErrNotFound
	}

	stamp := completedAt
	p.T1CompletedAt = &stamp

	return nil
}
