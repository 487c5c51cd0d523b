package pathway

import (
	"context"
	"sort"
	"sync"
	"time"
)

type Store interface {
	PutPathway(ctx context.Context, p Pathway) error
	// GetPathway returns the pathway with steps in ascending step order.
	GetPathway(ctx context.Context, id string) (Pathway, error)
	ListPathways(ctx context.Context, tenantID string) ([]Pathway, error)
	// ChoicesFor returns the student's resolved choice groups: group -> course.
	ChoicesFor(ctx context.Context, pathwayID, studentID string) (map[string]string, error)
	// RecordChoice commits one alternative permanently. A second choice for
	// the same group fails with ErrInvalidChoice.
	RecordChoice(ctx context.Context, pathwayID, studentID, choiceGroup, courseID string, now time.Time) error
}

type memoryStore struct {
	mu       sync.RWMutex
	pathways map[string]Pathway
	choices  map[string]map[string]string // pathwayID|studentID -> group -> course
}

func NewInMemoryStore() Store {
	return &memoryStore{
		pathways: map[string]Pathway{},
		choices:  map[string]map[string]string{},
	}
}

func (m *memoryStore) PutPathway(_ context.Context, p Pathway) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.SliceStable(p.Steps, func(i, j int) bool { return p.Steps[i].StepNumber < p.Steps[j].StepNumber })
	m.pathways[p.ID] = p
	return nil
}

func (m *memoryStore) GetPathway(_ context.Context, id string) (Pathway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pathways[id]
	if !ok {
		return Pathway{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) ListPathways(_ context.Context, tenantID string) ([]Pathway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Pathway
	for _, p := range m.pathways {
		if tenantID == "" || p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *memoryStore) ChoicesFor(_ context.Context, pathwayID, studentID string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]string{}
	for g, c := range m.choices[pathwayID+"|"+studentID] {
		out[g] = c
	}
	return out, nil
}

func (m *memoryStore) RecordChoice(_ context.Context, pathwayID, studentID, choiceGroup, courseID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pathwayID + "|" + studentID
	if m.choices[k] == nil {
		m.choices[k] = map[string]string{}
	}
	if _, done := m.choices[k][choiceGroup]; done {
		return ErrInvalidChoice
	}
	m.choices[k][choiceGroup] = courseID
	return nil
}
