package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("catalog: not found")

type Store interface {
	PutCourse(ctx context.Context, c Course) error
	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context, tenantID string) ([]Course, error)
	PutModule(ctx context.Context, m Module) error
	PutLesson(ctx context.Context, l Lesson) error
	PutAssignment(ctx context.Context, a Assignment) error
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	// GetOutline returns the course with modules and lessons fully ordered.
	GetOutline(ctx context.Context, courseID string) (CourseOutline, error)
	// CourseForLesson resolves the course a lesson belongs to.
	CourseForLesson(ctx context.Context, lessonID string) (string, error)
}

type memoryStore struct {
	mu          sync.RWMutex
	courses     map[string]Course
	modules     map[string]Module
	lessons     map[string]Lesson
	assignments map[string]Assignment
}

func NewInMemoryStore() Store {
	return &memoryStore{
		courses:     map[string]Course{},
		modules:     map[string]Module{},
		lessons:     map[string]Lesson{},
		assignments: map[string]Assignment{},
	}
}

func (m *memoryStore) PutCourse(_ context.Context, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = c
	return nil
}

func (m *memoryStore) GetCourse(_ context.Context, id string) (Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) ListCourses(_ context.Context, tenantID string) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Course
	for _, c := range m.courses {
		if tenantID == "" || c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *memoryStore) PutModule(_ context.Context, mod Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[mod.ID] = mod
	return nil
}

func (m *memoryStore) PutLesson(_ context.Context, l Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lessons[l.ID] = l
	return nil
}

func (m *memoryStore) PutAssignment(_ context.Context, a Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.ID] = a
	return nil
}

func (m *memoryStore) GetAssignment(_ context.Context, id string) (Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) CourseForLesson(_ context.Context, lessonID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lessons[lessonID]
	if !ok {
		return "", ErrNotFound
	}
	mod, ok := m.modules[l.ModuleID]
	if !ok {
		return "", ErrNotFound
	}
	return mod.CourseID, nil
}

func (m *memoryStore) GetOutline(_ context.Context, courseID string) (CourseOutline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[courseID]
	if !ok {
		return CourseOutline{}, ErrNotFound
	}
	out := CourseOutline{Course: c, Assignments: map[string]Assignment{}}
	for _, mod := range m.modules {
		if mod.CourseID != courseID {
			continue
		}
		mo := ModuleOutline{Module: mod}
		for _, l := range m.lessons {
			if l.ModuleID == mod.ID {
				mo.Lessons = append(mo.Lessons, l)
			}
		}
		sort.Slice(mo.Lessons, func(i, j int) bool {
			return mo.Lessons[i].SequenceOrder < mo.Lessons[j].SequenceOrder
		})
		out.Modules = append(out.Modules, mo)
	}
	sort.Slice(out.Modules, func(i, j int) bool {
		return out.Modules[i].Module.Position < out.Modules[j].Module.Position
	})
	lessonIDs := map[string]bool{}
	for _, l := range out.Lessons() {
		lessonIDs[l.ID] = true
	}
	for _, a := range m.assignments {
		if a.LessonID != "" && lessonIDs[a.LessonID] {
			out.Assignments[a.LessonID] = a
		}
	}
	return out, nil
}
