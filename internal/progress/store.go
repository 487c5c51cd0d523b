package progress

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("progress: not found")
	// ErrReviewPending rejects a resubmission while the latest version is
	// still waiting for review.
	ErrReviewPending = errors.New("progress: previous submission pending review")
	// ErrAlreadyApproved rejects a resubmission once the assignment is
	// approved (read-only).
	ErrAlreadyApproved = errors.New("progress: submission already approved")
	// ErrEnrollmentConflict surfaces the at-most-one-active-enrollment
	// uniqueness rule; the concurrent caller already won.
	ErrEnrollmentConflict = errors.New("progress: enrollment already exists")
)

type Store interface {
	// MarkWatched records a lesson as watched. Idempotent: a repeat call for
	// the same (user, lesson) returns the existing view unchanged with
	// created=false.
	MarkWatched(ctx context.Context, tenantID, userID, lessonID string, now time.Time) (LessonView, bool, error)
	Views(ctx context.Context, userID string) (map[string]LessonView, error)

	// CreateSubmission appends a new version for (assignment, student). The
	// store assigns ID, version and pending status.
	CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	// LatestSubmissions returns, per assignment, the highest-version
	// submission for the student. The version-precedence rule lives here and
	// nowhere else.
	LatestSubmissions(ctx context.Context, studentID string) (map[string]Submission, error)
	LatestSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
	ListSubmissionsByStatus(ctx context.Context, tenantID, status string) ([]Submission, error)
	ReviewSubmission(ctx context.Context, id, status, reviewer string, now time.Time) (Submission, error)

	CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	GetEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error)
	EnrollmentsForStudent(ctx context.Context, studentID string) ([]Enrollment, error)
	UpdateEnrollmentAccess(ctx context.Context, id string, patch AccessPatch) (Enrollment, error)
}

type memoryStore struct {
	mu          sync.RWMutex
	views       map[string]LessonView // userID|lessonID
	submissions []Submission
	enrollments map[string]Enrollment // id
}

func NewInMemoryStore() Store {
	return &memoryStore{
		views:       map[string]LessonView{},
		enrollments: map[string]Enrollment{},
	}
}

func viewKey(userID, lessonID string) string { return userID + "|" + lessonID }

func (m *memoryStore) MarkWatched(_ context.Context, tenantID, userID, lessonID string, now time.Time) (LessonView, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := viewKey(userID, lessonID)
	if v, ok := m.views[k]; ok && v.Watched {
		return v, false, nil
	}
	v := LessonView{TenantID: tenantID, UserID: userID, LessonID: lessonID, Watched: true, WatchedAt: now.Unix()}
	m.views[k] = v
	return v, true, nil
}

func (m *memoryStore) Views(_ context.Context, userID string) (map[string]LessonView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]LessonView{}
	for _, v := range m.views {
		if v.UserID == userID {
			out[v.LessonID] = v
		}
	}
	return out, nil
}

func (m *memoryStore) CreateSubmission(_ context.Context, sub Submission) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest, ok := m.latestLocked(sub.AssignmentID, sub.StudentID)
	if ok {
		switch latest.Status {
		case SubmissionPending:
			return Submission{}, ErrReviewPending
		case SubmissionApproved:
			return Submission{}, ErrAlreadyApproved
		}
	}
	sub.ID = uuid.NewString()
	sub.Version = latest.Version + 1
	sub.Status = SubmissionPending
	if sub.SubmittedAt == 0 {
		sub.SubmittedAt = time.Now().Unix()
	}
	m.submissions = append(m.submissions, sub)
	return sub, nil
}

func (m *memoryStore) latestLocked(assignmentID, studentID string) (Submission, bool) {
	var latest Submission
	found := false
	for _, s := range m.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID && s.Version > latest.Version {
			latest = s
			found = true
		}
	}
	return latest, found
}

func (m *memoryStore) GetSubmission(_ context.Context, id string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.submissions {
		if s.ID == id {
			return s, nil
		}
	}
	return Submission{}, ErrNotFound
}

func (m *memoryStore) LatestSubmissions(_ context.Context, studentID string) (map[string]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]Submission{}
	for _, s := range m.submissions {
		if s.StudentID != studentID {
			continue
		}
		if cur, ok := out[s.AssignmentID]; !ok || s.Version > cur.Version {
			out[s.AssignmentID] = s
		}
	}
	return out, nil
}

func (m *memoryStore) LatestSubmission(_ context.Context, assignmentID, studentID string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest, ok := m.latestLocked(assignmentID, studentID)
	if !ok {
		return Submission{}, ErrNotFound
	}
	return latest, nil
}

func (m *memoryStore) ListSubmissionsByStatus(_ context.Context, tenantID, status string) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Submission
	for _, s := range m.submissions {
		if s.Status == status && (tenantID == "" || s.TenantID == tenantID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt < out[j].SubmittedAt })
	return out, nil
}

func (m *memoryStore) ReviewSubmission(_ context.Context, id, status, reviewer string, now time.Time) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.submissions {
		if s.ID == id {
			s.Status = status
			s.ReviewedAt = now.Unix()
			s.ReviewedBy = reviewer
			m.submissions[i] = s
			return s, nil
		}
	}
	return Submission{}, ErrNotFound
}

func (m *memoryStore) CreateEnrollment(_ context.Context, e Enrollment) (Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.enrollments {
		if ex.StudentID != e.StudentID {
			continue
		}
		if ex.CourseID == e.CourseID {
			return Enrollment{}, ErrEnrollmentConflict
		}
		if e.PathwayID != "" && ex.PathwayID == e.PathwayID && ex.Status == EnrollmentActive {
			return Enrollment{}, ErrEnrollmentConflict
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = EnrollmentActive
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	m.enrollments[e.ID] = e
	return e, nil
}

func (m *memoryStore) GetEnrollment(_ context.Context, studentID, courseID string) (Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e, nil
		}
	}
	return Enrollment{}, ErrNotFound
}

func (m *memoryStore) EnrollmentsForStudent(_ context.Context, studentID string) ([]Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (m *memoryStore) UpdateEnrollmentAccess(_ context.Context, id string, patch AccessPatch) (Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return Enrollment{}, ErrNotFound
	}
	applyPatch(&e, patch)
	m.enrollments[id] = e
	return e, nil
}

func applyPatch(e *Enrollment, p AccessPatch) {
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.DripOverride != nil {
		e.DripOverride = *p.DripOverride
	}
	if p.DripEnabled != nil {
		e.DripEnabled = *p.DripEnabled
	}
	if p.SequentialOverride != nil {
		e.SequentialOverride = *p.SequentialOverride
	}
	if p.SequentialEnabled != nil {
		e.SequentialEnabled = *p.SequentialEnabled
	}
}
