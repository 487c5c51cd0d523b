package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmw "github.com/courseloop/courseloop-lms/internal/auth/middleware"
	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/progress"
	"github.com/courseloop/courseloop-lms/internal/storage"
	"github.com/courseloop/courseloop-lms/internal/tenants"
	"github.com/courseloop/courseloop-lms/internal/unlock"
)

type testEnv struct {
	cat  catalog.Store
	prog progress.Store
	mux  *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		cat:  catalog.NewInMemoryStore(),
		prog: progress.NewInMemoryStore(),
		mux:  chi.NewRouter(),
	}
	env.mux.Get("/courses/{courseID}/outline", CourseOutlineHandler(env.cat, env.prog))
	env.mux.Post("/lessons/{lessonID}/watch", WatchLessonHandler(env.cat, env.prog, nil))
	return env
}

// seedCourse builds a sequential two-lesson course and enrolls the student.
func (env *testEnv) seedCourse(t *testing.T, studentID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.cat.PutCourse(ctx, catalog.Course{ID: "c1", Title: "Intro", SequentialEnabled: true}))
	require.NoError(t, env.cat.PutModule(ctx, catalog.Module{ID: "m1", CourseID: "c1", Position: 1}))
	require.NoError(t, env.cat.PutLesson(ctx, catalog.Lesson{ID: "l1", ModuleID: "m1", SequenceOrder: 1}))
	require.NoError(t, env.cat.PutLesson(ctx, catalog.Lesson{ID: "l2", ModuleID: "m1", SequenceOrder: 2}))
	if studentID != "" {
		_, err := env.prog.CreateEnrollment(ctx, progress.Enrollment{
			StudentID: studentID, CourseID: "c1", Status: progress.EnrollmentActive,
		})
		require.NoError(t, err)
	}
}

func asStudent(r *nethttp.Request, studentID string) *nethttp.Request {
	ctx := authmw.WithSubject(r.Context(), studentID)
	ctx = tenants.WithTenant(ctx, "t1")
	return r.WithContext(ctx)
}

func TestOutlineRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "") // no enrollment

	r := asStudent(httptest.NewRequest("GET", "/courses/c1/outline", nil), "stu")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)

	assert.Equal(t, nethttp.StatusForbidden, w.Code)
}

func TestOutlineUnknownCourse(t *testing.T) {
	env := newTestEnv(t)
	r := asStudent(httptest.NewRequest("GET", "/courses/missing/outline", nil), "stu")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)

	assert.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestOutlineReportsLockReasons(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "stu")

	r := asStudent(httptest.NewRequest("GET", "/courses/c1/outline", nil), "stu")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)

	require.Equal(t, nethttp.StatusOK, w.Code)
	var out unlock.CourseStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Lessons, 2)
	assert.True(t, out.Lessons[0].Unlocked)
	assert.Equal(t, unlock.ReasonPrevLessonNotWatched, out.Lessons[1].Reason)
	assert.Equal(t, 2, out.TotalLessons)
}

func TestWatchLockedLessonRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "stu")

	r := asStudent(httptest.NewRequest("POST", "/lessons/l2/watch", nil), "stu")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)

	require.Equal(t, nethttp.StatusForbidden, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(unlock.ReasonPrevLessonNotWatched), body["reason"])
}

func TestWatchUnlockedLesson(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "stu")

	r := asStudent(httptest.NewRequest("POST", "/lessons/l1/watch", nil), "stu")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)

	require.Equal(t, nethttp.StatusOK, w.Code)
	var view progress.LessonView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.True(t, view.Watched)
	assert.Equal(t, "t1", view.TenantID)

	// l2 unlocks once l1 is watched
	r = asStudent(httptest.NewRequest("POST", "/lessons/l2/watch", nil), "stu")
	w = httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	assert.Equal(t, nethttp.StatusOK, w.Code)
}

func TestWatchIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "stu")

	r := asStudent(httptest.NewRequest("POST", "/lessons/l1/watch", nil), "stu")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var first progress.LessonView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	time.Sleep(10 * time.Millisecond)
	r = asStudent(httptest.NewRequest("POST", "/lessons/l1/watch", nil), "stu")
	w = httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var second progress.LessonView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))

	assert.Equal(t, first.WatchedAt, second.WatchedAt)
}

func TestSubmitStandaloneAssignmentRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.cat.PutAssignment(ctx, catalog.Assignment{
		ID: "a-solo", Name: "Essay", SubmissionType: "text",
	}))
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	mux := chi.NewRouter()
	mux.Post("/assignments/{assignmentID}/submissions", CreateSubmissionHandler(env.cat, env.prog, blobs, nil))

	body := strings.NewReader(`{"body_text":"hello"}`)
	r := asStudent(httptest.NewRequest("POST", "/assignments/a-solo/submissions", body), "stu")
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	require.Equal(t, nethttp.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not linked to a lesson")
}

type watchSink struct{ types []string }

func (s *watchSink) Append(_ context.Context, typ, _ string, _ any) error {
	s.types = append(s.types, typ)
	return nil
}

func TestWatchEmitsEventOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "stu")
	sink := &watchSink{}
	mux := chi.NewRouter()
	mux.Post("/lessons/{lessonID}/watch", WatchLessonHandler(env.cat, env.prog, sink))

	// back-to-back watches land inside the same wall-clock second; only the
	// first creates the view, so only one event comes out
	for i := 0; i < 2; i++ {
		r := asStudent(httptest.NewRequest("POST", "/lessons/l1/watch", nil), "stu")
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		require.Equal(t, nethttp.StatusOK, w.Code)
	}
	assert.Equal(t, []string{"lesson.watched"}, sink.types)
}

func TestWatchFeesDueLockedOut(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "") // enroll manually with fees due
	_, err := env.prog.CreateEnrollment(context.Background(), progress.Enrollment{
		StudentID: "stu", CourseID: "c1", Status: progress.EnrollmentFeesDue,
	})
	require.NoError(t, err)

	r := asStudent(httptest.NewRequest("POST", "/lessons/l1/watch", nil), "stu")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)

	require.Equal(t, nethttp.StatusForbidden, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(unlock.ReasonFeesNotCleared), body["reason"])
}
