package http

import (
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/courseloop/courseloop-lms/internal/auth/middleware"
	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/pathway"
	"github.com/courseloop/courseloop-lms/internal/progress"
	"github.com/courseloop/courseloop-lms/internal/tenants"
	"github.com/courseloop/courseloop-lms/internal/unlock"
)

// CourseOutlineHandler returns the course contents with the student's
// per-lesson unlock verdicts and per-assignment submit eligibility.
func CourseOutlineHandler(cat catalog.Store, prog progress.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		courseID := chi.URLParam(r, "courseID")

		outline, err := cat.GetOutline(r.Context(), courseID)
		if err != nil {
			writeErr(w, err)
			return
		}
		enr, err := prog.GetEnrollment(r.Context(), studentID, courseID)
		if err != nil {
			nethttp.Error(w, "not enrolled", nethttp.StatusForbidden)
			return
		}
		st, err := unlock.LoadState(r.Context(), prog, enr)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, unlock.EvaluateCourse(outline, st, time.Now()))
	}
}

// WatchLessonHandler records a lesson as watched. The unlock evaluator gates
// the write: a locked lesson can never become watched.
func WatchLessonHandler(cat catalog.Store, prog progress.Store, events pathway.EventSink) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		lessonID := chi.URLParam(r, "lessonID")

		courseID, err := cat.CourseForLesson(r.Context(), lessonID)
		if err != nil {
			writeErr(w, err)
			return
		}
		outline, err := cat.GetOutline(r.Context(), courseID)
		if err != nil {
			writeErr(w, err)
			return
		}
		enr, err := prog.GetEnrollment(r.Context(), studentID, courseID)
		if err != nil {
			nethttp.Error(w, "not enrolled", nethttp.StatusForbidden)
			return
		}
		st, err := unlock.LoadState(r.Context(), prog, enr)
		if err != nil {
			writeErr(w, err)
			return
		}
		now := time.Now()
		cs := unlock.EvaluateCourse(outline, st, now)
		var status *unlock.LessonStatus
		for i := range cs.Lessons {
			if cs.Lessons[i].Lesson.ID == lessonID {
				status = &cs.Lessons[i]
				break
			}
		}
		if status == nil {
			nethttp.Error(w, "not found", nethttp.StatusNotFound)
			return
		}
		if !status.Unlocked {
			writeJSON2(w, nethttp.StatusForbidden, map[string]any{
				"error":  "lesson locked",
				"reason": status.Reason,
			})
			return
		}
		view, created, err := prog.MarkWatched(r.Context(), tenants.FromContext(r.Context()), studentID, lessonID, now)
		if err != nil {
			writeErr(w, err)
			return
		}
		if events != nil && created {
			_ = events.Append(r.Context(), "lesson.watched", lessonID, map[string]any{
				"student_id": studentID, "course_id": courseID,
			})
		}
		writeJSON(w, view)
	}
}

func writeJSON2(w nethttp.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, v)
}

// MyEnrollmentsHandler lists the student's enrollments.
func MyEnrollmentsHandler(prog progress.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		out, err := prog.EnrollmentsForStudent(r.Context(), studentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"enrollments": out})
	}
}
