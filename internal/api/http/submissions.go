package http

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/courseloop/courseloop-lms/internal/auth/middleware"
	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/pathway"
	"github.com/courseloop/courseloop-lms/internal/progress"
	"github.com/courseloop/courseloop-lms/internal/storage"
	"github.com/courseloop/courseloop-lms/internal/tenants"
	"github.com/courseloop/courseloop-lms/internal/unlock"
)

// GetAssignmentHandler returns the assignment with the student's eligibility
// verdict and latest submission.
func GetAssignmentHandler(cat catalog.Store, prog progress.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		a, cs, err := evaluateAssignment(r, cat, prog, chi.URLParam(r, "assignmentID"), studentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if as, ok := cs.Assignments[a.ID]; ok {
			writeJSON(w, as)
			return
		}
		writeJSON(w, unlock.AssignmentStatus{Assignment: a})
	}
}

// CreateSubmissionHandler appends a new submission version. Accepts JSON
// {"body_text": ...} or multipart form-data with a file= part for file
// assignments.
func CreateSubmissionHandler(cat catalog.Store, prog progress.Store, blobs storage.BlobStore, events pathway.EventSink) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		assignmentID := chi.URLParam(r, "assignmentID")

		a, cs, err := evaluateAssignment(r, cat, prog, assignmentID, studentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if a.LessonID == "" {
			// standalone assignments have no course to unlock against
			nethttp.Error(w, "assignment not linked to a lesson", nethttp.StatusForbidden)
			return
		}
		as, ok := cs.Assignments[a.ID]
		if !ok || !as.Submittable {
			if as.ReadOnly {
				writeErr(w, progress.ErrAlreadyApproved)
				return
			}
			if as.Latest != nil && as.Latest.Status == progress.SubmissionPending {
				writeErr(w, progress.ErrReviewPending)
				return
			}
			nethttp.Error(w, "assignment not open for submission", nethttp.StatusForbidden)
			return
		}

		sub := progress.Submission{
			TenantID:     tenants.FromContext(r.Context()),
			AssignmentID: a.ID,
			StudentID:    studentID,
		}
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			f, hdr, err := r.FormFile("file")
			if err != nil {
				nethttp.Error(w, "file required", nethttp.StatusBadRequest)
				return
			}
			defer f.Close()
			name := filepath.Base(filepath.Clean(hdr.Filename))
			if name == "." || name == ".." || name == "/" {
				name = "upload"
			}
			key := "submissions/" + uuid.NewString() + "/" + name
			if _, err := blobs.Put(key, f); err != nil {
				writeErr(w, err)
				return
			}
			sub.FileKey = key
		} else {
			var req struct {
				BodyText string `json:"body_text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
				return
			}
			sub.BodyText = req.BodyText
		}

		created, err := prog.CreateSubmission(r.Context(), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		if events != nil {
			_ = events.Append(r.Context(), "submission.created", created.ID, map[string]any{
				"assignment_id": a.ID, "student_id": studentID, "version": created.Version,
			})
		}
		writeJSON(w, created)
	}
}

// ListPendingSubmissionsHandler is the mentor review queue.
func ListPendingSubmissionsHandler(prog progress.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		status := r.URL.Query().Get("status")
		if status == "" {
			status = progress.SubmissionPending
		}
		out, err := prog.ListSubmissionsByStatus(r.Context(), tenants.FromContext(r.Context()), status)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"submissions": out})
	}
}

// ReviewSubmissionHandler approves or declines a pending submission.
func ReviewSubmissionHandler(prog progress.Store, events pathway.EventSink) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		reviewer := authmw.SubjectFromContext(r.Context())
		id := chi.URLParam(r, "submissionID")
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if req.Status != progress.SubmissionApproved && req.Status != progress.SubmissionDeclined {
			nethttp.Error(w, "status must be approved or declined", nethttp.StatusBadRequest)
			return
		}
		sub, err := prog.ReviewSubmission(r.Context(), id, req.Status, reviewer, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		if events != nil {
			_ = events.Append(r.Context(), "submission.reviewed", sub.ID, map[string]any{
				"assignment_id": sub.AssignmentID, "student_id": sub.StudentID,
				"status": sub.Status, "version": sub.Version,
			})
		}
		writeJSON(w, sub)
	}
}

// evaluateAssignment resolves the assignment's course and runs the evaluator
// for the calling student.
func evaluateAssignment(r *nethttp.Request, cat catalog.Store, prog progress.Store, assignmentID, studentID string) (catalog.Assignment, unlock.CourseStatus, error) {
	ctx := r.Context()
	a, err := cat.GetAssignment(ctx, assignmentID)
	if err != nil {
		return catalog.Assignment{}, unlock.CourseStatus{}, err
	}
	if a.LessonID == "" {
		return a, unlock.CourseStatus{}, nil
	}
	courseID, err := cat.CourseForLesson(ctx, a.LessonID)
	if err != nil {
		return catalog.Assignment{}, unlock.CourseStatus{}, err
	}
	outline, err := cat.GetOutline(ctx, courseID)
	if err != nil {
		return catalog.Assignment{}, unlock.CourseStatus{}, err
	}
	enr, err := prog.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		return catalog.Assignment{}, unlock.CourseStatus{}, err
	}
	st, err := unlock.LoadState(ctx, prog, enr)
	if err != nil {
		return catalog.Assignment{}, unlock.CourseStatus{}, err
	}
	return a, unlock.EvaluateCourse(outline, st, time.Now()), nil
}
