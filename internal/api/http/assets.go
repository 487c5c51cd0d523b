package http

import (
	"io"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/courseloop/courseloop-lms/internal/auth/middleware"
	"github.com/courseloop/courseloop-lms/internal/progress"
	"github.com/courseloop/courseloop-lms/internal/rbac"
	"github.com/courseloop/courseloop-lms/internal/storage"
)

// SubmissionFileHandler streams a file submission's blob. Students may fetch
// their own uploads; reviewers anyone's.
func SubmissionFileHandler(prog progress.Store, blobs storage.BlobStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sub, err := prog.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		caller := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if sub.StudentID != caller && !rbac.NewChecker(nil).Has(role, "submission:view-all") {
			nethttp.Error(w, "forbidden", nethttp.StatusForbidden)
			return
		}
		if sub.FileKey == "" {
			nethttp.Error(w, "no file for submission", nethttp.StatusNotFound)
			return
		}
		rc, err := blobs.Get(sub.FileKey)
		if err != nil {
			nethttp.Error(w, "blob not found", nethttp.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	}
}
