// Package http holds the gateway's HTTP handlers. Handlers only — routes
// remain in cmd/gateway/main.go.
package http

import (
	"encoding/json"
	"errors"

	nethttp "net/http"

	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/pathway"
	"github.com/courseloop/courseloop-lms/internal/progress"
)

func writeJSON(w nethttp.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the domain's sentinel errors onto HTTP statuses. Conflicts
// carry 409 so the client knows to refresh state rather than retry blindly.
func writeErr(w nethttp.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, progress.ErrNotFound),
		errors.Is(err, pathway.ErrNotFound):
		nethttp.Error(w, "not found", nethttp.StatusNotFound)
	case errors.Is(err, pathway.ErrInvalidChoice):
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
	case errors.Is(err, pathway.ErrCourseIncomplete),
		errors.Is(err, pathway.ErrChoicePending),
		errors.Is(err, pathway.ErrPathwayComplete),
		errors.Is(err, pathway.ErrConcurrentAdvance),
		errors.Is(err, progress.ErrReviewPending),
		errors.Is(err, progress.ErrAlreadyApproved),
		errors.Is(err, progress.ErrEnrollmentConflict):
		nethttp.Error(w, err.Error(), nethttp.StatusConflict)
	default:
		nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
	}
}
