package http

import (
	"encoding/json"
	"strings"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/courseloop/courseloop-lms/internal/auth/middleware"
	"github.com/courseloop/courseloop-lms/internal/pathway"
	"github.com/courseloop/courseloop-lms/internal/tenants"
)

func CreatePathwayHandler(store pathway.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Title string `json:"title"`
			Steps []struct {
				StepNumber  int    `json:"step_number"`
				CourseID    string `json:"course_id"`
				ChoiceGroup string `json:"choice_group"`
			} `json:"steps"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		p := pathway.Pathway{
			ID:        uuid.NewString(),
			TenantID:  tenants.FromContext(r.Context()),
			Title:     req.Title,
			CreatedAt: time.Now().Unix(),
		}
		for _, s := range req.Steps {
			if s.StepNumber <= 0 || s.CourseID == "" {
				nethttp.Error(w, "steps need a positive step_number and a course_id", nethttp.StatusBadRequest)
				return
			}
			p.Steps = append(p.Steps, pathway.Step{
				PathwayID:   p.ID,
				StepNumber:  s.StepNumber,
				CourseID:    s.CourseID,
				ChoiceGroup: s.ChoiceGroup,
			})
		}
		if err := store.PutPathway(r.Context(), p); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// GetPathwayHandler returns the display grouping plus the caller's derived
// state on the pathway.
func GetPathwayHandler(svc *pathway.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		st, steps, err := svc.State(r.Context(), chi.URLParam(r, "pathwayID"), studentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"state": st, "steps": steps})
	}
}

// StartPathwayHandler enrolls a student into a pathway at step 1. Admins may
// start any student; students may only start themselves.
func StartPathwayHandler(svc *pathway.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			StudentID string `json:"student_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		studentID := req.StudentID
		if studentID == "" {
			studentID = authmw.SubjectFromContext(r.Context())
		}
		st, err := svc.Start(r.Context(), tenants.FromContext(r.Context()),
			chi.URLParam(r, "pathwayID"), studentID, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, st)
	}
}

func AdvancePathwayHandler(svc *pathway.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		st, err := svc.Advance(r.Context(), tenants.FromContext(r.Context()),
			chi.URLParam(r, "pathwayID"), studentID, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, st)
	}
}

func MakeChoiceHandler(svc *pathway.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		var req struct {
			CourseID string `json:"course_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
			nethttp.Error(w, "course_id required", nethttp.StatusBadRequest)
			return
		}
		st, err := svc.MakeChoice(r.Context(), tenants.FromContext(r.Context()),
			chi.URLParam(r, "pathwayID"), studentID, req.CourseID, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, st)
	}
}
