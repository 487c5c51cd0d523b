package http

import (
	"encoding/json"
	"strings"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/courseloop/courseloop-lms/internal/auth/middleware"
	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/tenants"
)

func CreateCourseHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Title             string `json:"title"`
			DripEnabled       bool   `json:"drip_enabled"`
			SequentialEnabled bool   `json:"sequential_enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		c := catalog.Course{
			ID:                uuid.NewString(),
			TenantID:          tenants.FromContext(r.Context()),
			Title:             req.Title,
			DripEnabled:       req.DripEnabled,
			SequentialEnabled: req.SequentialEnabled,
			CreatedBy:         authmw.SubjectFromContext(r.Context()),
			CreatedAt:         time.Now().Unix(),
		}
		if err := store.PutCourse(r.Context(), c); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, c)
	}
}

func ListCoursesHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		out, err := store.ListCourses(r.Context(), tenants.FromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"courses": out})
	}
}

func GetCourseHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		out, err := store.GetOutline(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, out)
	}
}

func CreateModuleHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		courseID := chi.URLParam(r, "courseID")
		var req struct {
			Title    string `json:"title"`
			Position int    `json:"position"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if _, err := store.GetCourse(r.Context(), courseID); err != nil {
			writeErr(w, err)
			return
		}
		m := catalog.Module{ID: uuid.NewString(), CourseID: courseID, Title: req.Title, Position: req.Position}
		if err := store.PutModule(r.Context(), m); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, m)
	}
}

func CreateLessonHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		moduleID := chi.URLParam(r, "moduleID")
		var req struct {
			Title           string `json:"title"`
			SequenceOrder   int    `json:"sequence_order"`
			DurationMinutes int    `json:"duration_minutes"`
			DripUnlockAt    int64  `json:"drip_unlock_at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if req.SequenceOrder <= 0 {
			nethttp.Error(w, "sequence_order must be positive", nethttp.StatusBadRequest)
			return
		}
		l := catalog.Lesson{
			ID:              uuid.NewString(),
			ModuleID:        moduleID,
			Title:           req.Title,
			SequenceOrder:   req.SequenceOrder,
			DurationMinutes: req.DurationMinutes,
			DripUnlockAt:    req.DripUnlockAt,
		}
		if err := store.PutLesson(r.Context(), l); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, l)
	}
}

func CreateAssignmentHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Name           string `json:"name"`
			LessonID       string `json:"lesson_id"`
			SubmissionType string `json:"submission_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if req.SubmissionType == "" {
			req.SubmissionType = "text"
		}
		a := catalog.Assignment{
			ID:             uuid.NewString(),
			TenantID:       tenants.FromContext(r.Context()),
			Name:           req.Name,
			LessonID:       req.LessonID,
			SubmissionType: req.SubmissionType,
		}
		if err := store.PutAssignment(r.Context(), a); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, a)
	}
}
