package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courseloop/courseloop-lms/internal/progress"
	"github.com/courseloop/courseloop-lms/internal/tenants"
)

func CreateEnrollmentHandler(prog progress.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			StudentID          string `json:"student_id"`
			CourseID           string `json:"course_id"`
			DripOverride       bool   `json:"drip_override"`
			DripEnabled        bool   `json:"drip_enabled"`
			SequentialOverride bool   `json:"sequential_override"`
			SequentialEnabled  bool   `json:"sequential_enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StudentID == "" || req.CourseID == "" {
			nethttp.Error(w, "student_id and course_id required", nethttp.StatusBadRequest)
			return
		}
		e, err := prog.CreateEnrollment(r.Context(), progress.Enrollment{
			TenantID:           tenants.FromContext(r.Context()),
			StudentID:          req.StudentID,
			CourseID:           req.CourseID,
			Status:             progress.EnrollmentActive,
			DripOverride:       req.DripOverride,
			DripEnabled:        req.DripEnabled,
			SequentialOverride: req.SequentialOverride,
			SequentialEnabled:  req.SequentialEnabled,
			CreatedAt:          time.Now().Unix(),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, e)
	}
}

// UpdateEnrollmentAccessHandler applies admin overrides: drip/sequential
// flags and the active/fees status.
func UpdateEnrollmentAccessHandler(prog progress.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var patch progress.AccessPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		if patch.Status != nil {
			switch *patch.Status {
			case progress.EnrollmentActive, progress.EnrollmentFeesDue,
				progress.EnrollmentCompleted, progress.EnrollmentWithdrawn:
			default:
				nethttp.Error(w, "bad status", nethttp.StatusBadRequest)
				return
			}
		}
		e, err := prog.UpdateEnrollmentAccess(r.Context(), chi.URLParam(r, "enrollmentID"), patch)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, e)
	}
}

type enrollmentRow struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
}

// BulkEnrollmentsHandler accepts either a multipart file= (CSV with
// student_id,course_id rows, or a JSON array) or a raw JSON array in the body.
func BulkEnrollmentsHandler(prog progress.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var rows []enrollmentRow
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				nethttp.Error(w, "file required", nethttp.StatusBadRequest)
				return
			}
			defer f.Close()
			buf := make([]byte, 1)
			if _, err := f.Read(buf); err != nil {
				nethttp.Error(w, "empty file", nethttp.StatusBadRequest)
				return
			}
			if seeker, ok := f.(io.Seeker); ok {
				_, _ = seeker.Seek(0, io.SeekStart)
			}
			if buf[0] == '[' || buf[0] == '{' {
				if err := json.NewDecoder(f).Decode(&rows); err != nil {
					nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
					return
				}
			} else {
				rs, err := parseEnrollmentCSV(f)
				if err != nil {
					nethttp.Error(w, "bad csv: "+err.Error(), nethttp.StatusBadRequest)
					return
				}
				rows = rs
			}
		} else {
			if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
				nethttp.Error(w, "expected JSON array or multipart file", nethttp.StatusBadRequest)
				return
			}
		}

		tenantID := tenants.FromContext(r.Context())
		now := time.Now().Unix()
		created, skipped := 0, 0
		for _, row := range rows {
			if row.StudentID == "" || row.CourseID == "" {
				skipped++
				continue
			}
			_, err := prog.CreateEnrollment(r.Context(), progress.Enrollment{
				TenantID:  tenantID,
				StudentID: row.StudentID,
				CourseID:  row.CourseID,
				Status:    progress.EnrollmentActive,
				CreatedAt: now,
			})
			switch {
			case err == nil:
				created++
			case errors.Is(err, progress.ErrEnrollmentConflict):
				skipped++ // already enrolled
			default:
				writeErr(w, err)
				return
			}
		}
		writeJSON(w, map[string]any{"created": created, "skipped": skipped})
	}
}

func parseEnrollmentCSV(f io.Reader) ([]enrollmentRow, error) {
	rd := csv.NewReader(f)
	rd.TrimLeadingSpace = true
	records, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	var rows []enrollmentRow
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		// skip a header row
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "student_id") {
			continue
		}
		rows = append(rows, enrollmentRow{
			StudentID: strings.TrimSpace(rec[0]),
			CourseID:  strings.TrimSpace(rec[1]),
		})
	}
	return rows, nil
}
