package progress

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) MarkWatched(ctx context.Context, tenantID, userID, lessonID string, now time.Time) (LessonView, bool, error) {
	// ON CONFLICT DO NOTHING keeps watched monotonic and the call idempotent;
	// zero rows affected means the view already existed.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lesson_views (tenant_id,user_id,lesson_id,watched,watched_at)
		 VALUES ($1,$2,$3,TRUE,$4)
		 ON CONFLICT (user_id,lesson_id) DO NOTHING`,
		tenantID, userID, lessonID, now.Unix())
	if err != nil {
		return LessonView{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return LessonView{}, false, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant_id,user_id,lesson_id,watched,COALESCE(watched_at,0)
		   FROM lesson_views WHERE user_id=$1 AND lesson_id=$2`, userID, lessonID)
	var v LessonView
	if err := row.Scan(&v.TenantID, &v.UserID, &v.LessonID, &v.Watched, &v.WatchedAt); err != nil {
		return LessonView{}, false, err
	}
	return v, n > 0, nil
}

func (s *SQLStore) Views(ctx context.Context, userID string) (map[string]LessonView, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id,user_id,lesson_id,watched,COALESCE(watched_at,0)
		   FROM lesson_views WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]LessonView{}
	for rows.Next() {
		var v LessonView
		if err := rows.Scan(&v.TenantID, &v.UserID, &v.LessonID, &v.Watched, &v.WatchedAt); err != nil {
			return nil, err
		}
		out[v.LessonID] = v
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateSubmission(ctx context.Context, sub Submission) (Submission, error) {
	latest, err := s.LatestSubmission(ctx, sub.AssignmentID, sub.StudentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Submission{}, err
	}
	if err == nil {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id,tenant_id,assignment_id,student_id,status,version,body_text,file_key,submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sub.ID, sub.TenantID, sub.AssignmentID, sub.StudentID, sub.Status, sub.Version,
		sub.BodyText, sub.FileKey, sub.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Concurrent resubmission took this version; its row is pending.
			return Submission{}, ErrReviewPending
		}
		return Submission{}, err
	}
	return sub, nil
}

const submissionCols = `id,tenant_id,assignment_id,student_id,status,version,body_text,file_key,submitted_at,COALESCE(reviewed_at,0),COALESCE(reviewed_by,'')`

func scanSubmission(row interface{ Scan(...any) error }) (Submission, error) {
	var sub Submission
	err := row.Scan(&sub.ID, &sub.TenantID, &sub.AssignmentID, &sub.StudentID, &sub.Status,
		&sub.Version, &sub.BodyText, &sub.FileKey, &sub.SubmittedAt, &sub.ReviewedAt, &sub.ReviewedBy)
	return sub, err
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return sub, err
}

func (s *SQLStore) LatestSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM submissions
		  WHERE assignment_id=$1 AND student_id=$2
		  ORDER BY version DESC LIMIT 1`, assignmentID, studentID)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return sub, err
}

func (s *SQLStore) LatestSubmissions(ctx context.Context, studentID string) (map[string]Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM submissions
		  WHERE student_id=$1 ORDER BY assignment_id, version`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		// rows arrive in ascending version order; the last one per
		// assignment wins.
		out[sub.AssignmentID] = sub
	}
	return out, rows.Err()
}

func (s *SQLStore) ListSubmissionsByStatus(ctx context.Context, tenantID, status string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM submissions
		  WHERE tenant_id=$1 AND status=$2 ORDER BY submitted_at`, tenantID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) ReviewSubmission(ctx context.Context, id, status, reviewer string, now time.Time) (Submission, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status=$1, reviewed_at=$2, reviewed_by=$3 WHERE id=$4`,
		status, now.Unix(), reviewer, id)
	if err != nil {
		return Submission{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Submission{}, ErrNotFound
	}
	return s.GetSubmission(ctx, id)
}

func (s *SQLStore) CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = EnrollmentActive
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	var pathway, step any
	if e.PathwayID != "" {
		pathway = e.PathwayID
		step = e.StepNumber
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (id,tenant_id,student_id,course_id,pathway_id,step_number,status,
		   drip_override,drip_enabled,sequential_override,sequential_enabled,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.TenantID, e.StudentID, e.CourseID, pathway, step, e.Status,
		e.DripOverride, e.DripEnabled, e.SequentialOverride, e.SequentialEnabled, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Enrollment{}, ErrEnrollmentConflict
		}
		return Enrollment{}, err
	}
	return e, nil
}

const enrollmentCols = `id,tenant_id,student_id,course_id,COALESCE(pathway_id,''),COALESCE(step_number,0),status,drip_override,drip_enabled,sequential_override,sequential_enabled,created_at`

func scanEnrollment(row interface{ Scan(...any) error }) (Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.TenantID, &e.StudentID, &e.CourseID, &e.PathwayID, &e.StepNumber,
		&e.Status, &e.DripOverride, &e.DripEnabled, &e.SequentialOverride, &e.SequentialEnabled, &e.CreatedAt)
	return e, err
}

func (s *SQLStore) GetEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE student_id=$1 AND course_id=$2`,
		studentID, courseID)
	e, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, ErrNotFound
	}
	return e, err
}

func (s *SQLStore) EnrollmentsForStudent(ctx context.Context, studentID string) ([]Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE student_id=$1 ORDER BY created_at`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateEnrollmentAccess(ctx context.Context, id string, patch AccessPatch) (Enrollment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+enrollmentCols+` FROM enrollments WHERE id=$1`, id)
	e, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, err
	}
	applyPatch(&e, patch)
	_, err = s.db.ExecContext(ctx,
		`UPDATE enrollments SET status=$1, drip_override=$2, drip_enabled=$3,
		   sequential_override=$4, sequential_enabled=$5 WHERE id=$6`,
		e.Status, e.DripOverride, e.DripEnabled, e.SequentialOverride, e.SequentialEnabled, id)
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}
