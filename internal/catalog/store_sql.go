package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id,tenant_id,title,drip_enabled,sequential_enabled,created_by,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title,
		   drip_enabled=EXCLUDED.drip_enabled, sequential_enabled=EXCLUDED.sequential_enabled`,
		c.ID, c.TenantID, c.Title, c.DripEnabled, c.SequentialEnabled, c.CreatedBy, c.CreatedAt)
	return err
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,tenant_id,title,drip_enabled,sequential_enabled,created_by,created_at
		   FROM courses WHERE id=$1`, id)
	var c Course
	if err := row.Scan(&c.ID, &c.TenantID, &c.Title, &c.DripEnabled, &c.SequentialEnabled, &c.CreatedBy, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, err
	}
	return c, nil
}

func (s *SQLStore) ListCourses(ctx context.Context, tenantID string) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,tenant_id,title,drip_enabled,sequential_enabled,created_by,created_at
		   FROM courses WHERE tenant_id=$1 ORDER BY title`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Title, &c.DripEnabled, &c.SequentialEnabled, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutModule(ctx context.Context, m Module) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO modules (id,course_id,title,position) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, position=EXCLUDED.position`,
		m.ID, m.CourseID, m.Title, m.Position)
	return err
}

func (s *SQLStore) PutLesson(ctx context.Context, l Lesson) error {
	var drip any
	if l.DripUnlockAt != 0 {
		drip = l.DripUnlockAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id,module_id,title,sequence_order,duration_minutes,drip_unlock_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title,
		   sequence_order=EXCLUDED.sequence_order, duration_minutes=EXCLUDED.duration_minutes,
		   drip_unlock_at=EXCLUDED.drip_unlock_at`,
		l.ID, l.ModuleID, l.Title, l.SequenceOrder, l.DurationMinutes, drip)
	return err
}

func (s *SQLStore) PutAssignment(ctx context.Context, a Assignment) error {
	var lesson any
	if a.LessonID != "" {
		lesson = a.LessonID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (id,tenant_id,name,lesson_id,submission_type)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name,
		   lesson_id=EXCLUDED.lesson_id, submission_type=EXCLUDED.submission_type`,
		a.ID, a.TenantID, a.Name, lesson, a.SubmissionType)
	return err
}

func (s *SQLStore) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,tenant_id,name,COALESCE(lesson_id,''),submission_type FROM assignments WHERE id=$1`, id)
	var a Assignment
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.LessonID, &a.SubmissionType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, err
	}
	return a, nil
}

func (s *SQLStore) CourseForLesson(ctx context.Context, lessonID string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT m.course_id FROM lessons l JOIN modules m ON m.id=l.module_id WHERE l.id=$1`, lessonID)
	var courseID string
	if err := row.Scan(&courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return courseID, nil
}

func (s *SQLStore) GetOutline(ctx context.Context, courseID string) (CourseOutline, error) {
	c, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return CourseOutline{}, err
	}
	out := CourseOutline{Course: c, Assignments: map[string]Assignment{}}

	mrows, err := s.db.QueryContext(ctx,
		`SELECT id,course_id,title,position FROM modules WHERE course_id=$1 ORDER BY position`, courseID)
	if err != nil {
		return CourseOutline{}, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var m Module
		if err := mrows.Scan(&m.ID, &m.CourseID, &m.Title, &m.Position); err != nil {
			return CourseOutline{}, err
		}
		out.Modules = append(out.Modules, ModuleOutline{Module: m})
	}
	if err := mrows.Err(); err != nil {
		return CourseOutline{}, err
	}

	lrows, err := s.db.QueryContext(ctx,
		`SELECT l.id,l.module_id,l.title,l.sequence_order,l.duration_minutes,COALESCE(l.drip_unlock_at,0)
		   FROM lessons l JOIN modules m ON m.id=l.module_id
		  WHERE m.course_id=$1
		  ORDER BY m.position, l.sequence_order`, courseID)
	if err != nil {
		return CourseOutline{}, err
	}
	defer lrows.Close()
	byModule := map[string][]Lesson{}
	for lrows.Next() {
		var l Lesson
		if err := lrows.Scan(&l.ID, &l.ModuleID, &l.Title, &l.SequenceOrder, &l.DurationMinutes, &l.DripUnlockAt); err != nil {
			return CourseOutline{}, err
		}
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l)
	}
	if err := lrows.Err(); err != nil {
		return CourseOutline{}, err
	}
	for i := range out.Modules {
		out.Modules[i].Lessons = byModule[out.Modules[i].Module.ID]
	}

	arows, err := s.db.QueryContext(ctx,
		`SELECT a.id,a.tenant_id,a.name,a.lesson_id,a.submission_type
		   FROM assignments a
		   JOIN lessons l ON l.id=a.lesson_id
		   JOIN modules m ON m.id=l.module_id
		  WHERE m.course_id=$1`, courseID)
	if err != nil {
		return CourseOutline{}, err
	}
	defer arows.Close()
	for arows.Next() {
		var a Assignment
		if err := arows.Scan(&a.ID, &a.TenantID, &a.Name, &a.LessonID, &a.SubmissionType); err != nil {
			return CourseOutline{}, err
		}
		out.Assignments[a.LessonID] = a
	}
	return out, arows.Err()
}
