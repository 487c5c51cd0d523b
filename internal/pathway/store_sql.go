package pathway

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutPathway(ctx context.Context, p Pathway) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pathways (id,tenant_id,title,created_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title`,
		p.ID, p.TenantID, p.Title, p.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pathway_steps WHERE pathway_id=$1`, p.ID); err != nil {
		return err
	}
	for _, st := range p.Steps {
		var group any
		if st.ChoiceGroup != "" {
			group = st.ChoiceGroup
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pathway_steps (pathway_id,step_number,course_id,choice_group) VALUES ($1,$2,$3,$4)`,
			p.ID, st.StepNumber, st.CourseID, group); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetPathway(ctx context.Context, id string) (Pathway, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,tenant_id,title,created_at FROM pathways WHERE id=$1`, id)
	var p Pathway
	if err := row.Scan(&p.ID, &p.TenantID, &p.Title, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Pathway{}, ErrNotFound
		}
		return Pathway{}, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT pathway_id,step_number,course_id,COALESCE(choice_group,'')
		   FROM pathway_steps WHERE pathway_id=$1 ORDER BY step_number, course_id`, id)
	if err != nil {
		return Pathway{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.PathwayID, &st.StepNumber, &st.CourseID, &st.ChoiceGroup); err != nil {
			return Pathway{}, err
		}
		p.Steps = append(p.Steps, st)
	}
	return p, rows.Err()
}

func (s *SQLStore) ListPathways(ctx context.Context, tenantID string) ([]Pathway, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,tenant_id,title,created_at FROM pathways WHERE tenant_id=$1 ORDER BY title`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Pathway
	for rows.Next() {
		var p Pathway
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Title, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) ChoicesFor(ctx context.Context, pathwayID, studentID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT choice_group,course_id FROM pathway_choices WHERE pathway_id=$1 AND student_id=$2`,
		pathwayID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var group, course string
		if err := rows.Scan(&group, &course); err != nil {
			return nil, err
		}
		out[group] = course
	}
	return out, rows.Err()
}

func (s *SQLStore) RecordChoice(ctx context.Context, pathwayID, studentID, choiceGroup, courseID string, now time.Time) error {
	// the primary key keeps a choice group single-selection per student
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pathway_choices (pathway_id,student_id,choice_group,course_id,chosen_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		pathwayID, studentID, choiceGroup, courseID, now.Unix())
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") ||
			strings.Contains(msg, "primary key") {
			return ErrInvalidChoice
		}
		return err
	}
	return nil
}
