package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event is one appended progression record: lesson.watched,
// submission.created, submission.reviewed, pathway.started, pathway.advanced,
// pathway.choice_made, pathway.completed.
type Event struct {
	Offset    int64  `json:"offset"`
	TenantID  string `json:"tenant_id"`
	Type      string `json:"type"`
	Key       string `json:"key"` // natural key: lessonID, submissionID, pathwayID
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

type Repo struct {
	db       *sql.DB
	tenantID string
}

func NewRepo(db *sql.DB, tenantID string) *Repo { return &Repo{db: db, tenantID: tenantID} }

func (r *Repo) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (tenant_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.tenantID, typ, key, string(buf), time.Now().Unix())
	return err
}

// Since returns events after the given offset, oldest first, capped at limit.
func (r *Repo) Since(ctx context.Context, offset int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", tenant_id, typ, key, data, created_at
		   FROM event_log WHERE "offset" > $1 ORDER BY "offset" LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.TenantID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
