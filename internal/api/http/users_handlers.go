package http

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	nethttp "net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/courseloop/courseloop-lms/internal/tenants"
)

type userRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`               // usually "student"
	Password string `json:"password,omitempty"` // plaintext optional (admin bootstrap)
}

// BulkUpsertUsersHandler accepts either multipart file= (CSV/JSON) or a raw
// JSON array in the body.
func BulkUpsertUsersHandler(db *sql.DB) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var rows []userRow
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				nethttp.Error(w, "file required", nethttp.StatusBadRequest)
				return
			}
			defer f.Close()
			// sniff simple CSV vs JSON by first non-space byte
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
				rs, err := parseUserCSV(f)
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
		if len(rows) == 0 {
			writeJSON(w, map[string]any{"inserted": 0, "updated": 0})
			return
		}

		ins, upd, err := upsertUsers(r.Context(), db, tenants.FromContext(r.Context()), rows)
		if err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"inserted": ins, "updated": upd})
	}
}

func ListUsersHandler(db *sql.DB) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		tenantID := tenants.FromContext(r.Context())
		role := r.URL.Query().Get("role")
		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id,username,role FROM users WHERE tenant_id=$1 ORDER BY username`, tenantID)
		} else {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id,username,role FROM users WHERE tenant_id=$1 AND role=$2 ORDER BY username`, tenantID, role)
		}
		if err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []map[string]string{}
		for rows.Next() {
			var id, u, role string
			if err := rows.Scan(&id, &u, &role); err != nil {
				nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
				return
			}
			out = append(out, map[string]string{"id": id, "username": u, "role": role})
		}
		writeJSON(w, out)
	}
}

func parseUserCSV(r io.Reader) ([]userRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	required := []string{"id", "username", "role"}
	for _, k := range required {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	var rows []userRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := userRow{
			ID:       rec[idx["id"]],
			Username: rec[idx["username"]],
			Role:     strings.ToLower(rec[idx["role"]]),
		}
		if i, ok := idx["password"]; ok {
			row.Password = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func upsertUsers(ctx context.Context, db *sql.DB, tenantID string, rows []userRow) (inserted, updated int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	for _, r := range rows {
		if r.Role == "" {
			r.Role = "student"
		}
		if r.Role != "student" && r.Role != "mentor" && r.Role != "admin" {
			return inserted, updated, errors.New("invalid role: " + r.Role)
		}
		var phash string
		if r.Password != "" {
			b, e := bcrypt.GenerateFromPassword([]byte(r.Password), 12)
			if e != nil {
				return inserted, updated, e
			}
			phash = string(b)
		}

		// Upsert: if exists update (optionally password), else insert (password required)
		var exists bool
		if err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=$1 OR username=$2`, r.ID, r.Username).Scan(new(int)); err == nil {
			exists = true
		} else if !errors.Is(err, sql.ErrNoRows) {
			return inserted, updated, err
		}
		err = nil
		if exists {
			if phash != "" {
				_, err = tx.ExecContext(ctx, `UPDATE users SET username=$1, role=$2, password_hash=$3 WHERE id=$4`,
					r.Username, r.Role, phash, r.ID)
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE users SET username=$1, role=$2 WHERE id=$3`,
					r.Username, r.Role, r.ID)
			}
			if err != nil {
				return inserted, updated, err
			}
			updated++
		} else {
			if phash == "" {
				return inserted, updated, errors.New("password required for new user: " + r.Username)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, tenant_id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
				r.ID, tenantID, r.Username, phash, r.Role, now)
			if err != nil {
				return inserted, updated, err
			}
			inserted++
		}
	}
	return inserted, updated, nil
}
