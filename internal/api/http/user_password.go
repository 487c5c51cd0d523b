package http

import (
	"database/sql"
	"encoding/json"
	"errors"

	nethttp "net/http"

	authmw "github.com/courseloop/courseloop-lms/internal/auth/middleware"
	"golang.org/x/crypto/bcrypt"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func ChangePasswordHandler(db *sql.DB) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			nethttp.Error(w, "unauthorized", nethttp.StatusUnauthorized)
			return
		}

		var req changePasswordReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			nethttp.Error(w, "bad request", nethttp.StatusBadRequest)
			return
		}
		if req.NewPassword == "" {
			nethttp.Error(w, "new password required", nethttp.StatusBadRequest)
			return
		}

		var storedHash string
		err := db.QueryRowContext(r.Context(), `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&storedHash)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				nethttp.Error(w, "user not found", nethttp.StatusNotFound)
				return
			}
			nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(req.OldPassword)) != nil {
			nethttp.Error(w, "incorrect old password", nethttp.StatusForbidden)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), 12)
		if err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
			return
		}
		if _, err := db.ExecContext(r.Context(), `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), userID); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
