package repository

import (
	"context"
	"encoding/json"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
)

// InsertAudit writes an audit entry on whatever connection the caller is in,
// so ledger writes and their audit rows commit together.
func (r *queries) InsertAudit(ctx context.Context, a *domain.AuditLog) error {
	detailsJSON, err := json.Marshal(a.Details)
	if err != nil || a.Details == nil {
		detailsJSON = []byte("{}")
	}

	return r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, category, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, a.UserID, a.Action, a.Category, detailsJSON).Scan(&a.ID, &a.CreatedAt)
}

// ListAudit returns the most recent audit entries for a user
func (r *queries) ListAudit(ctx context.Context, userID int64, limit int) ([]domain.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, action, category, details, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var (
			l           domain.AuditLog
			detailsJSON []byte
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Category, &detailsJSON, &l.CreatedAt); err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &l.Details)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
