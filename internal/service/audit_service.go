package service

import (
	"context"
	"log/slog"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
)

// AuditService handles audit logging
type AuditService struct {
	store repository.Store
	log   *slog.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store repository.Store, log *slog.Logger) *AuditService {
	return &AuditService{store: store, log: log}
}

// Record writes an audit entry through q, so it commits or rolls back with
// the caller's transaction.
func (s *AuditService) Record(ctx context.Context, q repository.AuditQueries, userID int64, action, category string, details map[string]any) error {
	return q.InsertAudit(ctx, &domain.AuditLog{
		UserID:   userID,
		Action:   action,
		Category: category,
		Details:  details,
	})
}

// Log writes an audit entry outside any transaction. Failures are logged, not returned.
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]any) {
	if err := s.Record(ctx, s.store, userID, action, category, details); err != nil {
		s.log.Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogLogin logs a user login
func (s *AuditService) LogLogin(ctx context.Context, userID int64, wallet string, isNew bool) {
	action := domain.AuditActionLogin
	if isNew {
		action = domain.AuditActionRegister
	}
	s.Log(ctx, userID, action, domain.AuditCategoryAuth, map[string]any{"wallet_address": wallet})
}

// UserLogs returns audit logs for a user
func (s *AuditService) UserLogs(ctx context.Context, userID int64, limit int) ([]domain.AuditLog, error) {
	logs, err := s.store.ListAudit(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	return logs, nil
}
