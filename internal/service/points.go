package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/metrics"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
)

type Rule string

const (
	RuleLogin    Rule = "login"
	RuleTask     Rule = "task"
	RuleReferral Rule = "referral"
)

const (
	LoginBasePoints    int64 = 10
	ReferralBasePoints int64 = 10
)

// Award is one credit to a profile. A zero Points award was skipped.
type Award struct {
	UserID int64
	Rule   Rule
	Base   int64
	Power  int
	Points int64
	Total  int64
}

// PointsEngine multiplies base points by the holder's pass power and adds
// them to the profile with an atomic increment.
type PointsEngine struct {
	store  repository.Store
	audit  *AuditService
	notify Notifier
}

func NewPointsEngine(store repository.Store, audit *AuditService, notify Notifier) *PointsEngine {
	return &PointsEngine{store: store, audit: audit, notify: notifierOrNop(notify)}
}

// Award credits userID through q. Without a pass, RuleTask fails with
// ErrPassRequired and the other rules are skipped with a zero award.
func (e *PointsEngine) Award(ctx context.Context, q repository.Queries, userID, base int64, rule Rule) (Award, error) {
	a := Award{UserID: userID, Rule: rule, Base: base}

	power, hasPass, err := q.PassPower(ctx, userID)
	if err != nil {
		return a, fmt.Errorf("pass power for user %d: %w", userID, err)
	}
	if !hasPass {
		if rule == RuleTask {
			return a, domain.ErrPassRequired
		}
		return a, nil
	}

	a.Power = power
	a.Points = base * int64(power)
	if a.Points <= 0 {
		return a, nil
	}

	a.Total, err = q.AddPoints(ctx, userID, a.Points)
	if err != nil {
		return a, fmt.Errorf("add points for user %d: %w", userID, err)
	}

	if err := e.audit.Record(ctx, q, userID, auditActionFor(rule), domain.AuditCategoryPoints, map[string]any{
		"base":   base,
		"power":  power,
		"points": a.Points,
		"total":  a.Total,
	}); err != nil {
		return a, err
	}
	return a, nil
}

// ClaimLoginBonus awards the daily login bonus once per UTC day to a pass
// holder. It reports false when the bonus was already claimed today or the
// user holds no pass; a passless login leaves the day unclaimed.
func (e *PointsEngine) ClaimLoginBonus(ctx context.Context, userID int64, now time.Time) (Award, bool, error) {
	var (
		award   Award
		claimed bool
	)
	err := e.store.WithTx(ctx, func(q repository.Queries) error {
		_, hasPass, err := q.PassPower(ctx, userID)
		if err != nil || !hasPass {
			return err
		}
		claimed, err = q.ClaimDailyLogin(ctx, userID, now.UTC())
		if err != nil || !claimed {
			return err
		}
		award, err = e.Award(ctx, q, userID, LoginBasePoints, RuleLogin)
		return err
	})
	if err != nil {
		return Award{}, false, err
	}
	if claimed {
		e.Publish(award)
	}
	return award, claimed, nil
}

// Publish reports committed awards to metrics and the notifier.
func (e *PointsEngine) Publish(awards ...Award) {
	for _, a := range awards {
		if a.Points == 0 {
			continue
		}
		metrics.PointsAwarded.WithLabelValues(string(a.Rule)).Add(float64(a.Points))
		e.notify.PointsAwarded(a.UserID, string(a.Rule), a.Points, a.Total)
	}
}

func auditActionFor(rule Rule) string {
	switch rule {
	case RuleLogin:
		return domain.AuditActionLoginBonus
	case RuleReferral:
		return domain.AuditActionReferralBonus
	default:
		return domain.AuditActionTaskCompleted
	}
}
