package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
)

var ErrInvalidProfile = errors.New("invalid profile")

type ProfileService struct {
	store   repository.Store
	catalog *PassCatalog
	rank    *RankService
	tasks   *TaskService
	log     *slog.Logger
}

func NewProfileService(store repository.Store, catalog *PassCatalog, rank *RankService, tasks *TaskService, log *slog.Logger) *ProfileService {
	return &ProfileService{store: store, catalog: catalog, rank: rank, tasks: tasks, log: log}
}

// Get returns the user, their profile and their current pass tier.
func (s *ProfileService) Get(ctx context.Context, userID int64) (*domain.ProfileView, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &domain.ProfileView{User: *u, Profile: *p}
	if p.CurrentPassID != nil {
		tier, err := s.catalog.Get(ctx, *p.CurrentPassID)
		if err != nil {
			return nil, err
		}
		view.CurrentPass = tier
	}
	return view, nil
}

// Update edits the contact fields. When the edit leaves the profile complete,
// the profile task is completed in the same call.
func (s *ProfileService) Update(ctx context.Context, userID int64, upd domain.ProfileUpdate) (*domain.Profile, error) {
	upd.FirstName = trimmed(upd.FirstName)
	upd.LastName = trimmed(upd.LastName)
	upd.Email = trimmed(upd.Email)
	if upd.Email != nil && *upd.Email != "" {
		addr, err := mail.ParseAddress(*upd.Email)
		if err != nil || addr.Address != *upd.Email {
			return nil, fmt.Errorf("%w: email %q", ErrInvalidProfile, *upd.Email)
		}
	}

	p, err := s.store.UpdateProfile(ctx, userID, upd)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}

	if p.IsComplete() {
		if err := s.tasks.CompleteProfileTask(ctx, userID); err != nil {
			s.log.Warn("profile task not completed", "user_id", userID, "error", err)
		} else if p, err = s.store.GetProfile(ctx, userID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Stats returns the user's points, rank and referral count.
func (s *ProfileService) Stats(ctx context.Context, userID int64) (domain.ProfileStats, error) {
	rank, points, err := s.rank.Rank(ctx, userID)
	if err != nil {
		return domain.ProfileStats{}, err
	}
	referrals, err := s.store.CountReferrals(ctx, userID)
	if err != nil {
		return domain.ProfileStats{}, err
	}
	return domain.ProfileStats{Points: points, Rank: rank, ReferralCount: referrals}, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
