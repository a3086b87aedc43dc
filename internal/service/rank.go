package service

import (
	"context"
	"errors"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
)

// LeaderboardSize is how many pass holders the leaderboard shows.
const LeaderboardSize = 100

// RankService ranks profiles by score. A profile's rank is one more than the
// number of profiles with strictly more points, so ties share a rank.
type RankService struct {
	store repository.RankQueries
}

func NewRankService(store repository.RankQueries) *RankService {
	return &RankService{store: store}
}

func (s *RankService) Rank(ctx context.Context, userID int64) (rank, points int64, err error) {
	rank, points, err = s.store.RankOf(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, 0, domain.ErrUnknownUser
	}
	return rank, points, err
}

// Leaderboard returns the top pass holders, highest score first.
func (s *RankService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	entries, err := s.store.Leaderboard(ctx, LeaderboardSize)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, nil
}
