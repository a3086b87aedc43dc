package repository

import (
	"context"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
)

func (r *queries) RankOf(ctx context.Context, userID int64) (int64, int64, error) {
	var rank, points int64
	err := r.db.QueryRow(ctx, `
		SELECT 1 + (SELECT COUNT(*) FROM profiles o WHERE o.scored_points > p.scored_points),
		       p.scored_points
		FROM profiles p
		WHERE p.user_id = $1
	`, userID).Scan(&rank, &points)
	if err != nil {
		return 0, 0, notFound(err)
	}
	return rank, points, nil
}

// Leaderboard lists pass holders by points, ties broken by user id. Rank is the
// 1-based position in that ordering, so tied scores get consecutive positions.
func (r *queries) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ROW_NUMBER() OVER (ORDER BY p.scored_points DESC, u.id) AS rank,
		       u.id, u.wallet_address, p.first_name, p.scored_points, COALESCE(t.name, '')
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN pass_tiers t ON t.id = p.current_pass_id
		WHERE p.has_pass
		ORDER BY p.scored_points DESC, u.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Rank, &e.UserID, &e.WalletAddress, &e.FirstName, &e.ScoredPoints, &e.PassName); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
