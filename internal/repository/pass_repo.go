package repository

import (
	"context"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const passColumns = `id, uuid::text, name, usd_price::text, pass_type, point_power, card_url`

func scanPass(row pgx.Row) (*domain.PassTier, error) {
	var (
		p     domain.PassTier
		price string
	)
	if err := row.Scan(&p.ID, &p.UUID, &p.Name, &price, &p.PassType, &p.PointPower, &p.CardURL); err != nil {
		return nil, notFound(err)
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	p.USDPrice = d
	return &p, nil
}

func (r *queries) GetPass(ctx context.Context, id int) (*domain.PassTier, error) {
	return scanPass(r.db.QueryRow(ctx, `SELECT `+passColumns+` FROM pass_tiers WHERE id = $1`, id))
}

func (r *queries) GetPassByUUID(ctx context.Context, uuid string) (*domain.PassTier, error) {
	return scanPass(r.db.QueryRow(ctx, `SELECT `+passColumns+` FROM pass_tiers WHERE uuid = $1::uuid`, uuid))
}

func (r *queries) ListPasses(ctx context.Context) ([]domain.PassTier, error) {
	rows, err := r.db.Query(ctx, `SELECT `+passColumns+` FROM pass_tiers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passes []domain.PassTier
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, *p)
	}
	return passes, rows.Err()
}

// UpsertPass creates or replaces the catalog entry with p.ID.
// A new entry without a UUID gets a random one; an existing entry keeps its own.
func (r *queries) UpsertPass(ctx context.Context, p *domain.PassTier) error {
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO pass_tiers (id, uuid, name, usd_price, pass_type, point_power, card_url)
		 VALUES ($1, $2::uuid, $3, $4::numeric, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, usd_price = EXCLUDED.usd_price, pass_type = EXCLUDED.pass_type,
		     point_power = EXCLUDED.point_power, card_url = EXCLUDED.card_url
		 RETURNING uuid::text`,
		p.ID, p.UUID, p.Name, p.USDPrice.String(), p.PassType, p.PointPower, p.CardURL,
	).Scan(&p.UUID)
}
