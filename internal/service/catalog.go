package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
)

// PassCatalog caches the pass tier table, which changes only through the admin CLI.
type PassCatalog struct {
	store repository.PassQueries
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	byID    map[int]domain.PassTier
	ordered []domain.PassTier
	loaded  time.Time
}

func NewPassCatalog(store repository.PassQueries, ttl time.Duration) *PassCatalog {
	return &PassCatalog{store: store, ttl: ttl, now: time.Now}
}

func (c *PassCatalog) snapshot(ctx context.Context) (map[int]domain.PassTier, []domain.PassTier, error) {
	c.mu.RLock()
	if c.byID != nil && c.now().Sub(c.loaded) < c.ttl {
		byID, ordered := c.byID, c.ordered
		c.mu.RUnlock()
		return byID, ordered, nil
	}
	c.mu.RUnlock()

	tiers, err := c.store.ListPasses(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load pass catalog: %w", err)
	}
	byID := make(map[int]domain.PassTier, len(tiers))
	for _, t := range tiers {
		byID[t.ID] = t
	}

	c.mu.Lock()
	c.byID, c.ordered, c.loaded = byID, tiers, c.now()
	c.mu.Unlock()
	return byID, tiers, nil
}

// Get returns the tier with on-chain id, or ErrUnknownPass.
func (c *PassCatalog) Get(ctx context.Context, id int) (*domain.PassTier, error) {
	byID, _, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if t, ok := byID[id]; ok {
		return &t, nil
	}

	// a tier added since the last load
	t, err := c.store.GetPass(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownPass, id)
	}
	if err != nil {
		return nil, err
	}
	c.Invalidate()
	return t, nil
}

func (c *PassCatalog) ByUUID(ctx context.Context, id string) (*domain.PassTier, error) {
	_, ordered, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range ordered {
		if t.UUID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPass, id)
}

func (c *PassCatalog) List(ctx context.Context) ([]domain.PassTier, error) {
	_, ordered, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]domain.PassTier(nil), ordered...), nil
}

// Invalidate forces the next read to reload from the store.
func (c *PassCatalog) Invalidate() {
	c.mu.Lock()
	c.byID, c.ordered = nil, nil
	c.mu.Unlock()
}
