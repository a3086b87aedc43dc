// Package price quotes BNB in USD so the pass catalog can show tier prices in BNB.
package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/metrics"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultURL is the coinlore ticker for BNB.
const DefaultURL = "https://api.coinlore.net/api/ticker/?id=2710"

const cacheKey = "price:bnb_usd"

var ErrUnavailable = errors.New("bnb price unavailable")

// Oracle fetches the BNB/USD quote and caches it for ttl, in Redis when a
// client is configured and in process otherwise. A stale in-process quote
// is served when the upstream fails.
type Oracle struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	redis      *redis.Client
	log        *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	last   decimal.Decimal
	lastAt time.Time
}

func NewOracle(url string, ttl time.Duration, rdb *redis.Client, log *slog.Logger) *Oracle {
	if url == "" {
		url = DefaultURL
	}
	if ttl <= 0 {
		ttl = 180 * time.Second
	}
	return &Oracle{
		url: url,
		ttl: ttl,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		redis: rdb,
		log:   log.With("component", "price"),
		now:   time.Now,
	}
}

type ticker struct {
	Symbol   string          `json:"symbol"`
	PriceUSD decimal.Decimal `json:"price_usd"`
}

// BNBUSD returns the current price of one BNB in USD.
func (o *Oracle) BNBUSD(ctx context.Context) (decimal.Decimal, error) {
	if v, ok := o.cached(ctx); ok {
		return v, nil
	}

	v, err := o.fetch(ctx)
	if err != nil {
		o.mu.Lock()
		stale := o.last
		o.mu.Unlock()
		if stale.IsPositive() {
			o.log.Warn("serving stale bnb price", "error", err)
			metrics.PriceFetches.WithLabelValues("stale").Inc()
			return stale, nil
		}
		metrics.PriceFetches.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.PriceFetches.WithLabelValues("upstream").Inc()

	o.mu.Lock()
	o.last, o.lastAt = v, o.now()
	o.mu.Unlock()

	if o.redis != nil {
		if err := o.redis.Set(ctx, cacheKey, v.String(), o.ttl).Err(); err != nil {
			o.log.Warn("failed to cache bnb price", "error", err)
		}
	}
	return v, nil
}

// BNBPrice converts usd to BNB at the current quote, quantized to 8 places.
func (o *Oracle) BNBPrice(ctx context.Context, usd decimal.Decimal) (decimal.Decimal, error) {
	rate, err := o.BNBUSD(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return Convert(usd, rate), nil
}

// Convert divides usd by the BNB/USD rate and rounds half to even at 8 places.
func Convert(usd, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return usd.Div(rate).RoundBank(8)
}

func (o *Oracle) cached(ctx context.Context) (decimal.Decimal, bool) {
	if o.redis != nil {
		s, err := o.redis.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			if v, perr := decimal.NewFromString(s); perr == nil && v.IsPositive() {
				metrics.PriceFetches.WithLabelValues("redis").Inc()
				return v, true
			}
		case !errors.Is(err, redis.Nil):
			o.log.Warn("price cache read failed", "error", err)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last.IsPositive() && o.now().Sub(o.lastAt) < o.ttl {
		metrics.PriceFetches.WithLabelValues("memory").Inc()
		return o.last, true
	}
	return decimal.Zero, false
}

func (o *Oracle) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	// coinlore answers with a one-element list
	var tickers []ticker
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(tickers) == 0 || !tickers[0].PriceUSD.IsPositive() {
		return decimal.Zero, errors.New("empty ticker response")
	}
	return tickers[0].PriceUSD, nil
}
