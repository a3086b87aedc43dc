package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/logger"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coinlore(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestConvertQuantizes(t *testing.T) {
	got := Convert(decimal.RequireFromString("100"), decimal.RequireFromString("600"))
	assert.Equal(t, "0.16666667", got.String())

	assert.True(t, Convert(decimal.NewFromInt(5), decimal.Zero).IsZero())
}

func TestOracleCachesInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	srv, hits := coinlore(t, `[{"id":"2710","symbol":"BNB","price_usd":"612.50"}]`, http.StatusOK)

	o := NewOracle(srv.URL, time.Minute, rdb, logger.Discard())
	ctx := context.Background()

	v, err := o.BNBUSD(ctx)
	require.NoError(t, err)
	assert.Equal(t, "612.5", v.String())

	cached, err := mr.Get(cacheKey)
	require.NoError(t, err)
	assert.Equal(t, "612.5", cached)

	// a second oracle sharing the cache does not call upstream
	other := NewOracle(srv.URL, time.Minute, rdb, logger.Discard())
	v, err = other.BNBUSD(ctx)
	require.NoError(t, err)
	assert.Equal(t, "612.5", v.String())
	assert.Equal(t, int32(1), hits.Load())

	mr.FastForward(2 * time.Minute)
	o.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = o.BNBUSD(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestOracleInProcessCache(t *testing.T) {
	srv, hits := coinlore(t, `[{"symbol":"BNB","price_usd":"500"}]`, http.StatusOK)
	o := NewOracle(srv.URL, time.Minute, nil, logger.Discard())

	for i := 0; i < 3; i++ {
		p, err := o.BNBPrice(context.Background(), decimal.NewFromInt(250))
		require.NoError(t, err)
		assert.Equal(t, "0.5", p.String())
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestOracleServesStaleQuoteOnFailure(t *testing.T) {
	srv, _ := coinlore(t, `[{"symbol":"BNB","price_usd":"400"}]`, http.StatusOK)
	o := NewOracle(srv.URL, time.Minute, nil, logger.Discard())
	ctx := context.Background()

	_, err := o.BNBUSD(ctx)
	require.NoError(t, err)

	broken, _ := coinlore(t, `upstream down`, http.StatusBadGateway)
	o.url = broken.URL
	o.now = func() time.Time { return time.Now().Add(time.Hour) }

	v, err := o.BNBUSD(ctx)
	require.NoError(t, err)
	assert.Equal(t, "400", v.String())
}

func TestOracleUnavailable(t *testing.T) {
	for name, body := range map[string]string{
		"empty list": `[]`,
		"not json":   `<html>`,
		"zero price": `[{"price_usd":"0"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			srv, _ := coinlore(t, body, http.StatusOK)
			o := NewOracle(srv.URL, time.Minute, nil, logger.Discard())
			_, err := o.BNBUSD(context.Background())
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}
