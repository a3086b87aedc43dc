package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passTable map[int64]bool

func (p passTable) PassPower(_ context.Context, userID int64) (int, bool, error) {
	if userID == 99 {
		return 0, false, errors.New("db down")
	}
	if p[userID] {
		return 5, true, nil
	}
	return 0, false, nil
}

func TestJWTAndRequirePass(t *testing.T) {
	tokens := service.NewTokenIssuer("mw-secret", time.Minute, time.Hour)
	r := gin.New()
	r.GET("/test", JWT(tokens), RequirePass(passTable{1: true}), func(c *gin.Context) {
		id, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})

	issue := func(id int64) service.TokenPair {
		pair, err := tokens.Issue(id)
		require.NoError(t, err)
		return pair
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"holder", "Bearer " + issue(1).Access, http.StatusOK},
		{"no pass", "Bearer " + issue(2).Access, http.StatusForbidden},
		{"store error", "Bearer " + issue(99).Access, http.StatusInternalServerError},
		{"refresh token", "Bearer " + issue(1).Refresh, http.StatusUnauthorized},
		{"no scheme", issue(1).Access, http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, hit(r, tc.header).Code)
		})
	}
}
