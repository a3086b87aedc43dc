package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/http/middleware"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/ingest"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// retryAfterSeconds is sent with 503 and not-yet-confirmed responses.
const retryAfterSeconds = "10"

// PriceQuoter converts USD amounts to BNB.
type PriceQuoter interface {
	BNBPrice(ctx context.Context, usd decimal.Decimal) (decimal.Decimal, error)
}

type Handler struct {
	AuthService    *service.AuthService
	Ledger         *service.Ledger
	Catalog        *service.PassCatalog
	Prices         PriceQuoter
	TaskService    *service.TaskService
	ProfileService *service.ProfileService
	RankService    *service.RankService
	AuditService   *service.AuditService
	Webhook        *ingest.Webhook
	Log            *slog.Logger
}

// getUserID returns the caller set by the JWT middleware.
func getUserID(c *gin.Context) (int64, bool) {
	return middleware.UserID(c)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context, def, most int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, most)
}

// writeError maps a domain error to its HTTP status and writes {"error": ...}.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()

	switch {
	case status == http.StatusServiceUnavailable:
		c.Header("Retry-After", retryAfterSeconds)
		msg = "chain unavailable, retry later"
		h.Log.Warn("chain unavailable", "path", c.FullPath(), "error", err)
	case status == http.StatusConflict && errors.Is(err, chain.ErrNotConfirmed):
		c.Header("Retry-After", retryAfterSeconds)
	case status >= http.StatusInternalServerError:
		msg = "internal error"
		h.Log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, domain.ErrUnknownUser):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidNonce),
		errors.Is(err, domain.ErrSignatureMismatch),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, service.ErrInvalidProfile),
		errors.Is(err, domain.ErrProfileIncomplete):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPassRequired):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnknownPass),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chain.ErrNotConfirmed),
		errors.Is(err, domain.ErrTaskStateConflict),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrChainUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrVerificationFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
