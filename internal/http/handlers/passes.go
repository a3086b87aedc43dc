package handlers

import (
	"context"
	"net/http"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type passView struct {
	domain.PassTier
	BNBPrice *decimal.Decimal `json:"bnb_price"`
}

func (h *Handler) passView(ctx context.Context, p domain.PassTier) passView {
	v := passView{PassTier: p}
	if h.Prices == nil {
		return v
	}
	bnb, err := h.Prices.BNBPrice(ctx, p.USDPrice)
	if err != nil {
		h.Log.Warn("bnb price unavailable", "pass_id", p.ID, "error", err)
		return v
	}
	v.BNBPrice = &bnb
	return v
}

// ListPasses returns the catalog with BNB prices. bnb_price is null while the
// price feed is down.
func (h *Handler) ListPasses(c *gin.Context) {
	ctx := c.Request.Context()
	passes, err := h.Catalog.List(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]passView, 0, len(passes))
	for _, p := range passes {
		out = append(out, h.passView(ctx, p))
	}
	c.JSON(http.StatusOK, gin.H{"passes": out})
}

func (h *Handler) GetPass(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.Catalog.ByUUID(ctx, c.Param("uuid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.passView(ctx, *p))
}

// VerifyPass checks a client-submitted purchase or upgrade on chain and
// records it. Resubmitting a recorded hash succeeds without side effects.
func (h *Handler) VerifyPass(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var sub domain.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "txHash and passId are required"})
		return
	}

	res, err := h.Ledger.VerifyAndRecordClientSubmission(c.Request.Context(), userID, sub)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"pass_id":   res.PassID,
		"points":    res.Points,
		"tx_hash":   res.TxHash,
		"duplicate": res.Duplicate,
	})
}
