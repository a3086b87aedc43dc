package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/ingest"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// ChainWebhook accepts signed event batches from the indexing relay.
// Unsigned requests get 200 and are ignored; a wrong signature gets 403.
// Bodies that cannot be read, or exceed maxWebhookBody, get 200 with a
// malformed status.
func (h *Handler) ChainWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err == nil && len(body) > maxWebhookBody {
		err = fmt.Errorf("body exceeds %d bytes", maxWebhookBody)
	}
	if err != nil {
		c.JSON(http.StatusOK, h.Webhook.Unreadable(err))
		return
	}

	report, err := h.Webhook.Handle(c.Request.Context(), body, c.GetHeader(ingest.SignatureHeader))
	if errors.Is(err, ingest.ErrInvalidSignature) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
