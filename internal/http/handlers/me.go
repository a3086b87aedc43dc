package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MyTransactions lists the caller's recorded pass transactions, newest first.
func (h *Handler) MyTransactions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	txs, err := h.Ledger.History(c.Request.Context(), userID, queryLimit(c, 50, 100))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// MyActivity lists the caller's audit trail.
func (h *Handler) MyActivity(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	logs, err := h.AuditService.UserLogs(c.Request.Context(), userID, queryLimit(c, 50, 200))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": logs})
}
