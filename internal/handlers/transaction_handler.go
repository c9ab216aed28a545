package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/queue"
	"card-ledger-backend/internal/services/query"
	"card-ledger-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type TransactionHandler struct {
	enqueuer queue.Enqueuer
	queries  *query.Service
	logger   *slog.Logger
}

func NewTransactionHandler(enqueuer queue.Enqueuer, queries *query.Service, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{enqueuer: enqueuer, queries: queries, logger: logger}
}

// IngestTransaction accepts a canonical transaction record from the
// processor-adapter layer and enqueues it for reconciliation. Unsuccessful
// records are dropped here; the engine only ever sees successful ones.
func (h *TransactionHandler) IngestTransaction(c *gin.Context) {
	var rec models.CanonicalTransaction
	if err := c.BindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if rec.Type != models.TypeAuthorization && rec.Type != models.TypeClearing {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction type"})
		return
	}

	if !rec.IsSuccessful {
		h.logger.Warn("dropping unsuccessful transaction record",
			"processorId", rec.ProcessorID,
			"correlationId", rec.TransactionCorrelationID)
		c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": false})
		return
	}

	if err := h.enqueuer.Enqueue(c.Request.Context(), rec); err != nil {
		h.logger.Error("failed to enqueue transaction record", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue transaction"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": true})
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	res, err := h.queries.ListTransactions(c.Request.Context(), query.Params{
		CardID:      c.Query("cardId"),
		ProcessorID: c.Query("processorId"),
		Status:      models.TransactionStatus(c.Query("status")),
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *TransactionHandler) GetCard(c *gin.Context) {
	card, err := h.queries.GetCard(c.Request.Context(), c.Param("cardId"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, card)
}
