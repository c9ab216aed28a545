package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	handler "card-ledger-backend/internal/handlers"
	"card-ledger-backend/internal/queue"
	"card-ledger-backend/internal/services/query"
)

func RegisterRoutes(r *gin.Engine, enqueuer queue.Enqueuer, queries *query.Service, logger *slog.Logger) {
	txHandler := handler.NewTransactionHandler(enqueuer, queries, logger)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	tx := api.Group("/transactions")
	tx.POST("/webhook", txHandler.IngestTransaction)
	tx.GET("", txHandler.ListTransactions)

	cards := api.Group("/cards")
	{
		cards.GET("/:cardId", txHandler.GetCard)
	}
}
