package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"wallet-ledger.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	accountHandler     *handlers.AccountHandler
	groupHandler       *handlers.GroupHandler
	deferredHandler    *handlers.DeferredHandler
	observationHandler *handlers.ObservationHandler
	opsHandler         *handlers.OpsHandler
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Account routes
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", d.accountHandler.CreatePair)
			accounts.GET("", d.accountHandler.ListByAddress)
			accounts.GET("/:id", d.accountHandler.GetAccount)
			accounts.GET("/:id/balance", d.accountHandler.GetBalance)
		}

		// Transaction group routes
		groups := v1.Group("/groups")
		{
			groups.POST("", d.groupHandler.BuildGroup)
			groups.GET("", d.groupHandler.ListGroups)
			groups.GET("/:id", d.groupHandler.GetGroup)
		}

		// Deferred intent routes
		deferred := v1.Group("/deferred")
		{
			deferred.POST("", d.deferredHandler.Schedule)
			deferred.GET("/:id", d.deferredHandler.GetDeferred)
			deferred.DELETE("/:id", d.deferredHandler.Cancel)
		}

		// Webhook for the chain indexer (internal)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/observations", d.observationHandler.HandleObservation)
		}

		// Operator routes
		ops := v1.Group("/ops")
		{
			ops.GET("/strange-transactions", d.opsHandler.ListStrangeTransactions)
			ops.GET("/suspend", d.opsHandler.GetSuspendStatus)
			ops.DELETE("/suspend", d.opsHandler.Resume)
			ops.POST("/rebuild-balances", d.opsHandler.RebuildBalances)
		}
	}
}
