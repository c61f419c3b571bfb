package handler

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zentala/bookmark-index/middleware"
)

// NewRouter wires the bookmark API under /api/v1 and, when gatherer is not
// nil, the prometheus endpoint at /metrics.
func NewRouter(bookmarkHandler *BookmarkHandler, apiToken string, gatherer prometheus.Gatherer, logger *log.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	corsHandler := NewCorsHandler()
	router.Use(corsHandler.CorsMiddleware)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.TokenAuth(apiToken))
	{
		apiV1.POST("/bookmarks/index", bookmarkHandler.HandleIndex)
		apiV1.GET("/bookmarks/search", bookmarkHandler.HandleSearch)
		apiV1.POST("/bookmarks/regenerate", bookmarkHandler.HandleRegenerate)
		apiV1.DELETE("/bookmarks/:id", bookmarkHandler.HandleDelete)
		apiV1.GET("/bookmarks/stats", bookmarkHandler.HandleStats)
	}
	return router
}
