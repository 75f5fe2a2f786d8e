package handler

import (
	"net/http"

	"rentsearch/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	AllowedOrigins      string
	EmbeddingDimensions int
	Version             string
}

// NewRouter builds the HTTP API around a search service
func NewRouter(searchService *service.SearchService, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{opts.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	searchHandler := NewSearchHandler(searchService)
	embeddingHandler := NewEmbeddingHandler(searchService, opts.EmbeddingDimensions)

	router.GET("/health", func(c *gin.Context) {
		status := searchService.Status(c.Request.Context())
		code := http.StatusOK
		if status.Status != "operational" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":         status.Status,
			"service":        "rental-search",
			"version":        opts.Version,
			"components":     status.Components,
			"total_listings": status.TotalListings,
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/search", searchHandler.Search)
		apiV1.POST("/search/stream", searchHandler.SearchStream)
		apiV1.GET("/listings/:id", searchHandler.GetListing)

		apiV1.POST("/embeddings/batch", embeddingHandler.BatchUpdate)
	}

	return router
}
