package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"multimodal-rag-platform/internal/telemetry"
	"multimodal-rag-platform/services"
	"multimodal-rag-platform/utils"
)

// SetupQueryRoutes registers the retrieval surface. metrics may be nil.
func SetupQueryRoutes(router *gin.Engine, engine *services.RetrievalEngine, answers *services.AnswerService, metrics *telemetry.Metrics) {
	api := router.Group("/api")

	api.POST("/query", HandleQuery(engine, metrics))
	api.GET("/classify", HandleClassify(engine))
	api.POST("/answer", HandleAnswer(answers, metrics))
	api.POST("/cache/clear", HandleClearCache(engine))
}

// HandleQuery runs one retrieval request.
func HandleQuery(engine *services.RetrievalEngine, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.RetrievalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "invalid query request", err.Error())
			return
		}

		result, err := engine.Retrieve(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		if metrics != nil {
			metrics.RecordQuery(string(result.Strategy), result.Cached)
		}
		c.JSON(http.StatusOK, result)
	}
}

// HandleClassify exposes the query-intent classifier.
func HandleClassify(engine *services.RetrievalEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			utils.RespondWithBadRequest(c, "missing query parameter 'q'", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"query":  query,
			"intent": engine.Classify(query),
		})
	}
}

// HandleAnswer retrieves context and synthesizes an answer over it.
func HandleAnswer(answers *services.AnswerService, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.RetrievalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "invalid answer request", err.Error())
			return
		}

		resp, err := answers.Answer(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		if metrics != nil && resp.Sources != nil {
			metrics.RecordQuery(string(resp.Sources.Strategy), resp.Sources.Cached)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleClearCache drops all cached retrieval results.
func HandleClearCache(engine *services.RetrievalEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := engine.ClearCache(c.Request.Context()); err != nil {
			utils.RespondWithInternalError(c, "failed to clear cache", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"cleared": true})
	}
}
