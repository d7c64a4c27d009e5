package health

import (
	"github.com/gin-gonic/gin"
	"github.com/wikipulse/core/internal/pkg/cache"
	"github.com/wikipulse/core/internal/pkg/cron"
	"github.com/wikipulse/core/internal/pkg/response"
)

// RegisterRoutes wires the health probe and the scheduler introspection
// endpoints.
func RegisterRoutes(rg *gin.RouterGroup, c *cache.Cache, sched *cron.Scheduler) {
	rg.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{
			"status": "ok",
			"cache":  c.Stats(),
			"jobs":   sched.List(),
		})
	})

	jobs := rg.Group("/jobs")
	{
		jobs.GET("", func(ctx *gin.Context) {
			response.OK(ctx, sched.List())
		})

		jobs.GET("/:name", func(ctx *gin.Context) {
			result, err := sched.GetTask(ctx.Param("name"))
			if err != nil {
				response.NotFoundMsg(ctx, "job not found")
				return
			}
			response.OK(ctx, result)
		})

		jobs.POST("/:name/run", func(ctx *gin.Context) {
			if err := sched.Run(ctx.Request.Context(), ctx.Param("name")); err != nil {
				response.NotFoundMsg(ctx, "job not found")
				return
			}
			response.OK(ctx, gin.H{"message": "job triggered"})
		})
	}
}
