package app

import (
	"github.com/gin-gonic/gin"
	"github.com/wikipulse/core/internal/modules/archive"
	"github.com/wikipulse/core/internal/modules/system/health"
	"github.com/wikipulse/core/internal/modules/views"
	"github.com/wikipulse/core/internal/pkg/response"
)

func (a *App) registerRoutes(viewsSvc *views.Service, archiveSvc *archive.Service) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group("/api")

	views.NewHandler(viewsSvc, a.logger).RegisterRoutes(api)
	archive.NewHandler(archiveSvc, a.logger).RegisterRoutes(api)
	health.RegisterRoutes(api, a.cache, a.sched)
}
