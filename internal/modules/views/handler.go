package views

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wikipulse/core/internal/pkg/response"
	"go.uber.org/zap"
)

// Handler exposes the pageview analytics endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.Named("ViewsHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/get_views", h.getViews)
	rg.GET("/get_views/batch", h.getViewsBatch)
}

// GET /get_views?period={30|90|365}[&page=title]
func (h *Handler) getViews(c *gin.Context) {
	period, ok := parsePeriod(c.Query("period"))
	if !ok {
		response.BadRequest(c, "Invalid period")
		return
	}

	result, err := h.svc.FetchPageviews(c.Request.Context(), period, c.Query("page"))
	if err != nil {
		if errors.Is(err, ErrInvalidPeriod) {
			response.BadRequest(c, "Invalid period")
			return
		}
		h.logger.Error("fetch pageviews failed",
			zap.Int("period", period),
			zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// GET /get_views/batch?period=..&pages=a,b,c
func (h *Handler) getViewsBatch(c *gin.Context) {
	period, ok := parsePeriod(c.Query("period"))
	if !ok {
		response.BadRequest(c, "Invalid period")
		return
	}

	pages := splitPages(c.Query("pages"))
	if len(pages) == 0 {
		response.BadRequest(c, "Missing pages")
		return
	}

	results, err := h.svc.FetchPageviewsMultiple(c.Request.Context(), period, pages)
	if err != nil {
		if errors.Is(err, ErrInvalidPeriod) {
			response.BadRequest(c, "Invalid period")
			return
		}
		h.logger.Error("batch fetch failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	out := make(map[string]gin.H, len(results))
	for page, pr := range results {
		if pr.Err != nil {
			h.logger.Warn("page fetch failed in batch",
				zap.String("page", page),
				zap.Error(pr.Err))
			out[page] = gin.H{"error": pr.Err.Error()}
			continue
		}
		out[page] = gin.H{"data": pr.Data}
	}
	response.OK(c, gin.H{"results": out})
}

func parsePeriod(raw string) (int, bool) {
	period, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	if _, ok := ValidPeriods[period]; !ok {
		return 0, false
	}
	return period, true
}

func splitPages(raw string) []string {
	parts := strings.Split(raw, ",")
	pages := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			pages = append(pages, p)
		}
	}
	return pages
}
