package archive

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/wikipulse/core/internal/pkg/response"
	"go.uber.org/zap"
)

// Handler exposes a manual archive trigger.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.Named("ArchiveHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/archive")
	g.POST("/run", h.run)
}

// POST /archive/run triggers a synchronous archive pass over the current cache.
// Partial failures still report the partitions that made it.
func (h *Handler) run(c *gin.Context) {
	records, err := h.svc.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrStoreNotConfigured) {
			h.logger.Warn("manual archive run without storage configured")
			response.InternalError(c)
			return
		}
		h.logger.Error("manual archive run had failures", zap.Error(err))
		if len(records) == 0 {
			response.InternalError(c)
			return
		}
	}
	if records == nil {
		records = []Record{}
	}
	response.OK(c, gin.H{"archived": len(records), "records": records})
}
