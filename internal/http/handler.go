package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/obrasplan/contracts-service/internal/http/middleware"
	"github.com/obrasplan/contracts-service/internal/model"
	"github.com/obrasplan/contracts-service/internal/service"
)

type Handler struct {
	contracts      *service.ContractService
	purchases      *service.PurchaseService
	dashboards     *service.DashboardService
	maxUploadBytes int64
	log            zerolog.Logger
}

func NewHandler(
	contracts *service.ContractService,
	purchases *service.PurchaseService,
	dashboards *service.DashboardService,
	maxUploadBytes int64,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		contracts:      contracts,
		purchases:      purchases,
		dashboards:     dashboards,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	contractsWrite := middleware.RequireCapability(model.CapContractsWrite)
	protected.GET("/contracts", h.listContracts)
	protected.GET("/contracts/kpis", h.contractKPIs)
	protected.GET("/contracts/:id", h.getContract)
	protected.POST("/contracts", contractsWrite, h.createContract)
	protected.PUT("/contracts/:id", contractsWrite, h.updateContract)
	protected.DELETE("/contracts/:id", contractsWrite, h.deleteContract)
	protected.GET("/contracts/:id/purchase-orders", h.listPurchaseOrders)

	purchasesWrite := middleware.RequireCapability(model.CapPurchasesWrite)
	protected.POST("/suppliers", purchasesWrite, h.createSupplier)
	protected.POST("/suppliers/:id/approve", purchasesWrite, h.approveSupplier)
	protected.POST("/purchase-orders", purchasesWrite, h.createPurchaseOrder)
	protected.POST("/purchase-orders/:id/invoices", purchasesWrite, h.registerInvoice)

	executive := middleware.RequireCapability(model.CapExecutiveDashboard)
	protected.GET("/dashboards/supplies", middleware.RequireCapability(model.CapSuppliesDashboard), h.suppliesDashboard)
	protected.GET("/dashboards/executive", executive, h.executiveDashboard)
	protected.GET("/dashboards/kpis/summary", h.kpiSummary)
	protected.GET("/dashboards/contracts/:id/metrics", h.contractMetrics)
	protected.GET("/dashboards/report", executive, h.exportReport)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrImportFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

// parseOptionalDate returns nil for a missing value.
func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := parseDate(*raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
