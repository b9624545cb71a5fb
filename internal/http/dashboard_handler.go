package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/obrasplan/contracts-service/internal/http/middleware"
	"github.com/obrasplan/contracts-service/internal/repository"
	"github.com/obrasplan/contracts-service/internal/service"
)

func (h *Handler) suppliesDashboard(c *gin.Context) {
	filter, ok := parseDashboardFilter(c)
	if !ok {
		return
	}
	filter.CostCenter = strings.TrimSpace(c.Query("cost_center"))

	dashboard, err := h.dashboards.Supplies(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *Handler) executiveDashboard(c *gin.Context) {
	filter, ok := parseDashboardFilter(c)
	if !ok {
		return
	}
	filter.Client = strings.TrimSpace(c.Query("client"))

	dashboard, err := h.dashboards.Executive(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *Handler) kpiSummary(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var contractID *uuid.UUID
	if raw := strings.TrimSpace(c.Query("contract_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid contract_id")
			return
		}
		contractID = &id
	}

	summary, err := h.dashboards.Summary(c.Request.Context(), principal, contractID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) contractMetrics(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, err := h.dashboards.ContractMetrics(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) exportReport(c *gin.Context) {
	filter, ok := parseDashboardFilter(c)
	if !ok {
		return
	}
	filter.Client = strings.TrimSpace(c.Query("client"))
	format := service.ReportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(service.ReportExcel)))))

	file, err := h.dashboards.Report(c.Request.Context(), format, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+file.FileName+"\"")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// parseDashboardFilter reads the query parameters shared by every dashboard.
// On failure it has already written the response.
func parseDashboardFilter(c *gin.Context) (repository.DashboardFilter, bool) {
	var filter repository.DashboardFilter

	from, ok := optionalQueryDate(c, "start_date")
	if !ok {
		return filter, false
	}
	to, ok := optionalQueryDate(c, "end_date")
	if !ok {
		return filter, false
	}
	filter.From, filter.To = from, to

	if raw := strings.TrimSpace(c.Query("contract_ids")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				badRequest(c, "invalid contract_ids")
				return filter, false
			}
			filter.ContractIDs = append(filter.ContractIDs, id)
		}
	}
	return filter, true
}

func optionalQueryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	parsed, err := parseDate(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &parsed, true
}
