package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/obrasplan/contracts-service/internal/http/middleware"
	"github.com/obrasplan/contracts-service/internal/model"
	"github.com/obrasplan/contracts-service/internal/service"
)

type budgetItemRequest struct {
	ItemCode             string           `json:"item_code"`
	Description          string           `json:"description"`
	CostCenter           string           `json:"cost_center"`
	Unit                 *string          `json:"unit"`
	PlannedQuantity      *decimal.Decimal `json:"planned_quantity"`
	PlannedWeight        *decimal.Decimal `json:"planned_weight"`
	PlannedUnitValue     *decimal.Decimal `json:"planned_unit_value"`
	PlannedTotalValue    decimal.Decimal  `json:"planned_total_value"`
	PlannedNormalHours   *decimal.Decimal `json:"planned_normal_hours"`
	PlannedOvertimeHours *decimal.Decimal `json:"planned_overtime_hours"`
	PlannedSalary        *decimal.Decimal `json:"planned_salary"`
}

type createContractRequest struct {
	ContractNumber         string              `json:"contract_number"`
	ProjectName            string              `json:"project_name" binding:"required"`
	Client                 string              `json:"client" binding:"required"`
	ContractType           string              `json:"contract_type" binding:"required"`
	OriginalValue          decimal.Decimal     `json:"original_value"`
	ReductionTargetPercent decimal.Decimal     `json:"reduction_target_percent"`
	StartDate              string              `json:"start_date" binding:"required"`
	PlannedEndDate         *string             `json:"planned_end_date"`
	Notes                  *string             `json:"notes"`
	BudgetItems            []budgetItemRequest `json:"budget_items"`
}

type updateContractRequest struct {
	ProjectName            *string          `json:"project_name"`
	Client                 *string          `json:"client"`
	OriginalValue          *decimal.Decimal `json:"original_value"`
	ReductionTargetPercent *decimal.Decimal `json:"reduction_target_percent"`
	Status                 *string          `json:"status"`
	PlannedEndDate         *string          `json:"planned_end_date"`
	ActualEndDate          *string          `json:"actual_end_date"`
	Notes                  *string          `json:"notes"`
}

func (h *Handler) listContracts(c *gin.Context) {
	skip, err := queryInt(c, "skip")
	if err != nil {
		badRequest(c, "invalid skip")
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, "invalid limit")
		return
	}

	page, err := h.contracts.List(c.Request.Context(), service.ListContractsInput{
		Skip:   skip,
		Limit:  limit,
		Client: c.Query("cliente"),
		Status: strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) contractKPIs(c *gin.Context) {
	kpis, err := h.contracts.KPIs(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, kpis)
}

func (h *Handler) getContract(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, err := h.contracts.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// createContract accepts either a JSON payload or a multipart form carrying
// the budget spreadsheet.
func (h *Handler) createContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.importContract(c, principal)
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		badRequest(c, "invalid start_date")
		return
	}
	plannedEnd, err := parseOptionalDate(req.PlannedEndDate)
	if err != nil {
		badRequest(c, "invalid planned_end_date")
		return
	}

	items := make([]model.BudgetItem, 0, len(req.BudgetItems))
	for _, item := range req.BudgetItems {
		items = append(items, model.BudgetItem{
			ItemCode:             strings.TrimSpace(item.ItemCode),
			Description:          strings.TrimSpace(item.Description),
			CostCenter:           strings.TrimSpace(item.CostCenter),
			Unit:                 item.Unit,
			PlannedQuantity:      item.PlannedQuantity,
			PlannedWeight:        item.PlannedWeight,
			PlannedUnitValue:     item.PlannedUnitValue,
			PlannedTotalValue:    item.PlannedTotalValue,
			PlannedNormalHours:   item.PlannedNormalHours,
			PlannedOvertimeHours: item.PlannedOvertimeHours,
			PlannedSalary:        item.PlannedSalary,
		})
	}

	view, err := h.contracts.CreateFromPayload(c.Request.Context(), service.CreateContractInput{
		ContractNumber:         req.ContractNumber,
		ProjectName:            req.ProjectName,
		Client:                 req.Client,
		ContractType:           model.ContractType(strings.TrimSpace(req.ContractType)),
		OriginalValue:          req.OriginalValue,
		ReductionTargetPercent: req.ReductionTargetPercent,
		StartDate:              start,
		PlannedEndDate:         plannedEnd,
		Notes:                  req.Notes,
		BudgetItems:            items,
		Principal:              principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) importContract(c *gin.Context, principal model.Principal) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("budget_file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, fmt.Sprintf("budget_file exceeds %d MB", h.maxUploadBytes>>20))
			return
		}
		badRequest(c, "budget_file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "budget_file could not be read")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "budget_file could not be read")
		return
	}

	start, err := parseDate(c.PostForm("start_date"))
	if err != nil {
		badRequest(c, "invalid start_date")
		return
	}
	var description *string
	if value := strings.TrimSpace(c.PostForm("description")); value != "" {
		description = &value
	}

	view, err := h.contracts.CreateFromImport(c.Request.Context(), service.ImportContractInput{
		FileName:     header.Filename,
		Content:      content,
		ProjectName:  c.PostForm("name"),
		Client:       c.PostForm("client"),
		ContractType: model.ContractType(strings.TrimSpace(c.PostForm("contract_type"))),
		StartDate:    start,
		Description:  description,
		Principal:    principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) updateContract(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	plannedEnd, err := parseOptionalDate(req.PlannedEndDate)
	if err != nil {
		badRequest(c, "invalid planned_end_date")
		return
	}
	actualEnd, err := parseOptionalDate(req.ActualEndDate)
	if err != nil {
		badRequest(c, "invalid actual_end_date")
		return
	}
	input := service.UpdateContractInput{
		ProjectName:            req.ProjectName,
		Client:                 req.Client,
		OriginalValue:          req.OriginalValue,
		ReductionTargetPercent: req.ReductionTargetPercent,
		PlannedEndDate:         plannedEnd,
		ActualEndDate:          actualEnd,
		Notes:                  req.Notes,
	}
	if req.Status != nil {
		status := model.ContractStatus(strings.TrimSpace(*req.Status))
		input.Status = &status
	}

	view, err := h.contracts.Update(c.Request.Context(), id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) deleteContract(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.contracts.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "contract deleted", "id": id})
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}
