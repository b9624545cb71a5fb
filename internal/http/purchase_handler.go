package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obrasplan/contracts-service/internal/http/middleware"
	"github.com/obrasplan/contracts-service/internal/service"
)

type createSupplierRequest struct {
	Name    string  `json:"name" binding:"required"`
	TaxID   *string `json:"tax_id"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type createPurchaseOrderRequest struct {
	ContractID         string          `json:"contract_id" binding:"required"`
	SupplierID         string          `json:"supplier_id" binding:"required"`
	OrderNumber        string          `json:"order_number" binding:"required"`
	TotalValue         decimal.Decimal `json:"total_value"`
	IssuedAt           string          `json:"issued_at" binding:"required"`
	ExpectedDeliveryAt *string         `json:"expected_delivery_at"`
	Notes              *string         `json:"notes"`
}

type registerInvoiceRequest struct {
	InvoiceNumber string          `json:"invoice_number" binding:"required"`
	TotalValue    decimal.Decimal `json:"total_value"`
	IssuedAt      string          `json:"issued_at" binding:"required"`
	DueAt         *string         `json:"due_at"`
	Notes         *string         `json:"notes"`
}

func (h *Handler) createSupplier(c *gin.Context) {
	var req createSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	supplier, err := h.purchases.CreateSupplier(c.Request.Context(), service.CreateSupplierInput{
		Name:    req.Name,
		TaxID:   req.TaxID,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

func (h *Handler) approveSupplier(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	supplier, err := h.purchases.ApproveSupplier(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

func (h *Handler) createPurchaseOrder(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	var req createPurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	contractID, err := uuid.Parse(strings.TrimSpace(req.ContractID))
	if err != nil {
		badRequest(c, "invalid contract_id")
		return
	}
	supplierID, err := uuid.Parse(strings.TrimSpace(req.SupplierID))
	if err != nil {
		badRequest(c, "invalid supplier_id")
		return
	}
	issuedAt, err := parseDate(req.IssuedAt)
	if err != nil {
		badRequest(c, "invalid issued_at")
		return
	}
	expected, err := parseOptionalDate(req.ExpectedDeliveryAt)
	if err != nil {
		badRequest(c, "invalid expected_delivery_at")
		return
	}

	order, err := h.purchases.CreatePurchaseOrder(c.Request.Context(), service.CreatePurchaseOrderInput{
		ContractID:         contractID,
		SupplierID:         supplierID,
		OrderNumber:        req.OrderNumber,
		TotalValue:         req.TotalValue,
		IssuedAt:           issuedAt,
		ExpectedDeliveryAt: expected,
		Notes:              req.Notes,
		Principal:          principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) registerInvoice(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req registerInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	issuedAt, err := parseDate(req.IssuedAt)
	if err != nil {
		badRequest(c, "invalid issued_at")
		return
	}
	dueAt, err := parseOptionalDate(req.DueAt)
	if err != nil {
		badRequest(c, "invalid due_at")
		return
	}

	invoice, err := h.purchases.RegisterInvoice(c.Request.Context(), service.RegisterInvoiceInput{
		PurchaseOrderID: orderID,
		InvoiceNumber:   req.InvoiceNumber,
		TotalValue:      req.TotalValue,
		IssuedAt:        issuedAt,
		DueAt:           dueAt,
		Notes:           req.Notes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *Handler) listPurchaseOrders(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	orders, err := h.purchases.ListPurchaseOrders(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase_orders": orders})
}
