package http_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/obrasplan/contracts-service/internal/auth"
	"github.com/obrasplan/contracts-service/internal/config"
	"github.com/obrasplan/contracts-service/internal/db/dbtest"
	"github.com/obrasplan/contracts-service/internal/excel"
	httphandler "github.com/obrasplan/contracts-service/internal/http"
	"github.com/obrasplan/contracts-service/internal/http/middleware"
	"github.com/obrasplan/contracts-service/internal/model"
	"github.com/obrasplan/contracts-service/internal/pdf"
	"github.com/obrasplan/contracts-service/internal/repository"
	"github.com/obrasplan/contracts-service/internal/service"
)

const testSecret = "test-secret"

type testServer struct {
	router *gin.Engine
	parser *auth.Parser
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		HTTP:        config.HTTPConfig{AllowedOrigins: []string{"*"}},
		Contracts:   config.ContractsConfig{DefaultPageSize: 10, MaxPageSize: 100},
		Import:      config.ImportConfig{SheetName: "QQP_Cliente", MaxUploadBytes: 1 << 20},
	}
	log := zerolog.Nop()
	database := dbtest.New(t)

	contracts := repository.NewContractRepository(database)
	purchases := repository.NewPurchaseRepository(database)
	importer := excel.NewBudgetImporter(cfg.Import.SheetName, contracts)

	handler := httphandler.NewHandler(
		service.NewContractService(contracts, purchases, importer, cfg, log),
		service.NewPurchaseService(purchases, contracts, log),
		service.NewDashboardService(contracts, purchases, excel.NewGenerator(), pdf.NewGenerator(), log),
		cfg.Import.MaxUploadBytes,
		log,
	)
	parser := auth.NewParser(testSecret)
	return testServer{
		router: httphandler.NewRouter(handler, middleware.Auth(parser), cfg, log),
		parser: parser,
	}
}

func (s testServer) token(t *testing.T, role model.Role) string {
	t.Helper()
	token, err := s.parser.Issue(model.Principal{UserID: uuid.New(), Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (s testServer) do(t *testing.T, role model.Role, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, role))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func decimalField(t *testing.T, body map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	raw, ok := body[key].(string)
	require.True(t, ok, "%s is %v", key, body[key])
	return decimal.RequireFromString(raw)
}

func contractPayload(number string) map[string]interface{} {
	return map[string]interface{}{
		"contract_number":          number,
		"project_name":             "Linha de transmissão",
		"client":                   "Vale S.A.",
		"contract_type":            "service",
		"original_value":           "10000.00",
		"reduction_target_percent": "10",
		"start_date":               "2024-02-01",
		"budget_items": []map[string]interface{}{
			{"item_code": "1", "description": "Torres", "cost_center": "CC-LT", "planned_total_value": "10000"},
		},
	}
}

func (s testServer) createContract(t *testing.T, number string) string {
	t.Helper()
	rec := s.do(t, model.RoleComercial, http.MethodPost, "/contracts", contractPayload(number))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func TestHealthzIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "", http.MethodGet, "/contracts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/contracts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndReadContract(t *testing.T) {
	s := newTestServer(t)
	id := s.createContract(t, "CT-100")

	rec := s.do(t, model.RoleDiretoria, http.MethodGet, "/contracts/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "CT-100", body["contract_number"])
	assert.Equal(t, true, body["has_budget_import"])
	assert.True(t, decimal.NewFromInt(10000).Equal(decimalField(t, body, "contract_balance")))
	assert.True(t, decimal.NewFromInt(1000).Equal(decimalField(t, body, "savings_obtained")))
	assert.Len(t, body["budget_items"], 1)

	rec = s.do(t, model.RoleComercial, http.MethodPost, "/contracts", contractPayload("CT-100"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/contracts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, model.RoleComercial, http.MethodGet, "/contracts/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec), "error")
}

func TestContractWritesRequireCapability(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, model.RoleDiretoria, http.MethodPost, "/contracts", contractPayload("CT-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	id := s.createContract(t, "CT-2")
	rec = s.do(t, model.RoleDiretoria, http.MethodDelete, "/contracts/"+id, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, model.RoleSuprimentos, http.MethodPut, "/contracts/"+id, map[string]interface{}{"status": "suspended"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "suspended", decode(t, rec)["status"])

	rec = s.do(t, model.RoleAdmin, http.MethodDelete, "/contracts/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deleted := decode(t, rec)
	assert.Equal(t, "contract deleted", deleted["message"])
	assert.Equal(t, id, deleted["id"])
	rec = s.do(t, model.RoleAdmin, http.MethodGet, "/contracts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListContracts(t *testing.T) {
	s := newTestServer(t)
	for _, number := range []string{"A", "B", "C"} {
		s.createContract(t, number)
	}

	rec := s.do(t, model.RoleComercial, http.MethodGet, "/contracts?skip=2&limit=2&cliente=vale", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["page"])
	assert.Len(t, body["contracts"], 1)

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/contracts?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, model.RoleComercial, http.MethodGet, "/contracts?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/contracts/kpis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	kpis := decode(t, rec)
	assert.Equal(t, float64(3), kpis["contracts"])
	assert.True(t, decimal.NewFromInt(30000).Equal(decimalField(t, kpis, "total_value")))
}

func budgetWorkbook(t *testing.T) []byte {
	t.Helper()
	file := excelize.NewFile()
	defer file.Close()
	require.NoError(t, file.SetSheetName("Sheet1", "QQP_Cliente"))
	rows := [][]interface{}{
		{"Item", "Descrição", "Centro de Custo", "Valor Total"},
		{"1.1", "Mobilização", "CC-ADM", 2500},
		{"1.2", "Fundações", "CC-CIVIL", 7500},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, file.SetSheetRow("QQP_Cliente", cell, &row))
	}
	buf, err := file.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func (s testServer) upload(t *testing.T, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"name":          "Porto de Tubarão",
		"client":        "Vale S.A.",
		"contract_type": "material_product",
		"start_date":    "2024-04-01",
		"description":   "Importado do QQP",
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("budget_file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/contracts", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(t, model.RoleComercial))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestImportContractFromSpreadsheet(t *testing.T) {
	s := newTestServer(t)

	rec := s.upload(t, "orcamento.xlsx", budgetWorkbook(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.True(t, decimal.NewFromInt(10000).Equal(decimalField(t, body, "original_value")))
	assert.Equal(t, "Importado do QQP", body["notes"])
	assert.Equal(t, true, body["has_budget_import"])

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/contracts/"+body["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["budget_items"], 2)
}

func TestImportContractRejectsBadFiles(t *testing.T) {
	s := newTestServer(t)

	rec := s.upload(t, "orcamento.pdf", budgetWorkbook(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.upload(t, "orcamento.xlsx", []byte("not a workbook"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.upload(t, "orcamento.xlsx", bytes.Repeat([]byte("x"), 2<<20))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "budget_file exceeds 1 MB", decode(t, rec)["error"])

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/contracts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["total"])
}

func TestPurchaseFlowAndDashboards(t *testing.T) {
	s := newTestServer(t)
	contractID := s.createContract(t, "CT-1")

	rec := s.do(t, model.RoleComercial, http.MethodPost, "/suppliers", map[string]interface{}{"name": "Aços Brasil"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, model.RoleSuprimentos, http.MethodPost, "/suppliers", map[string]interface{}{"name": "Aços Brasil"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	supplierID := decode(t, rec)["id"].(string)

	rec = s.do(t, model.RoleSuprimentos, http.MethodPost, "/suppliers/"+supplierID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, model.RoleSuprimentos, http.MethodPost, "/purchase-orders", map[string]interface{}{
		"contract_id":  contractID,
		"supplier_id":  supplierID,
		"order_number": "PO-1",
		"total_value":  "4000",
		"issued_at":    "2024-02-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := decode(t, rec)["id"].(string)

	rec = s.do(t, model.RoleSuprimentos, http.MethodPost, "/purchase-orders/"+orderID+"/invoices", map[string]interface{}{
		"invoice_number": "NF-1",
		"total_value":    "9500",
		"issued_at":      "2024-02-20",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/contracts/"+contractID+"/purchase-orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["purchase_orders"], 1)

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/dashboards/contracts/"+contractID+"/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	metricsBody := decode(t, rec)
	assert.True(t, decimal.NewFromInt(9500).Equal(decimalField(t, metricsBody, "realized_value")))
	assert.Equal(t, false, metricsBody["reduction_target_met"])

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/dashboards/executive", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, model.RoleSuprimentos, http.MethodGet, "/dashboards/executive", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, model.RoleDiretoria, http.MethodGet, "/dashboards/executive?start_date=2024-01-01&end_date=2024-12-31", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	executive := decode(t, rec)
	assert.True(t, decimal.NewFromInt(95).Equal(decimalField(t, executive, "percent_realized_total")))
	assert.Equal(t, false, executive["reduction_target_met"])

	rec = s.do(t, model.RoleDiretoria, http.MethodGet, "/dashboards/executive?start_date=2024-12-31&end_date=2024-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, model.RoleDiretoria, http.MethodGet, "/dashboards/executive?contract_ids=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/dashboards/supplies", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, model.RoleSuprimentos, http.MethodGet, "/dashboards/supplies?cost_center=CC-LT&contract_ids="+contractID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	supplies := decode(t, rec)
	assert.Equal(t, float64(1), supplies["total_purchase_orders"])
	assert.Equal(t, float64(1), supplies["approved_suppliers"])

	rec = s.do(t, model.RoleComercial, http.MethodGet, "/dashboards/kpis/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)
	assert.Contains(t, summary, "total_purchase_orders")
	assert.NotContains(t, summary, "total_balance")

	rec = s.do(t, model.RoleAdmin, http.MethodGet, "/dashboards/kpis/summary?contract_id="+contractID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary = decode(t, rec)
	assert.Contains(t, summary, "total_balance")
	assert.NotContains(t, summary, "total_purchase_orders")

	rec = s.do(t, model.RoleAdmin, http.MethodDelete, "/contracts/"+contractID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportExport(t *testing.T) {
	s := newTestServer(t)
	s.createContract(t, "CT-1")

	rec := s.do(t, model.RoleSuprimentos, http.MethodGet, "/dashboards/report", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, model.RoleDiretoria, http.MethodGet, "/dashboards/report?format=excel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	rec = s.do(t, model.RoleDiretoria, http.MethodGet, "/dashboards/report?format=pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = s.do(t, model.RoleDiretoria, http.MethodGet, "/dashboards/report?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
