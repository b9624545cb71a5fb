package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/obrasplan/contracts-service/internal/model"
)

type parserFunc func(string) (model.Principal, error)

func (f parserFunc) Parse(token string) (model.Principal, error) { return f(token) }

func newEngine(parser TokenParser, capability model.Capability) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/", Auth(parser), RequireCapability(capability), func(c *gin.Context) {
		principal, _ := MustPrincipal(c)
		c.String(http.StatusOK, string(principal.Role))
	})
	return engine
}

func serve(engine *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestAuthAndCapability(t *testing.T) {
	roles := map[string]model.Role{
		"tok-comercial":   model.RoleComercial,
		"tok-suprimentos": model.RoleSuprimentos,
		"tok-diretoria":   model.RoleDiretoria,
	}
	parser := parserFunc(func(token string) (model.Principal, error) {
		role, ok := roles[token]
		if !ok {
			return model.Principal{}, errors.New("bad token")
		}
		return model.Principal{UserID: uuid.New(), Role: role}, nil
	})
	engine := newEngine(parser, model.CapPurchasesWrite)

	assert.Equal(t, http.StatusUnauthorized, serve(engine, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, "Basic dXNlcjpwYXNz").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, "Bearer unknown").Code)
	assert.Equal(t, http.StatusForbidden, serve(engine, "Bearer tok-comercial").Code)
	assert.Equal(t, http.StatusForbidden, serve(engine, "Bearer tok-diretoria").Code)

	rec := serve(engine, "bearer tok-suprimentos")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "suprimentos", rec.Body.String())
}

func TestRequireCapabilityWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/", RequireCapability(model.CapContractsWrite), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(engine, "").Code)
}
