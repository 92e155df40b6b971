package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reseller/crosslist/internal/interfaces/http/dto"
)

func bindSale(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/sales", func(c *gin.Context) {
		var req dto.MarkSoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body)))
	return w
}

func TestHandleValidationError(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantError string
		wantField string
	}{
		{name: "valid", body: `{"platform":"ebay","quantity":1}`, wantCode: http.StatusNoContent},
		{name: "platform is case-insensitive", body: `{"platform":"Mercari"}`, wantCode: http.StatusNoContent},
		{name: "missing platform", body: `{"quantity":1}`, wantCode: http.StatusBadRequest,
			wantError: dto.ErrCodeValidation, wantField: "platform"},
		{name: "unknown platform", body: `{"platform":"etsy"}`, wantCode: http.StatusBadRequest,
			wantError: dto.ErrCodeValidation, wantField: "platform"},
		{name: "negative quantity", body: `{"platform":"ebay","quantity":-2}`, wantCode: http.StatusBadRequest,
			wantError: dto.ErrCodeValidation, wantField: "quantity"},
		{name: "malformed json", body: `{"platform":`, wantCode: http.StatusBadRequest,
			wantError: dto.ErrCodeInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := bindSale(t, tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantError != "" {
				assert.Contains(t, w.Body.String(), tt.wantError)
				assert.Contains(t, w.Body.String(), `"request_id"`)
			}
			if tt.wantField != "" {
				assert.Contains(t, w.Body.String(), `"field":"`+tt.wantField+`"`)
			}
		})
	}
}
