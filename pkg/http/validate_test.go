package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type orderBody struct {
	Symbol   string  `json:"symbol" validate:"required,ticker"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Type     string  `json:"type" default:"market" validate:"oneof=market limit"`
}

func TestDefaultAndValidate(t *testing.T) {
	ok := &orderBody{Symbol: "BRK.B", Quantity: 2}
	require.Empty(t, DefaultAndValidate(context.Background(), ok))
	assert.Equal(t, "market", ok.Type)

	errs := DefaultAndValidate(context.Background(), &orderBody{Symbol: "AAPL; DROP", Quantity: 0})
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_TICKER", errs[0].Code)
	assert.Equal(t, "symbol", errs[0].Field)
	assert.Equal(t, "ERR_GT", errs[1].Code)
	assert.Equal(t, "quantity must be greater than 0", errs[1].Message)
	assert.Contains(t, ValidationErrorsText(errs), "symbol is not a valid symbol")
}

func TestEnvelope(t *testing.T) {
	e := echo.New()
	e.GET("/ok", func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderXRequestID, "req-1")
		return ListResponse(c, []int{1, 2}, 2)
	})
	e.GET("/gone", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundError("no such bot"))
	})
	e.GET("/boom", func(c echo.Context) error {
		return AppErrorResponse(c, assert.AnError)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", gjson.Get(body, "requestId").String())
	assert.Equal(t, int64(2), gjson.Get(body, "data.total").Int())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gone", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ERR_NOT_FOUND", gjson.Get(rec.Body.String(), "data.0.code").String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), assert.AnError.Error()))
}
