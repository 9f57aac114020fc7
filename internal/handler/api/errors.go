package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"TradeCore/internal/domain/models"
	xhttp "TradeCore/pkg/http"
	xlogger "TradeCore/pkg/logger"
)

// tradingErrorResponse maps error categories onto HTTP statuses:
// validation 400, domain 422, upstream 502, anything else 500.
func tradingErrorResponse(c echo.Context, l *xlogger.Logger, op string, err error) error {
	var te *models.TradingError
	if errors.As(err, &te) {
		code := "ERR_" + strings.ToUpper(te.Code)
		switch te.Kind {
		case models.KindValidation:
			return xhttp.AppErrorResponse(c, xhttp.NewAppError(code, "", te.Error(), http.StatusBadRequest).WithError(err))
		case models.KindDomain:
			return xhttp.AppErrorResponse(c, xhttp.UnprocessableError(code, te.Error()).WithError(err))
		case models.KindUpstream:
			l.Warn(op+" upstream failure", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.BadGatewayError(code, te.Error()).WithError(err))
		}
	}
	l.Error(op+" failed", xlogger.Error(err))
	return xhttp.InternalServerErrorResponse(c)
}
