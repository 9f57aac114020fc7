package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/usecase"
	xhttp "TradeCore/pkg/http"
	xlogger "TradeCore/pkg/logger"
	"TradeCore/pkg/util"
)

// PaperEchoHandler exposes the paper trading ledger.
type PaperEchoHandler struct {
	logger *xlogger.Logger
	ledger *usecase.PaperLedger
}

func NewPaperEchoHandler(logger *xlogger.Logger, ledger *usecase.PaperLedger) *PaperEchoHandler {
	return &PaperEchoHandler{logger: logger, ledger: ledger}
}

func (h *PaperEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/paper")
	g.GET("/account", h.Account)
	g.POST("/fund", h.Fund)
	g.POST("/orders", h.PlaceOrder)
	g.GET("/orders", h.Orders)
	g.GET("/trades", h.Trades)
	g.GET("/stats", h.Stats)
	g.POST("/reset", h.Reset)
}

func (h *PaperEchoHandler) Account(c echo.Context) error {
	view, err := h.ledger.GetAccount(c.Request().Context())
	if err != nil {
		return tradingErrorResponse(c, h.logger, "get account", err)
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *PaperEchoHandler) Fund(c echo.Context) error {
	req := &models.FundRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	bal, err := h.ledger.FundAccount(c.Request().Context(), req.Amount)
	if err != nil {
		return tradingErrorResponse(c, h.logger, "fund account", err)
	}
	return xhttp.SuccessResponse(c, map[string]float64{"usdBalance": bal})
}

func (h *PaperEchoHandler) PlaceOrder(c echo.Context) error {
	req := &models.PlaceOrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.ledger.PlaceOrder(c.Request().Context(), models.OrderRequest{
		Symbol:   req.Symbol,
		Side:     models.OrderSide(req.Side),
		Quantity: req.Quantity,
		Price:    req.Price,
		Type:     models.OrderType(req.Type),
	})
	if err != nil {
		return tradingErrorResponse(c, h.logger, "place order", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *PaperEchoHandler) Orders(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := recentSince(h.ledger.GetOrderHistory(0), req, func(o models.Order) time.Time { return o.Timestamp })
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PaperEchoHandler) Trades(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := recentSince(h.ledger.GetTradeHistory(0), req, func(t models.TradeRecord) time.Time { return t.Timestamp })
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PaperEchoHandler) Stats(c echo.Context) error {
	st, err := h.ledger.GetStats(c.Request().Context())
	if err != nil {
		return tradingErrorResponse(c, h.logger, "account stats", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *PaperEchoHandler) Reset(c echo.Context) error {
	if err := h.ledger.ResetAccount(c.Request().Context()); err != nil {
		return tradingErrorResponse(c, h.logger, "reset account", err)
	}
	return h.Account(c)
}

// recentSince applies the since filter and then the limit, so a limit counts
// only matching rows. rows arrive newest first and keep that order.
func recentSince[T any](rows []T, req *models.HistoryRequest, ts func(T) time.Time) []T {
	from, filter := util.ParseTime(req.Since)
	out := rows[:0:0]
	for _, r := range rows {
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
		if filter && ts(r).Before(from) {
			continue
		}
		out = append(out, r)
	}
	return out
}
