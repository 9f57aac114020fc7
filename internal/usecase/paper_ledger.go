package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"
	domsvc "TradeCore/internal/domain/service"
	"TradeCore/internal/service/metrics"
	"TradeCore/pkg/logger"
)

const (
	defaultInitialBalance = 10000.0
	recentOrdersCap       = 100
	priceFetchLimit       = 8
)

// PaperLedger is a simulated long-only brokerage account. Every mutation is
// validated first, applied to a copy, persisted, and only then made visible.
type PaperLedger struct {
	mu   sync.Mutex
	acct *models.PaperAccount

	store        repository.AccountStore
	market       domsvc.MarketData
	events       repository.EventPublisher
	locker       repository.Locker
	lockTTL      time.Duration
	priceTimeout time.Duration
	initial      float64
	now          func() time.Time
	log          *logger.Logger
}

type LedgerOption func(*PaperLedger)

func WithInitialBalance(v float64) LedgerOption {
	return func(l *PaperLedger) {
		if v > 0 {
			l.initial = v
		}
	}
}

func WithLedgerEvents(p repository.EventPublisher) LedgerOption {
	return func(l *PaperLedger) { l.events = p }
}

// WithSymbolLocker serializes the price-fetch and fill span per symbol.
func WithSymbolLocker(lk repository.Locker, ttl time.Duration) LedgerOption {
	return func(l *PaperLedger) {
		l.locker = lk
		if ttl > 0 {
			l.lockTTL = ttl
		}
	}
}

func WithPriceTimeout(d time.Duration) LedgerOption {
	return func(l *PaperLedger) { l.priceTimeout = d }
}

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *PaperLedger) { l.now = now }
}

func NewPaperLedger(store repository.AccountStore, market domsvc.MarketData, opts ...LedgerOption) *PaperLedger {
	l := &PaperLedger{
		store:        store,
		market:       market,
		lockTTL:      10 * time.Second,
		priceTimeout: 5 * time.Second,
		initial:      defaultInitialBalance,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.acct = l.defaultAccount()
	return l
}

func (l *PaperLedger) SetLogger(lg *logger.Logger) { l.log = lg }

func (l *PaperLedger) defaultAccount() *models.PaperAccount {
	return &models.PaperAccount{
		InitialBalance: l.initial,
		USDBalance:     l.initial,
		Positions:      []models.Position{},
		Orders:         []models.Order{},
		OrderHistory:   []models.Order{},
		Trades:         []models.TradeRecord{},
		UpdatedAt:      l.now().UTC(),
	}
}

// Initialize loads the persisted snapshot, or writes a fresh default account.
func (l *PaperLedger) Initialize(ctx context.Context) error {
	acct, err := l.store.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		acct = l.defaultAccount()
		if err := l.store.Save(ctx, acct); err != nil {
			return fmt.Errorf("save default account: %w", err)
		}
		l.log.Info("paper account created", logger.Float64("balance", acct.USDBalance))
	case err != nil:
		return fmt.Errorf("load account: %w", err)
	default:
		normalize(acct, l.initial)
		l.log.Info("paper account loaded",
			logger.Float64("balance", acct.USDBalance),
			logger.Int("positions", len(acct.Positions)),
			logger.Int64("last_order_id", acct.LastOrderID),
		)
	}

	l.mu.Lock()
	l.acct = acct
	l.mu.Unlock()
	l.observeBalance(acct)
	return nil
}

func normalize(a *models.PaperAccount, initial float64) {
	if a.InitialBalance <= 0 {
		a.InitialBalance = initial
	}
	if a.Positions == nil {
		a.Positions = []models.Position{}
	}
	if a.Orders == nil {
		a.Orders = []models.Order{}
	}
	if a.OrderHistory == nil {
		a.OrderHistory = []models.Order{}
	}
	if a.Trades == nil {
		a.Trades = []models.TradeRecord{}
	}
}

// commit persists next and swaps it in. The caller holds l.mu.
func (l *PaperLedger) commit(ctx context.Context, next *models.PaperAccount) error {
	next.UpdatedAt = l.now().UTC()
	if err := l.store.Save(ctx, next); err != nil {
		l.log.Error("persist paper account failed", logger.Error(err))
		return fmt.Errorf("persist account: %w", err)
	}
	l.acct = next
	return nil
}

// FundAccount credits amount in cash and returns the new balance.
func (l *PaperLedger) FundAccount(ctx context.Context, amount float64) (float64, error) {
	if !finitePositive(amount) {
		return 0, models.ValidationError("invalid_amount", models.ErrInvalidAmount)
	}

	l.mu.Lock()
	next := cloneAccount(l.acct)
	next.USDBalance = decToFloat(decFromFloat(next.USDBalance).Add(decFromFloat(amount)))
	rec := models.TradeRecord{
		ID:        uuid.NewString(),
		Kind:      models.TradeFunding,
		Value:     amount,
		Timestamp: l.now().UTC(),
	}
	next.Trades = append(next.Trades, rec)
	err := l.commit(ctx, next)
	balance := l.acct.USDBalance
	l.mu.Unlock()
	if err != nil {
		return 0, err
	}

	l.observeBalance(next)
	l.log.Info("paper account funded", logger.Float64("amount", amount), logger.Float64("balance", balance))
	l.publish(ctx, models.TradingEvent{Type: models.EventAccountFunded, Payload: rec})
	return balance, nil
}

// PlaceOrder prices and fills req in full, or rejects it without side effects.
func (l *PaperLedger) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Type == "" {
		req.Type = models.OrderMarket
	}
	if err := validateOrder(req); err != nil {
		l.reject(req, err)
		return models.OrderResult{}, err
	}

	if l.locker != nil {
		key := "paper:order:" + req.Symbol
		ok, err := l.locker.TryLock(ctx, key, l.lockTTL)
		if err != nil {
			return models.OrderResult{}, fmt.Errorf("lock %s: %w", req.Symbol, err)
		}
		if !ok {
			err := models.DomainError("symbol_busy", models.ErrSymbolBusy)
			l.reject(req, err)
			return models.OrderResult{}, err
		}
		defer func() {
			if err := l.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				l.log.Warn("unlock symbol failed", logger.String("symbol", req.Symbol), logger.Error(err))
			}
		}()
	}

	if req.Side == models.SideSell {
		l.mu.Lock()
		_, held := findPosition(l.acct.Positions, req.Symbol)
		l.mu.Unlock()
		if !held {
			err := models.DomainError("no_position", models.ErrNoPosition)
			l.reject(req, err)
			return models.OrderResult{}, err
		}
	}

	ref, err := l.fetchPrice(ctx, req.Symbol)
	if err != nil {
		l.reject(req, err)
		return models.OrderResult{}, err
	}
	exec := executionPrice(req, ref)

	l.mu.Lock()
	next := cloneAccount(l.acct)
	res, err := applyFill(next, req, exec, l.now().UTC())
	if err == nil {
		err = l.commit(ctx, next)
	}
	l.mu.Unlock()
	if err != nil {
		l.reject(req, err)
		return models.OrderResult{}, err
	}

	metrics.OrdersTotal.WithLabelValues(string(req.Side), "filled").Inc()
	l.observeBalance(next)
	l.log.Info("paper order filled",
		logger.Int64("order_id", res.Order.OrderID),
		logger.String("symbol", req.Symbol),
		logger.String("side", string(req.Side)),
		logger.Float64("quantity", req.Quantity),
		logger.Float64("price", exec),
		logger.Float64("realized_pnl", res.RealizedPnL),
	)
	l.publish(ctx, models.TradingEvent{Type: models.EventOrderFilled, Symbol: req.Symbol, Payload: res})
	return res, nil
}

func validateOrder(req models.OrderRequest) error {
	switch {
	case req.Symbol == "":
		return models.ValidationError("invalid_symbol", models.ErrInvalidSymbol)
	case !finitePositive(req.Quantity):
		return models.ValidationError("invalid_quantity", models.ErrInvalidQuantity)
	case req.Side != models.SideBuy && req.Side != models.SideSell:
		return models.ValidationError("invalid_side", models.ErrInvalidSide)
	case req.Type != models.OrderMarket && req.Type != models.OrderLimit:
		return models.ValidationError("invalid_type", models.ErrInvalidOrderType)
	case req.Type == models.OrderLimit && !finitePositive(req.Price):
		return models.ValidationError("invalid_price", models.ErrInvalidPrice)
	}
	return nil
}

// executionPrice never fills worse than the reference price.
func executionPrice(req models.OrderRequest, ref float64) float64 {
	if req.Type != models.OrderLimit {
		return ref
	}
	if req.Side == models.SideBuy {
		if req.Price < ref {
			return req.Price
		}
		return ref
	}
	if req.Price > ref {
		return req.Price
	}
	return ref
}

func (l *PaperLedger) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	if l.priceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.priceTimeout)
		defer cancel()
	}
	start := time.Now()
	t, err := l.market.GetTicker(ctx, symbol)
	observeCall("ticker", start, err)
	if err != nil {
		return 0, models.UpstreamError("price_unavailable", err)
	}
	if !finitePositive(t.Last) {
		return 0, models.UpstreamError("price_unavailable", fmt.Errorf("non-positive price %v for %s", t.Last, symbol))
	}
	return t.Last, nil
}

// applyFill mutates a in place. It checks every rule before touching a.
func applyFill(a *models.PaperAccount, req models.OrderRequest, price float64, ts time.Time) (models.OrderResult, error) {
	qty := decFromFloat(req.Quantity)
	px := decFromFloat(price)
	value := qty.Mul(px)
	cash := decFromFloat(a.USDBalance)
	idx, held := findPosition(a.Positions, req.Symbol)

	var realized float64
	var pos *models.Position

	switch req.Side {
	case models.SideBuy:
		if value.GreaterThan(cash) {
			return models.OrderResult{}, models.DomainError("insufficient_funds", models.ErrInsufficientFunds)
		}
		a.USDBalance = decToFloat(cash.Sub(value))
		if !held {
			a.Positions = append(a.Positions, models.Position{Symbol: req.Symbol})
			idx = len(a.Positions) - 1
		}
		p := &a.Positions[idx]
		newQty := decFromFloat(p.Quantity).Add(qty)
		newCost := decFromFloat(p.TotalCost).Add(value)
		p.Quantity = decToFloat(newQty)
		p.TotalCost = decToFloat(newCost)
		p.AvgPrice = decToFloat(newCost.Div(newQty))
		cp := *p
		pos = &cp

	case models.SideSell:
		if !held {
			return models.OrderResult{}, models.DomainError("no_position", models.ErrNoPosition)
		}
		p := &a.Positions[idx]
		heldQty := decFromFloat(p.Quantity)
		if qty.GreaterThan(heldQty) {
			return models.OrderResult{}, models.DomainError("insufficient_position", models.ErrInsufficientPosition)
		}
		basis := qty.Mul(decFromFloat(p.AvgPrice))
		realized = decToFloat(value.Sub(basis))
		a.USDBalance = decToFloat(cash.Add(value))
		remaining := heldQty.Sub(qty)
		if remaining.IsZero() {
			a.Positions = append(a.Positions[:idx], a.Positions[idx+1:]...)
		} else {
			p.Quantity = decToFloat(remaining)
			p.TotalCost = decToFloat(decFromFloat(p.TotalCost).Sub(basis))
			cp := *p
			pos = &cp
		}
	}

	a.LastOrderID++
	order := models.Order{
		OrderID:    a.LastOrderID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      price,
		TotalValue: decToFloat(value),
		Type:       req.Type,
		Status:     models.OrderFilled,
		Timestamp:  ts,
	}
	a.Orders = append(a.Orders, order)
	if len(a.Orders) > recentOrdersCap {
		a.Orders = a.Orders[len(a.Orders)-recentOrdersCap:]
	}
	a.OrderHistory = append(a.OrderHistory, order)
	a.Trades = append(a.Trades, models.TradeRecord{
		ID:          uuid.NewString(),
		Kind:        models.TradeFill,
		OrderID:     order.OrderID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Quantity:    order.Quantity,
		Price:       order.Price,
		Value:       order.TotalValue,
		RealizedPnL: realized,
		Timestamp:   ts,
	})

	return models.OrderResult{Order: order, RealizedPnL: realized, Position: pos, USDBalance: a.USDBalance}, nil
}

func findPosition(ps []models.Position, symbol string) (int, bool) {
	for i := range ps {
		if ps[i].Symbol == symbol {
			return i, true
		}
	}
	return -1, false
}

func cloneAccount(a *models.PaperAccount) *models.PaperAccount {
	cp := *a
	cp.Positions = append([]models.Position(nil), a.Positions...)
	cp.Orders = append([]models.Order(nil), a.Orders...)
	cp.OrderHistory = append([]models.Order(nil), a.OrderHistory...)
	cp.Trades = append([]models.TradeRecord(nil), a.Trades...)
	normalize(&cp, a.InitialBalance)
	return &cp
}

// GetAccount marks every position to its live price. A failed price fetch
// flags that position and values it at cost; it never fails the call.
func (l *PaperLedger) GetAccount(ctx context.Context) (models.AccountView, error) {
	l.mu.Lock()
	cash := l.acct.USDBalance
	positions := append([]models.Position(nil), l.acct.Positions...)
	l.mu.Unlock()

	views := make([]models.PositionView, len(positions))
	var g errgroup.Group
	g.SetLimit(priceFetchLimit)
	for i, p := range positions {
		i, p := i, p
		g.Go(func() error {
			views[i] = l.markPosition(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	total := decimal.Zero
	for _, v := range views {
		total = total.Add(decFromFloat(v.MarketValue))
	}
	view := models.AccountView{
		USDBalance:         cash,
		Positions:          views,
		TotalPositionValue: decToFloat(total),
		TotalValue:         decToFloat(total.Add(decFromFloat(cash))),
		UpdatedAt:          l.now().UTC(),
	}
	metrics.AccountValue.WithLabelValues("positions").Set(view.TotalPositionValue)
	metrics.AccountValue.WithLabelValues("total").Set(view.TotalValue)
	return view, nil
}

func (l *PaperLedger) markPosition(ctx context.Context, p models.Position) models.PositionView {
	v := models.PositionView{Position: p, MarketValue: p.TotalCost}
	price, err := l.fetchPrice(ctx, p.Symbol)
	if err != nil {
		v.Error = models.ErrPriceUnavailable.Error()
		l.log.Warn("position price unavailable", logger.String("symbol", p.Symbol), logger.Error(err))
		return v
	}
	mv := decFromFloat(p.Quantity).Mul(decFromFloat(price))
	upnl := mv.Sub(decFromFloat(p.TotalCost))
	v.CurrentPrice = price
	v.MarketValue = decToFloat(mv)
	v.UnrealizedPnL = decToFloat(upnl)
	v.PnLPercent = percentOf(upnl, decFromFloat(p.TotalCost))
	v.PriceAvailable = true
	return v
}

// GetOrderHistory returns up to limit orders, newest first. limit <= 0 means all.
func (l *PaperLedger) GetOrderHistory(limit int) []models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return newestFirst(l.acct.OrderHistory, limit)
}

// GetTradeHistory returns up to limit trade records (fills and fundings), newest first.
func (l *PaperLedger) GetTradeHistory(limit int) []models.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return newestFirst(l.acct.Trades, limit)
}

func newestFirst[T any](xs []T, limit int) []T {
	n := len(xs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(xs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, xs[i])
	}
	return out
}

// ResetAccount restores the default account and persists it.
func (l *PaperLedger) ResetAccount(ctx context.Context) error {
	l.mu.Lock()
	next := l.defaultAccount()
	err := l.commit(ctx, next)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.observeBalance(next)
	l.log.Info("paper account reset", logger.Float64("balance", next.USDBalance))
	l.publish(ctx, models.TradingEvent{Type: models.EventAccountReset, Payload: map[string]float64{"usdBalance": next.USDBalance}})
	return nil
}

// Position returns the held position for symbol, if any.
func (l *PaperLedger) Position(symbol string) (models.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := findPosition(l.acct.Positions, strings.ToUpper(symbol))
	if !ok {
		return models.Position{}, false
	}
	return l.acct.Positions[idx], true
}

// Close writes the final snapshot.
func (l *PaperLedger) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.Save(ctx, l.acct); err != nil {
		return fmt.Errorf("flush account: %w", err)
	}
	return nil
}

func (l *PaperLedger) reject(req models.OrderRequest, err error) {
	metrics.OrdersTotal.WithLabelValues(string(req.Side), "rejected").Inc()
	l.log.Info("paper order rejected",
		logger.String("symbol", req.Symbol),
		logger.String("side", string(req.Side)),
		logger.Float64("quantity", req.Quantity),
		logger.Error(err),
	)
}

func (l *PaperLedger) observeBalance(a *models.PaperAccount) {
	metrics.AccountValue.WithLabelValues("cash").Set(a.USDBalance)
}

func (l *PaperLedger) publish(ctx context.Context, ev models.TradingEvent) {
	if l.events == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.Timestamp = l.now().UTC()
	if err := l.events.PublishEvent(context.WithoutCancel(ctx), ev); err != nil {
		l.log.Warn("event publish failed", logger.String("type", string(ev.Type)), logger.Error(err))
	}
}
