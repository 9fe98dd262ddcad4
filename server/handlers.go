package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/renderer"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.markets)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	q, err := s.trader.Quote(r.Context(), chi.URLParam(r, "ticker"))
	s.mu.Unlock()
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	prices, failed := s.trader.RefreshPrices(r.Context())
	p := s.trader.Portfolio()
	s.mu.Unlock()

	resp := newPortfolio(p, prices)
	for ticker := range failed {
		resp.Stale = append(resp.Stale, ticker)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// tradeRequest is the body of POST /api/trade.
type tradeRequest struct {
	Action     string      `json:"action"`
	Ticker     string      `json:"ticker"`
	Quantity   json.Number `json:"quantity"`
	OrderType  string      `json:"order_type"`
	LimitPrice json.Number `json:"limit_price"`
}

// order converts the request to an Order in currency.
func (t tradeRequest) order(currency string) (tradesim.Order, error) {
	var o tradesim.Order
	side, err := tradesim.ParseSide(t.Action)
	if err != nil {
		return o, err
	}
	q, err := tradesim.ParseQuantity(t.Quantity.String())
	if err != nil {
		return o, err
	}
	o = tradesim.Order{Side: side, Ticker: t.Ticker, Quantity: q}
	switch strings.ToLower(t.OrderType) {
	case "", "market":
	case "limit":
		if t.LimitPrice == "" {
			return o, &tradesim.Error{Kind: tradesim.Validation, Msg: "limit_price is required for a limit order"}
		}
		limit, err := tradesim.ParsePrice(t.LimitPrice.String(), currency)
		if err != nil {
			return o, err
		}
		o.Limit = limit
	default:
		return o, &tradesim.Error{Kind: tradesim.Validation, Msg: "order_type must be market or limit"}
	}
	return o, nil
}

// tradeResponse is the body of a successful trade.
type tradeResponse struct {
	Success     bool                 `json:"success"`
	OrderID     uuid.UUID            `json:"order_id"`
	State       string               `json:"state"`
	Transaction tradesim.Transaction `json:"transaction"`
	Quote       tradesim.Quote       `json:"quote"`
	Warnings    []string             `json:"warnings"`
	Error       string               `json:"error,omitempty"` // trade applied but not persisted
	Portfolio   jsonPortfolio        `json:"portfolio"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, tradesim.Validation, "invalid request body: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	order, err := req.order(s.trader.Portfolio().Currency())
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	res, err := s.trader.Execute(r.Context(), order)
	if !res.Executed() {
		s.writeTradeError(w, err)
		return
	}

	resp := tradeResponse{
		Success:     true,
		OrderID:     res.OrderID,
		State:       res.State.String(),
		Transaction: res.Transaction,
		Quote:       res.Quote,
		Warnings:    []string{},
		Portfolio:   newPortfolio(s.trader.Portfolio(), s.trader.LastPrices()),
	}
	for _, warn := range res.Warnings {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	if err != nil {
		s.log.Error().Err(err).Str("order_id", res.OrderID.String()).Msg("trade applied but not persisted")
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.readTransactions()
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("tail")); err == nil {
		txs = tradesim.Tail(txs, n)
	}
	if txs == nil {
		txs = []tradesim.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	var snaps []tradesim.Snapshot
	if s.snaps != nil {
		var err error
		if snaps, err = s.snaps.Read(); err != nil {
			s.writeTradeError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, newSnapshots(snaps))
}

func (s *Server) handlePL(w http.ResponseWriter, r *http.Request) {
	txs, err := s.readTransactions()
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	s.mu.Lock()
	prices, _ := s.trader.RefreshPrices(r.Context())
	p := s.trader.Portfolio()
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, newPL(tradesim.Summarize(txs, p, prices, s.method)))
}

func (s *Server) readTransactions() ([]tradesim.Transaction, error) {
	if s.txs == nil {
		return nil, nil
	}
	return s.txs.Read()
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, kind tradesim.Kind, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
		"kind":  kind.String(),
	})
}

// writeTradeError maps err to a status code. Errors outside the taxonomy are
// logged and reported without detail.
func (s *Server) writeTradeError(w http.ResponseWriter, err error) {
	kind := tradesim.KindOf(err)
	status := statusOf(err)
	if kind == tradesim.Unexpected {
		s.log.Error().Err(err).Msg("unexpected error")
		s.writeError(w, status, kind, "unexpected error, see the server log")
		return
	}
	if kind == tradesim.File {
		s.log.Error().Err(err).Msg("file error")
	}
	s.writeError(w, status, kind, err.Error())
}

// statusOf returns the HTTP status of err.
func statusOf(err error) int {
	switch tradesim.KindOf(err) {
	case tradesim.Validation:
		return http.StatusBadRequest
	case tradesim.InsufficientFunds, tradesim.InsufficientHoldings, tradesim.MarketClosed, tradesim.LimitNotReachable:
		return http.StatusConflict
	case tradesim.DataFetch:
		if errors.Is(err, tradesim.ErrQuoteInvalidTicker) {
			return http.StatusBadRequest
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// jsonPortfolio is the JSON form of a valued portfolio.
type jsonPortfolio struct {
	Currency      string         `json:"currency"`
	Cash          tradesim.Money `json:"cash"`
	Holdings      []jsonHolding  `json:"holdings"`
	HoldingsValue tradesim.Money `json:"holdings_value"`
	TotalValue    tradesim.Money `json:"total_value"`
	Stale         []string       `json:"stale,omitempty"` // tickers whose price could not be refreshed
}

type jsonHolding struct {
	Ticker      string            `json:"ticker"`
	Quantity    tradesim.Quantity `json:"quantity"`
	AverageCost tradesim.Money    `json:"average_cost"`
	Price       *tradesim.Money   `json:"current_price"` // null when unknown
	Value       tradesim.Money    `json:"value"`
}

func newPortfolio(p *tradesim.Portfolio, prices map[string]tradesim.Money) jsonPortfolio {
	v := renderer.NewPortfolio(p, prices)
	out := jsonPortfolio{
		Currency:      v.Currency,
		Cash:          v.Cash,
		Holdings:      []jsonHolding{},
		HoldingsValue: v.HoldingsValue,
		TotalValue:    v.TotalValue,
	}
	for _, pos := range v.Positions {
		h := jsonHolding{Ticker: pos.Ticker, Quantity: pos.Quantity, AverageCost: pos.AverageCost, Value: pos.Value}
		if pos.PriceKnown {
			price := pos.Price
			h.Price = &price
		}
		out.Holdings = append(out.Holdings, h)
	}
	return out
}

type jsonSnapshot struct {
	Timestamp     time.Time      `json:"timestamp"`
	Cash          tradesim.Money `json:"cash"`
	HoldingsValue tradesim.Money `json:"holdings_value"`
	TotalValue    tradesim.Money `json:"total_value"`
}

type jsonStats struct {
	Count       int     `json:"count"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"stddev"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

type jsonSnapshots struct {
	Snapshots []jsonSnapshot `json:"snapshots"`
	Stats     jsonStats      `json:"stats"`
}

func newSnapshots(snaps []tradesim.Snapshot) jsonSnapshots {
	st := tradesim.ComputeSnapshotStats(snaps)
	out := jsonSnapshots{
		Snapshots: make([]jsonSnapshot, 0, len(snaps)),
		Stats:     jsonStats{st.Count, st.Min, st.Max, st.Mean, st.StdDev, st.MaxDrawdown},
	}
	for _, s := range snaps {
		out.Snapshots = append(out.Snapshots, jsonSnapshot{s.Timestamp, s.Cash, s.HoldingsValue, s.TotalValue})
	}
	return out
}

type jsonTickerPL struct {
	Ticker      string            `json:"ticker"`
	Quantity    tradesim.Quantity `json:"quantity"`
	AverageCost tradesim.Money    `json:"average_cost"`
	LatestPrice tradesim.Money    `json:"latest_price"`
	PriceKnown  bool              `json:"price_known"`
	Realized    tradesim.Money    `json:"realized"`
	Unrealized  tradesim.Money    `json:"unrealized"`
	Total       tradesim.Money    `json:"total"`
}

type jsonPL struct {
	Currency   string         `json:"currency"`
	Method     string         `json:"method"`
	Realized   tradesim.Money `json:"realized"`
	Unrealized tradesim.Money `json:"unrealized"`
	Total      tradesim.Money `json:"total"`
	Tickers    []jsonTickerPL `json:"tickers"`
	Unpriced   []string       `json:"unpriced,omitempty"`
}

func newPL(s tradesim.PLSummary) jsonPL {
	out := jsonPL{
		Currency:   s.Currency,
		Method:     s.Method.String(),
		Realized:   s.Realized,
		Unrealized: s.Unrealized,
		Total:      s.Total(),
		Tickers:    make([]jsonTickerPL, 0, len(s.Tickers)),
		Unpriced:   s.Unpriced,
	}
	for _, t := range s.Tickers {
		out.Tickers = append(out.Tickers, jsonTickerPL{
			Ticker:      t.Ticker,
			Quantity:    t.Quantity,
			AverageCost: t.AverageCost,
			LatestPrice: t.LatestPrice,
			PriceKnown:  t.PriceKnown,
			Realized:    t.Realized,
			Unrealized:  t.Unrealized,
			Total:       t.Total(),
		})
	}
	return out
}
