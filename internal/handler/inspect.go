package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/clearsim/internal/book"
	"github.com/efreitasn/clearsim/internal/clearing"
	"github.com/efreitasn/clearsim/internal/domain"
	"github.com/efreitasn/clearsim/internal/market"
)

// instrumentSource is implemented by markets whose instruments can be
// inspected by string key.
type instrumentSource interface {
	market.Market
	InstrumentKeys() []string
	InstrumentByKey(key string) (*book.Instrument, bool)
}

// InspectHandler serves the read-only inspection endpoints.
type InspectHandler struct {
	ch       *clearing.ClearingHouse
	registry *domain.StockRegistry
}

// NewInspectHandler creates an InspectHandler.
func NewInspectHandler(ch *clearing.ClearingHouse, registry *domain.StockRegistry) *InspectHandler {
	return &InspectHandler{ch: ch, registry: registry}
}

// ListMarkets handles GET /markets.
func (h *InspectHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0)
	for _, m := range h.ch.Markets() {
		names = append(names, m.Name())
	}
	WriteJSON(w, http.StatusOK, map[string]any{"markets": names})
}

// ListInstruments handles GET /markets/{market}/instruments.
func (h *InspectHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	src, ok := h.source(chi.URLParam(r, "market"))
	if !ok {
		WriteError(w, http.StatusNotFound, "market_not_found", "no inspectable market with that name")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"market":      src.Name(),
		"instruments": src.InstrumentKeys(),
	})
}

// quoteResponse is one order in the book response.
type quoteResponse struct {
	Party    string  `json:"party"`
	Price    float64 `json:"price"`
	OpenSize float64 `json:"open_size"`
}

// GetBook handles GET /markets/{market}/instruments/{key}/book.
func (h *InspectHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	ins, ok := h.instrument(r)
	if !ok {
		WriteError(w, http.StatusNotFound, "instrument_not_found", "no such market or instrument")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"instrument": ins.Key(),
		"bids":       quotes(ins.BidOrders()),
		"asks":       quotes(ins.AskOrders()),
	})
}

// historyRecordResponse is one trade record in the history response.
type historyRecordResponse struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// GetHistory handles GET /markets/{market}/instruments/{key}/history.
func (h *InspectHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ins, ok := h.instrument(r)
	if !ok {
		WriteError(w, http.StatusNotFound, "instrument_not_found", "no such market or instrument")
		return
	}
	records := ins.History().Records()
	out := make([]historyRecordResponse, len(records))
	for i, rec := range records {
		out[i] = historyRecordResponse{Price: rec.Price, Volume: rec.Volume}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"instrument":             ins.Key(),
		"records":                out,
		"weighted_average_price": ins.History().WeightedAveragePrice(),
		"total_volume":           ins.History().TotalVolume(),
	})
}

// ListParticipants handles GET /participants.
func (h *InspectHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	roles := make(map[string][]string, len(clearing.Roles))
	for _, role := range clearing.Roles {
		ids := make([]string, 0)
		for _, p := range h.ch.MembersOf(role) {
			ids = append(ids, p.ID())
		}
		roles[string(role)] = ids
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"total": h.ch.ParticipantCount(),
		"roles": roles,
	})
}

// stockResponse is one listed ticker in the stocks response.
type stockResponse struct {
	Ticker        string  `json:"ticker"`
	PricePerShare float64 `json:"price_per_share"`
	TotalShares   float64 `json:"total_shares"`
}

// ListStocks handles GET /stocks.
func (h *InspectHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	out := make([]stockResponse, 0)
	for _, ticker := range h.registry.Tickers() {
		pps, _ := h.registry.PricePerShare(ticker)
		total, _ := h.registry.TotalShares(ticker)
		out = append(out, stockResponse{Ticker: ticker, PricePerShare: pps, TotalShares: total})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"stocks": out})
}

func (h *InspectHandler) source(name string) (instrumentSource, bool) {
	for _, m := range h.ch.Markets() {
		if m.Name() != name {
			continue
		}
		src, ok := m.(instrumentSource)
		return src, ok
	}
	return nil, false
}

func (h *InspectHandler) instrument(r *http.Request) (*book.Instrument, bool) {
	src, ok := h.source(chi.URLParam(r, "market"))
	if !ok {
		return nil, false
	}
	return src.InstrumentByKey(chi.URLParam(r, "key"))
}

func quotes(orders []*book.Order) []quoteResponse {
	out := make([]quoteResponse, len(orders))
	for i, o := range orders {
		out[i] = quoteResponse{Party: o.Party, Price: o.Price, OpenSize: o.OpenSize()}
	}
	return out
}
