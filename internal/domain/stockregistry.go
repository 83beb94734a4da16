package domain

import "sort"

// stockRecord holds the registry's view of one listed ticker.
type stockRecord struct {
	issuerID      string
	pricePerShare float64
	totalShares   float64
}

// StockRegistry tracks price-per-share and total issued shares per
// ticker. It is the explicit shared handle that replaces a
// process-wide exchange singleton: every component needing share
// price or share count lookups is handed the same registry at
// construction time.
type StockRegistry struct {
	stocks map[string]*stockRecord
}

// NewStockRegistry creates an empty StockRegistry.
func NewStockRegistry() *StockRegistry {
	return &StockRegistry{stocks: make(map[string]*stockRecord)}
}

// AddStock lists a ticker with its issuer, initial price per share
// and total issued shares. Re-listing an existing ticker is an
// InvariantError.
func (r *StockRegistry) AddStock(ticker, issuerID string, pricePerShare, totalShares float64) error {
	if _, ok := r.stocks[ticker]; ok {
		return &InvariantError{Message: "ticker already listed: " + ticker}
	}
	r.stocks[ticker] = &stockRecord{
		issuerID:      issuerID,
		pricePerShare: pricePerShare,
		totalShares:   totalShares,
	}
	return nil
}

// IssuerID returns the issuer of ticker.
func (r *StockRegistry) IssuerID(ticker string) (string, error) {
	rec, ok := r.stocks[ticker]
	if !ok {
		return "", ErrUnknownTicker
	}
	return rec.issuerID, nil
}

// PricePerShare returns the current price per share of ticker.
func (r *StockRegistry) PricePerShare(ticker string) (float64, error) {
	rec, ok := r.stocks[ticker]
	if !ok {
		return 0, ErrUnknownTicker
	}
	return rec.pricePerShare, nil
}

// SetPricePerShare updates the price per share of ticker.
func (r *StockRegistry) SetPricePerShare(ticker string, price float64) error {
	rec, ok := r.stocks[ticker]
	if !ok {
		return ErrUnknownTicker
	}
	rec.pricePerShare = price
	return nil
}

// TotalShares returns the total issued shares of ticker. This is the
// authoritative figure share conservation is checked against.
func (r *StockRegistry) TotalShares(ticker string) (float64, error) {
	rec, ok := r.stocks[ticker]
	if !ok {
		return 0, ErrUnknownTicker
	}
	return rec.totalShares, nil
}

// TickerIssuedBy returns the ticker listed under issuerID. Tickers
// are scanned in ascending order, so the answer is deterministic even
// if an issuer ever lists more than one.
func (r *StockRegistry) TickerIssuedBy(issuerID string) (string, error) {
	for _, t := range r.Tickers() {
		if r.stocks[t].issuerID == issuerID {
			return t, nil
		}
	}
	return "", ErrUnknownTicker
}

// Tickers returns the listed tickers in ascending order.
func (r *StockRegistry) Tickers() []string {
	out := make([]string, 0, len(r.stocks))
	for t := range r.stocks {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
