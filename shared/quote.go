package shared

// Quote represents a live market quote for a symbol. Fields the provider did
// not supply are nil.
type Quote struct {
	Symbol    string
	Last      *float64
	Close     *float64
	PrevClose *float64
	Bid       *float64
	Ask       *float64
}

// Mark returns the best available marking price for the quote, preferring the
// last traded price and falling back to the session close.
func (q *Quote) Mark() *float64 {
	if q.Last != nil {
		return q.Last
	}
	return q.Close
}

// LastOrMid returns the last traded price, falling back to the bid/ask
// midpoint when no trade price is available.
func (q *Quote) LastOrMid() *float64 {
	if q.Last != nil {
		return q.Last
	}
	if q.Bid != nil && q.Ask != nil {
		mid := (*q.Bid + *q.Ask) / 2
		return &mid
	}
	return nil
}

// RawPosition represents an unnormalized brokerage position.
type RawPosition struct {
	AccountID  string
	Symbol     string
	Quantity   int
	CostBasis  float64
	AssetType  string
	Underlying string
}
