package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuoteSide string

const (
	SideBid   QuoteSide = "BID"
	SideOffer QuoteSide = "OFFER"
)

// LegPricing carries the per-leg price fields the provider streams back.
// Values are echoed verbatim into an order when the quote is hit or lifted.
type LegPricing struct {
	LegSymbol    string
	StrategyID   string // tag 7940, links back to the requested leg
	Volatility   decimal.Decimal
	Size         decimal.Decimal
	PremiumPrice decimal.Decimal
}

// Quote is one side of a provider's stream for a single request. Bid and
// offer arrive as independent messages and refresh independently.
type Quote struct {
	Provider   string // OnBehalfOfCompID of the quoting LP
	QuoteReqID string
	QuoteID    string
	Side       QuoteSide
	Symbol     string
	Legs       []LegPricing
	ValidUntil time.Time // zero when the provider sends no explicit expiry
	Received   time.Time
}

// NetPremium is the sum of leg premium prices, the number the caller
// compares across providers.
func (q *Quote) NetPremium() decimal.Decimal {
	net := decimal.Zero
	for i := range q.Legs {
		net = net.Add(q.Legs[i].PremiumPrice)
	}
	return net
}
