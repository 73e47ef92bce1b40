package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxdesk/rfstrader/pkg/models"
	"github.com/fxdesk/rfstrader/pkg/quotes"
)

// Typed gate failures. Callers branch on these to decide whether to
// re-request, wait for a refresh, or give up.
var (
	ErrNotLoggedOn     = errors.New("session is not logged on")
	ErrNoSuchStream    = errors.New("no stream for that request and provider")
	ErrSideUnavailable = errors.New("requested side is not quoted")
	ErrQuoteExpired    = errors.New("quote is no longer fresh")
)

// TryExecute checks every precondition for hitting or lifting a quote and
// returns the exact quote to trade on. Pure: it inspects state and never
// mutates it, so a passing check does not reserve the quote.
func TryExecute(loggedOn bool, reg *quotes.Registry, key quotes.StreamKey, side models.QuoteSide, now time.Time) (*models.Quote, error) {
	if !loggedOn {
		return nil, ErrNotLoggedOn
	}
	rec, ok := reg.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s from %s", ErrNoSuchStream, key.QuoteReqID, key.Provider)
	}
	var q *models.Quote
	if side == models.SideBid {
		q = rec.Bid
	} else {
		q = rec.Offer
	}
	if q == nil {
		return nil, fmt.Errorf("%w: %s side of %s", ErrSideUnavailable, side, key.QuoteReqID)
	}
	if !quotes.Fresh(q, now) {
		return nil, fmt.Errorf("%w: quote %s", ErrQuoteExpired, q.QuoteID)
	}
	cp := *q
	return &cp, nil
}
