package quotes

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fxdesk/rfstrader/pkg/models"
)

// DefaultQuoteTTL bounds the life of a quote whose provider sent no
// explicit expiry time.
const DefaultQuoteTTL = 30 * time.Second

// StreamKey identifies one provider's stream for one request.
type StreamKey struct {
	QuoteReqID string
	Provider   string
}

// StreamRecord is the two independently-lived sides of one stream. Either
// side may be nil before its first update or after a one-sided cancel.
type StreamRecord struct {
	Key     StreamKey
	GroupID string
	Symbol  string
	Bid     *models.Quote
	Offer   *models.Quote
	Updated time.Time
}

// Registry holds the live quote state for every open stream. Staleness is
// evaluated lazily at read time; nothing is evicted on a timer.
type Registry struct {
	mu      sync.RWMutex
	streams map[StreamKey]*StreamRecord
	groups  map[string][]StreamKey // group id to member keys, insertion order
}

func NewRegistry() *Registry {
	return &Registry{
		streams: make(map[StreamKey]*StreamRecord),
		groups:  make(map[string][]StreamKey),
	}
}

// Register opens an empty stream record ahead of the first quote, binding
// the key to its request group.
func (r *Registry) Register(key StreamKey, groupID, symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streams[key]; ok {
		return
	}
	r.streams[key] = &StreamRecord{Key: key, GroupID: groupID, Symbol: symbol}
	r.groups[groupID] = append(r.groups[groupID], key)
}

// Upsert applies one quote message to its stream, touching only the side it
// carries. An unknown stream is created on the fly so quotes arriving ahead
// of registration are not dropped.
func (r *Registry) Upsert(q *models.Quote) {
	key := StreamKey{QuoteReqID: q.QuoteReqID, Provider: q.Provider}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.streams[key]
	if !ok {
		rec = &StreamRecord{Key: key, Symbol: q.Symbol}
		r.streams[key] = rec
		log.WithFields(log.Fields{
			"quoteReqID": q.QuoteReqID,
			"provider":   q.Provider,
		}).Warn("quote for unregistered stream, creating record")
	}
	switch q.Side {
	case models.SideBid:
		rec.Bid = q
	case models.SideOffer:
		rec.Offer = q
	default:
		log.WithField("side", q.Side).Warn("quote with unknown side dropped")
		return
	}
	rec.Updated = q.Received
}

// Get returns a copy of one stream record.
func (r *Registry) Get(key StreamKey) (StreamRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.streams[key]
	if !ok {
		return StreamRecord{}, false
	}
	return *rec, true
}

// ListByGroup returns copies of every stream in a request group.
func (r *Registry) ListByGroup(groupID string) []StreamRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := r.groups[groupID]
	out := make([]StreamRecord, 0, len(keys))
	for _, k := range keys {
		if rec, ok := r.streams[k]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// ListAll returns copies of every stream, ordered by request id then
// provider for stable display.
func (r *Registry) ListAll() []StreamRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StreamRecord, 0, len(r.streams))
	for _, rec := range r.streams {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.QuoteReqID != out[j].Key.QuoteReqID {
			return out[i].Key.QuoteReqID < out[j].Key.QuoteReqID
		}
		return out[i].Key.Provider < out[j].Key.Provider
	})
	return out
}

// Fresh reports whether a quote is still actionable at the given instant.
// A provider-supplied expiry is authoritative; otherwise the quote lives
// for DefaultQuoteTTL after receipt.
func Fresh(q *models.Quote, now time.Time) bool {
	if q == nil {
		return false
	}
	if !q.ValidUntil.IsZero() {
		return now.Before(q.ValidUntil)
	}
	return now.Sub(q.Received) < DefaultQuoteTTL
}

// GetBest scans a request group for the most favorable fresh quote on one
// side: highest bid when selling, lowest offer when buying. The first
// provider seen wins ties.
func (r *Registry) GetBest(groupID string, side models.QuoteSide, now time.Time) (*models.Quote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *models.Quote
	for _, k := range r.groups[groupID] {
		rec, ok := r.streams[k]
		if !ok {
			continue
		}
		var q *models.Quote
		if side == models.SideBid {
			q = rec.Bid
		} else {
			q = rec.Offer
		}
		if !Fresh(q, now) {
			continue
		}
		if best == nil {
			best = q
			continue
		}
		net, bestNet := q.NetPremium(), best.NetPremium()
		if side == models.SideBid && net.GreaterThan(bestNet) {
			best = q
		} else if side == models.SideOffer && net.LessThan(bestNet) {
			best = q
		}
	}
	if best == nil {
		return nil, false
	}
	cp := *best
	return &cp, true
}

// ApplyCancel removes one side of a stream, or both when side is empty.
// Cancelling a stream the registry never saw is a no-op.
func (r *Registry) ApplyCancel(key StreamKey, side models.QuoteSide) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.streams[key]
	if !ok {
		return
	}
	switch side {
	case models.SideBid:
		rec.Bid = nil
	case models.SideOffer:
		rec.Offer = nil
	default:
		rec.Bid = nil
		rec.Offer = nil
	}
}

// CancelAll drops every stream of a provider, used when the provider
// disappears from the venue's directory.
func (r *Registry) CancelAll(provider string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, rec := range r.streams {
		if key.Provider == provider {
			rec.Bid = nil
			rec.Offer = nil
			n++
		}
	}
	return n
}

// Drop removes a stream record entirely, used when its request group is
// torn down.
func (r *Registry) Drop(key StreamKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.streams[key]
	if !ok {
		return
	}
	delete(r.streams, key)
	if rec.GroupID != "" {
		keys := r.groups[rec.GroupID]
		for i, k := range keys {
			if k == key {
				r.groups[rec.GroupID] = append(keys[:i], keys[i+1:]...)
				break
			}
		}
	}
}
