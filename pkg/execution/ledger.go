package execution

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/fxdesk/rfstrader/pkg/models"
)

// Ledger is the in-memory blotter, keyed by client order id. Entries are
// created pending and settle to a terminal status exactly once; a report
// arriving after that is logged and ignored.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*models.TradeLedgerEntry
	order   []string // insertion order for display
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*models.TradeLedgerEntry)}
}

// Open records a just-submitted order.
func (l *Ledger) Open(e models.TradeLedgerEntry) {
	if e.Status == "" {
		e.Status = models.OrderStatusPending
	}
	if e.TradeTime.IsZero() {
		e.TradeTime = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[e.ClOrdID]; ok {
		log.WithField("clOrdID", e.ClOrdID).Warn("duplicate order id, keeping first entry")
		return
	}
	cp := e
	l.entries[e.ClOrdID] = &cp
	l.order = append(l.order, e.ClOrdID)
}

// Fill settles an order as filled.
func (l *Ledger) Fill(clOrdID, execID string, price decimal.Decimal) bool {
	return l.settle(clOrdID, func(e *models.TradeLedgerEntry) {
		e.Status = models.OrderStatusFilled
		e.ExecID = execID
		e.FillPrice = price
	})
}

// Reject settles an order as rejected with a human-readable reason.
func (l *Ledger) Reject(clOrdID, execID, reason string) bool {
	return l.settle(clOrdID, func(e *models.TradeLedgerEntry) {
		e.Status = models.OrderStatusRejected
		e.ExecID = execID
		e.RejectReason = reason
	})
}

func (l *Ledger) settle(clOrdID string, apply func(*models.TradeLedgerEntry)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[clOrdID]
	if !ok {
		log.WithField("clOrdID", clOrdID).Warn("execution report for unknown order")
		return false
	}
	if e.Status.Terminal() {
		log.WithFields(log.Fields{
			"clOrdID": clOrdID,
			"status":  e.Status,
		}).Warn("execution report for settled order ignored")
		return false
	}
	apply(e)
	return true
}

// Get returns a copy of one entry.
func (l *Ledger) Get(clOrdID string) (models.TradeLedgerEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[clOrdID]
	if !ok {
		return models.TradeLedgerEntry{}, false
	}
	return *e, true
}

// List returns copies of every entry in submission order.
func (l *Ledger) List() []models.TradeLedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.TradeLedgerEntry, 0, len(l.order))
	for _, id := range l.order {
		if e, ok := l.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}
