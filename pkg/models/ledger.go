package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected
}

// TradeLedgerEntry is one blotter row per submitted order. Created when the
// order is sent and mutated exactly once, when its execution report arrives.
type TradeLedgerEntry struct {
	TradeTime    time.Time
	ClOrdID      string
	Counterparty string
	Side         Direction
	Underlying   string
	Kind         StructureKind
	LegCount     int
	NetPremium   decimal.Decimal
	Status       OrderStatus
	RejectReason string
	ExecID       string
	FillPrice    decimal.Decimal // zero unless reported
}
