package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

type OptionKind string

const (
	OptionCall OptionKind = "CALL"
	OptionPut  OptionKind = "PUT"
)

// LegPosition is relative to the structure's first leg and drives the
// sign convention the venue applies to the leg.
type LegPosition string

const (
	PositionSame    LegPosition = "SAME"
	PositionInverse LegPosition = "INVERSE"
)

type StructureKind string

const (
	StructureVanilla      StructureKind = "Vanilla"
	StructureCallSpread   StructureKind = "CallSpread"
	StructurePutSpread    StructureKind = "PutSpread"
	StructureRiskReversal StructureKind = "RiskReversal"
	StructureSeagull      StructureKind = "Seagull"
	StructureCollar       StructureKind = "Collar"
	StructureCustomSpread StructureKind = "CustomSpread"
)

// WireCode maps a structure kind to the venue's tag 9126 code. Unrecognized
// kinds fall back to the Vanilla code; the venue prices the legs it is given,
// so a wrong shape label degrades display only.
func (k StructureKind) WireCode() int {
	switch k {
	case StructureVanilla:
		return 1
	case StructureCallSpread:
		return 8
	case StructurePutSpread:
		return 9
	case StructureRiskReversal:
		return 5
	case StructureSeagull:
		return 10
	case StructureCollar:
		return 6
	case StructureCustomSpread:
		return 99
	default:
		return 1
	}
}

// OptionLeg is one leg of a multi-leg structure. Exactly one of Tenor or
// ExpiryDate must be set.
type OptionLeg struct {
	Direction        Direction
	Kind             OptionKind
	Strike           decimal.Decimal
	Tenor            string // e.g. "6M", "1Y"
	ExpiryDate       time.Time
	NotionalMM       decimal.Decimal // in millions
	NotionalCurrency string
	Cutoff           string // "NY", "TK", "LON"
	Position         LegPosition
	LegID            string // unique within the structure, e.g. "SL0"
}

func (l *OptionLeg) Validate() error {
	if !l.Strike.IsPositive() {
		return fmt.Errorf("leg %s: strike must be positive, got %s", l.LegID, l.Strike)
	}
	if !l.NotionalMM.IsPositive() {
		return fmt.Errorf("leg %s: notional must be positive, got %s", l.LegID, l.NotionalMM)
	}
	if l.Tenor == "" && l.ExpiryDate.IsZero() {
		return fmt.Errorf("leg %s: either tenor or expiry date is required", l.LegID)
	}
	if l.Kind != OptionCall && l.Kind != OptionPut {
		return fmt.Errorf("leg %s: unknown option kind %q", l.LegID, l.Kind)
	}
	return nil
}

// TradeStructure describes the full option structure a caller wants streamed.
// Leg order is significant: leg 0 defines the reference direction for legs
// marked INVERSE. Treated as immutable once handed to the encoder.
type TradeStructure struct {
	Underlying      string // 6-char pair symbol, e.g. "EURUSD"
	Kind            StructureKind
	PremiumCurrency string
	SpotReference   decimal.Decimal // optional; zero means not supplied
	Legs            []OptionLeg
}

func (t *TradeStructure) Validate() error {
	if len(t.Underlying) != 6 {
		return fmt.Errorf("underlying %q is not a 6-character pair symbol", t.Underlying)
	}
	if t.PremiumCurrency == "" {
		return fmt.Errorf("premium currency is required")
	}
	if t.SpotReference.IsNegative() {
		return fmt.Errorf("spot reference must not be negative, got %s", t.SpotReference)
	}
	if len(t.Legs) == 0 {
		return fmt.Errorf("structure has no legs")
	}
	seen := make(map[string]bool, len(t.Legs))
	for i := range t.Legs {
		leg := &t.Legs[i]
		if err := leg.Validate(); err != nil {
			return err
		}
		if seen[leg.LegID] {
			return fmt.Errorf("duplicate leg id %q", leg.LegID)
		}
		seen[leg.LegID] = true
	}
	return nil
}
