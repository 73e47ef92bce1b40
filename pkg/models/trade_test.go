package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func validLeg(id string) OptionLeg {
	return OptionLeg{
		Direction:        DirectionBuy,
		Kind:             OptionCall,
		Strike:           dec("1.10"),
		Tenor:            "6M",
		NotionalMM:       dec("25"),
		NotionalCurrency: "EUR",
		Cutoff:           "NY",
		Position:         PositionSame,
		LegID:            id,
	}
}

func TestStructureKindWireCodes(t *testing.T) {
	cases := map[StructureKind]int{
		StructureVanilla:      1,
		StructureCallSpread:   8,
		StructurePutSpread:    9,
		StructureRiskReversal: 5,
		StructureSeagull:      10,
		StructureCollar:       6,
		StructureCustomSpread: 99,
	}
	for kind, code := range cases {
		assert.Equal(t, code, kind.WireCode(), "kind %s", kind)
	}

	assert.Equal(t, 1, StructureKind("Butterfly").WireCode(), "unrecognized kinds fall back to vanilla")
	assert.Equal(t, 1, StructureKind("").WireCode())
}

func TestOptionLegValidate(t *testing.T) {
	leg := validLeg("SL0")
	require.NoError(t, leg.Validate())

	zeroStrike := validLeg("SL0")
	zeroStrike.Strike = decimal.Zero
	assert.Error(t, zeroStrike.Validate())

	negNotional := validLeg("SL0")
	negNotional.NotionalMM = dec("-5")
	assert.Error(t, negNotional.Validate())

	noDate := validLeg("SL0")
	noDate.Tenor = ""
	assert.Error(t, noDate.Validate())

	explicitDate := validLeg("SL0")
	explicitDate.Tenor = ""
	explicitDate.ExpiryDate = time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, explicitDate.Validate(), "an explicit expiry substitutes for the tenor")

	badKind := validLeg("SL0")
	badKind.Kind = OptionKind("DIGITAL")
	assert.Error(t, badKind.Validate())
}

func TestTradeStructureValidate(t *testing.T) {
	trade := TradeStructure{
		Underlying:      "EURUSD",
		Kind:            StructureCallSpread,
		PremiumCurrency: "USD",
		Legs:            []OptionLeg{validLeg("SL0"), validLeg("SL1")},
	}
	require.NoError(t, trade.Validate())

	badPair := trade
	badPair.Underlying = "EUR"
	assert.Error(t, badPair.Validate())

	noPremCcy := trade
	noPremCcy.PremiumCurrency = ""
	assert.Error(t, noPremCcy.Validate())

	noLegs := trade
	noLegs.Legs = nil
	assert.Error(t, noLegs.Validate())

	dupIDs := trade
	dupIDs.Legs = []OptionLeg{validLeg("SL0"), validLeg("SL0")}
	assert.Error(t, dupIDs.Validate())

	negSpot := trade
	negSpot.SpotReference = dec("-1")
	assert.Error(t, negSpot.Validate())
}

func TestQuoteNetPremium(t *testing.T) {
	q := Quote{
		Legs: []LegPricing{
			{PremiumPrice: dec("0.00415")},
			{PremiumPrice: dec("-0.0019")},
		},
	}
	assert.True(t, q.NetPremium().Equal(dec("0.00225")))

	empty := Quote{}
	assert.True(t, empty.NetPremium().IsZero())
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusPending.Terminal())
	assert.True(t, OrderStatusFilled.Terminal())
	assert.True(t, OrderStatusRejected.Terminal())
}
