package fix

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxdesk/rfstrader/pkg/dates"
	"github.com/fxdesk/rfstrader/pkg/models"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func callSpread() *models.TradeStructure {
	return &models.TradeStructure{
		Underlying:      "EURUSD",
		Kind:            models.StructureCallSpread,
		PremiumCurrency: "USD",
		SpotReference:   dec("1.0850"),
		Legs: []models.OptionLeg{
			{
				Direction:        models.DirectionBuy,
				Kind:             models.OptionCall,
				Strike:           dec("1.10"),
				Tenor:            "1M",
				NotionalMM:       dec("10"),
				NotionalCurrency: "EUR",
				Cutoff:           "NY",
				Position:         models.PositionSame,
				LegID:            "SL0",
			},
			{
				Direction:        models.DirectionSell,
				Kind:             models.OptionCall,
				Strike:           dec("1.15"),
				Tenor:            "1M",
				NotionalMM:       dec("10"),
				NotionalCurrency: "EUR",
				Cutoff:           "NY",
				Position:         models.PositionInverse,
				LegID:            "SL1",
			},
		},
	}
}

func quoteRequestSpec(trade *models.TradeStructure) QuoteRequestSpec {
	return QuoteRequestSpec{
		Trade:      trade,
		Provider:   "LPBANK1",
		QuoteReqID: "FENICS.DESK1.QABC123",
		GroupID:    "3-REQ1740900000",
		SeqNum:     7,
		Now:        time.Date(2026, time.March, 2, 14, 30, 0, 0, time.UTC),
		Policy:     dates.DefaultPolicy(),
	}
}

func TestBuildQuoteRequestRoundTrip(t *testing.T) {
	b := NewBuilder("FIX.4.4", "DESK1", "FENICS")
	raw, err := b.BuildQuoteRequest(quoteRequestSpec(callSpread()))
	require.NoError(t, err)

	require.NoError(t, Verify(raw))

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeQuoteRequest, msg.MsgType())
	assert.Equal(t, "7", msg.Get(TagMsgSeqNum))
	assert.Equal(t, "DESK1", msg.Get(TagSenderCompID))
	assert.Equal(t, "FENICS", msg.Get(TagTargetCompID))
	assert.Equal(t, "LPBANK1", msg.Get(TagDeliverToCompID))
	assert.Equal(t, "FENICS.DESK1.QABC123", msg.Get(TagQuoteReqID))
	assert.Equal(t, "3-REQ1740900000", msg.Get(TagBankGroupID))
	assert.Equal(t, "8", msg.Get(TagStructure), "call spread wire code")
	assert.Equal(t, "20260302", msg.Get(TagTradeDate))

	legs := msg.Legs()
	require.Len(t, legs, 2)
	assert.Equal(t, "1.1000", legs[0].Get(TagLegStrikePrice))
	assert.Equal(t, "1.1500", legs[1].Get(TagLegStrikePrice))
	assert.Equal(t, "EURUSD", legs[0].Get(TagLegSymbol))
	assert.Equal(t, "SL0", legs[0].Get(TagLegStrategyID))
	assert.Equal(t, "SL1", legs[1].Get(TagLegStrategyID))
	assert.Equal(t, "EUR", legs[0].Get(TagLegStrategyCcy))
	assert.Equal(t, "10", legs[0].Get(TagLegQty))
	assert.Equal(t, "1", legs[0].Get(TagPosition))
	assert.Equal(t, "2", legs[1].Get(TagPosition), "second inverse leg flips position")

	// 1M from 2026-03-02: expiry Apr 2, delivery Apr 8 across Easter.
	assert.Equal(t, "20260402", legs[0].Get(TagLegMaturityDate))
	assert.Equal(t, "20260408", legs[0].Get(TagDeliveryDate))
}

func TestBuildQuoteRequestFieldOrder(t *testing.T) {
	b := NewBuilder("FIX.4.4", "DESK1", "FENICS")
	raw, err := b.BuildQuoteRequest(quoteRequestSpec(callSpread()))
	require.NoError(t, err)

	pos := func(field string) int {
		i := strings.Index(raw, SOH+field+"=")
		require.GreaterOrEqual(t, i, 0, "missing field %s", field)
		return i
	}

	assert.True(t, strings.HasPrefix(raw, "8=FIX.4.4"+SOH+"9="))

	// Header then body in the mandated, non-ascending order.
	order := []string{"35", "34", "49", "52", "56", "128", "75", "131", "5475", "5830", "9016", "9126", "9943", "8051", "146", "55", "6258", "537", "555", "600"}
	for i := 1; i < len(order); i++ {
		assert.Less(t, pos(order[i-1]), pos(order[i]),
			"field %s must precede %s", order[i-1], order[i])
	}

	// Per-leg order within the first leg group.
	legOrder := []string{"600", "6714", "9125", "6215", "611", "743", "5020", "612", "9019", "6351", "9904", "5235", "556", "687", "7940", "9034"}
	for i := 1; i < len(legOrder); i++ {
		assert.Less(t, pos(legOrder[i-1]), pos(legOrder[i]),
			"leg field %s must precede %s", legOrder[i-1], legOrder[i])
	}

	assert.True(t, strings.HasSuffix(raw, SOH), "message ends with the delimiter")
	assert.Contains(t, raw, SOH+"10=")
}

func TestBuildQuoteRequestOmitsOptionalFields(t *testing.T) {
	trade := callSpread()
	trade.SpotReference = decimal.Zero
	b := NewBuilder("FIX.4.4", "DESK1", "FENICS")
	raw, err := b.BuildQuoteRequest(quoteRequestSpec(trade))
	require.NoError(t, err)
	assert.NotContains(t, raw, SOH+"5235=", "no spot rate when none supplied")
}

func TestBuildQuoteRequestCanonicalDateOverrides(t *testing.T) {
	spec := quoteRequestSpec(callSpread())
	spec.TradeDate = "20260301"
	spec.PremiumDate = "20260305"
	b := NewBuilder("FIX.4.4", "DESK1", "FENICS")
	raw, err := b.BuildQuoteRequest(spec)
	require.NoError(t, err)

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "20260301", msg.Get(TagTradeDate))
	assert.Equal(t, "20260305", msg.Legs()[0].Get(TagPremiumDelivery))
}

func TestBuildQuoteRequestFailsBeforeEncoding(t *testing.T) {
	b := NewBuilder("FIX.4.4", "DESK1", "FENICS")

	bad := callSpread()
	bad.Legs[1].NotionalMM = decimal.Zero
	raw, err := b.BuildQuoteRequest(quoteRequestSpec(bad))
	assert.Error(t, err)
	assert.Empty(t, raw)

	badTenor := callSpread()
	badTenor.Legs[0].Tenor = "1X"
	raw, err = b.BuildQuoteRequest(quoteRequestSpec(badTenor))
	assert.Error(t, err)
	assert.Empty(t, raw)

	spec := quoteRequestSpec(callSpread())
	spec.Provider = ""
	raw, err = b.BuildQuoteRequest(spec)
	assert.Error(t, err)
	assert.Empty(t, raw)
}

func TestBuildOrderEmbedsQuotePricing(t *testing.T) {
	b := NewBuilder("FIX.4.4", "DESK1", "FENICS")
	quote := &models.Quote{
		Provider:   "LPBANK1",
		QuoteReqID: "FENICS.DESK1.QABC123",
		QuoteID:    "LP1-Q-889",
		Side:       models.SideOffer,
		Symbol:     "EURUSD",
		Legs: []models.LegPricing{
			{LegSymbol: "EURUSD", StrategyID: "SL0", Volatility: dec("7.25"), Size: dec("10"), PremiumPrice: dec("0.00415")},
			{LegSymbol: "EURUSD", StrategyID: "SL1", Volatility: dec("6.9"), Size: dec("10"), PremiumPrice: dec("-0.0019")},
		},
	}

	raw, err := b.BuildOrder(OrderSpec{
		ClOrdID: "ORD42",
		Side:    models.DirectionBuy,
		Symbol:  "EURUSD",
		Kind:    models.StructureCallSpread,
		Quote:   quote,
		SeqNum:  9,
		Now:     time.Date(2026, time.March, 2, 14, 31, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, Verify(raw))

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeNewOrderMultileg, msg.MsgType())
	assert.Equal(t, "ORD42", msg.Get(TagClOrdID))
	assert.Equal(t, "LP1-Q-889", msg.Get(TagQuoteID))
	assert.Equal(t, "FENICS.DESK1.QABC123", msg.Get(TagQuoteReqID))
	assert.Equal(t, SideValueBuy, msg.Get(TagSide))
	assert.Equal(t, "D", msg.Get(TagOrdType))
	assert.Equal(t, "3", msg.Get(TagTimeInForce))
	assert.Equal(t, "DESK1", msg.Get(TagPartyID))

	legs := msg.Legs()
	require.Len(t, legs, 2)
	assert.Equal(t, "SL0", legs[0].Get(TagLegStrategyID))
	assert.Equal(t, "7.25", legs[0].Get(TagVolatility))
	assert.Equal(t, "10", legs[0].Get(TagMQSize))
	assert.Equal(t, "0.00415", legs[0].Get(TagLegPremPrice))
	assert.Equal(t, "-0.0019", legs[1].Get(TagLegPremPrice))
}

func TestBuildOrderValidation(t *testing.T) {
	b := NewBuilder("FIX.4.4", "DESK1", "FENICS")

	_, err := b.BuildOrder(OrderSpec{ClOrdID: "ORD1"})
	assert.Error(t, err)

	_, err = b.BuildOrder(OrderSpec{
		ClOrdID: "ORD1",
		Quote:   &models.Quote{QuoteID: "Q1"},
	})
	assert.Error(t, err, "a quote without leg pricing cannot be traded on")

	_, err = b.BuildOrder(OrderSpec{
		Quote: &models.Quote{QuoteID: "Q1", Legs: []models.LegPricing{{}}},
	})
	assert.Error(t, err, "client order id is required")
}

func TestBuildLogon(t *testing.T) {
	b := NewBuilder("FIX.4.4", "DESK1", "FENICS")
	raw := b.BuildLogon(1, time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC), "user", "pass", 10, true)
	require.NoError(t, Verify(raw))

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeLogon, msg.MsgType())
	assert.Equal(t, "0", msg.Get(TagEncryptMethod))
	assert.Equal(t, "10", msg.Get(TagHeartBtInt))
	assert.Equal(t, "Y", msg.Get(TagResetSeqNumFlag))
	assert.Equal(t, "user", msg.Get(TagUsername))
	assert.Equal(t, "pass", msg.Get(TagPassword))
}

func TestChecksumAndFraming(t *testing.T) {
	b := NewBuilder("FIX.4.4", "DESK1", "FENICS")
	raw, err := b.BuildQuoteRequest(quoteRequestSpec(callSpread()))
	require.NoError(t, err)

	ckIdx := strings.LastIndex(raw, SOH+"10=")
	require.GreaterOrEqual(t, ckIdx, 0)
	embedded := strings.TrimSuffix(raw[ckIdx+4:], SOH)
	assert.Len(t, embedded, 3, "checksum is fixed three digits")
	assert.Equal(t, Checksum(raw[:ckIdx+1]), embedded)

	// Corrupting any byte must fail verification.
	corrupted := strings.Replace(raw, "EURUSD", "EURUSX", 1)
	assert.Error(t, Verify(corrupted))
}

func TestVerifyRejectsBadFraming(t *testing.T) {
	assert.Error(t, Verify("35=R"+SOH))
	assert.Error(t, Verify("8=FIX.4.4"+SOH+"9=4"+SOH+"35=R"+SOH+"10=000"+SOH))
}

func TestCutoffCodes(t *testing.T) {
	assert.Equal(t, "1", cutoffCode("NY"))
	assert.Equal(t, "2", cutoffCode("TK"))
	assert.Equal(t, "157", cutoffCode("LON"))
	assert.Equal(t, "1", cutoffCode(""), "unknown centers default to the New York cut")
}
