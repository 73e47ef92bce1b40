package fix

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fxdesk/rfstrader/pkg/dates"
	"github.com/fxdesk/rfstrader/pkg/models"
)

// Builder produces raw outbound messages with complete control over field
// order. The venue mandates an exact sequence that differs from ascending
// tag order, which is why messages are assembled by hand rather than by a
// generic engine.
type Builder struct {
	beginString  string
	senderCompID string
	targetCompID string
}

func NewBuilder(beginString, senderCompID, targetCompID string) *Builder {
	return &Builder{
		beginString:  beginString,
		senderCompID: senderCompID,
		targetCompID: targetCompID,
	}
}

// QuoteRequestSpec carries everything a quote request (35=R) needs. The
// sequence number is caller-supplied; the builder never self-increments.
// TradeDate and PremiumDate override the computed tag 75/5020 values so one
// canonical pair can be shared across every provider in a group.
type QuoteRequestSpec struct {
	Trade       *models.TradeStructure
	Provider    string // DeliverToCompID of the target LP
	QuoteReqID  string
	GroupID     string
	SeqNum      int
	Now         time.Time
	Policy      dates.TradePolicy
	TradeDate   string // yyyymmdd, optional
	PremiumDate string // yyyymmdd, optional
}

// OrderSpec carries everything a multi-leg order (35=AB) needs. Identifying
// fields and per-leg pricing come from the quote being hit or lifted, not
// from the original request.
type OrderSpec struct {
	ClOrdID string
	Side    models.Direction
	Symbol  string
	Kind    models.StructureKind
	Quote   *models.Quote
	SeqNum  int
	Now     time.Time
}

// BuildQuoteRequest assembles the venue's exact quote-request layout. All
// leg data is validated and all dates resolved before any bytes are
// emitted; a bad leg fails the whole message.
func (b *Builder) BuildQuoteRequest(spec QuoteRequestSpec) (string, error) {
	trade := spec.Trade
	if err := trade.Validate(); err != nil {
		return "", fmt.Errorf("quote request: %w", err)
	}
	if spec.Provider == "" {
		return "", fmt.Errorf("quote request: provider is required")
	}

	type legDates struct{ expiry, delivery, premium time.Time }
	resolved := make([]legDates, len(trade.Legs))
	for i := range trade.Legs {
		leg := &trade.Legs[i]
		if !leg.ExpiryDate.IsZero() {
			exp, del, err := dates.ResolveExplicitExpiry(leg.ExpiryDate, trade.Underlying, spec.Policy)
			if err != nil {
				return "", fmt.Errorf("quote request leg %s: %w", leg.LegID, err)
			}
			// Premium date still follows the tenor-independent policy path.
			rd, err := dates.ComputeDates(spec.Now, trade.Underlying, "1D", trade.PremiumCurrency, spec.Policy)
			if err != nil {
				return "", fmt.Errorf("quote request leg %s: %w", leg.LegID, err)
			}
			resolved[i] = legDates{expiry: exp, delivery: del, premium: rd.PremiumDate}
			continue
		}
		rd, err := dates.ComputeDates(spec.Now, trade.Underlying, leg.Tenor, trade.PremiumCurrency, spec.Policy)
		if err != nil {
			return "", fmt.Errorf("quote request leg %s: %w", leg.LegID, err)
		}
		resolved[i] = legDates{expiry: rd.ExpiryDate, delivery: rd.DeliveryDate, premium: rd.PremiumDate}
	}

	tradeDate := spec.TradeDate
	if tradeDate == "" {
		tradeDate = dates.Ymd(spec.Now.UTC())
	}
	premiumDate := spec.PremiumDate
	if premiumDate == "" {
		premiumDate = dates.Ymd(resolved[0].premium)
	}

	var body strings.Builder
	add := func(tag int, value string) { addField(&body, tag, value) }

	// Session header, in body order.
	add(TagMsgType, MsgTypeQuoteRequest)
	add(TagMsgSeqNum, strconv.Itoa(spec.SeqNum))
	add(TagSenderCompID, b.senderCompID)
	add(TagSendingTime, spec.Now.UTC().Format(TimestampFormat))
	add(TagTargetCompID, b.targetCompID)
	add(TagDeliverToCompID, spec.Provider)

	structureCode := strconv.Itoa(trade.Kind.WireCode())

	// Body fields in the venue's mandated order.
	add(TagTradeDate, tradeDate)
	add(TagQuoteReqID, spec.QuoteReqID)
	add(TagPremDel, "S")
	add(TagPremiumCcy, trade.PremiumCurrency)
	add(TagHedgeTradeType, "1")
	add(TagStructure, structureCode)
	add(TagProductQuoteType, "2")
	add(TagBankGroupID, spec.GroupID)
	add(TagNoRelatedSym, "1")

	add(TagSymbol, trade.Underlying)
	add(TagStrategy, structureCode)
	add(TagQuoteType, "1")
	add(TagNoLegs, strconv.Itoa(len(trade.Legs)))

	for i := range trade.Legs {
		leg := &trade.Legs[i]
		add(TagLegSymbol, trade.Underlying)
		if leg.Kind == models.OptionCall {
			add(TagLegStrategyInd, "1")
		} else {
			add(TagLegStrategyInd, "2")
		}
		add(TagCutoff, cutoffCode(leg.Cutoff))
		if leg.Tenor != "" {
			add(TagTenor, leg.Tenor)
		}
		add(TagLegMaturityDate, dates.Ymd(resolved[i].expiry))
		add(TagDeliveryDate, dates.Ymd(resolved[i].delivery))
		add(TagPremiumDelivery, premiumDate)
		add(TagLegStrikePrice, leg.Strike.StringFixed(4))
		add(TagFXOptionStyle, "2")
		if i == 0 || leg.Position == models.PositionSame {
			add(TagPosition, "1")
		} else {
			add(TagPosition, "2")
		}
		add(TagPriceIndicator, "2")
		if trade.SpotReference.IsPositive() {
			add(TagLegSpotRate, trade.SpotReference.StringFixed(4))
		}
		add(TagLegCurrency, trade.PremiumCurrency)
		add(TagLegQty, leg.NotionalMM.String())
		add(TagLegStrategyID, leg.LegID)
		add(TagLegStrategyCcy, leg.NotionalCurrency)
	}

	return b.seal(body.String()), nil
}

// BuildOrder assembles a previously-quoted multi-leg order against a live
// quote. Per-leg pricing is taken from the quote, not from the request.
func (b *Builder) BuildOrder(spec OrderSpec) (string, error) {
	if spec.Quote == nil {
		return "", fmt.Errorf("order: quote is required")
	}
	if len(spec.Quote.Legs) == 0 {
		return "", fmt.Errorf("order: quote %s carries no leg pricing", spec.Quote.QuoteID)
	}
	if spec.ClOrdID == "" {
		return "", fmt.Errorf("order: client order id is required")
	}

	var body strings.Builder
	add := func(tag int, value string) { addField(&body, tag, value) }

	add(TagMsgType, MsgTypeNewOrderMultileg)
	add(TagMsgSeqNum, strconv.Itoa(spec.SeqNum))
	add(TagSenderCompID, b.senderCompID)
	add(TagSendingTime, spec.Now.UTC().Format(TimestampFormat))
	add(TagTargetCompID, b.targetCompID)
	if spec.Quote.Provider != "" {
		add(TagDeliverToCompID, spec.Quote.Provider)
	}

	add(TagClOrdID, spec.ClOrdID)
	add(TagOrdType, "D") // previously quoted
	if spec.Side == models.DirectionSell {
		add(TagSide, SideValueSell)
	} else {
		add(TagSide, SideValueBuy)
	}
	add(TagSymbol, spec.Symbol)
	add(TagTimeInForce, "3") // immediate or cancel
	add(TagTransactTime, spec.Now.UTC().Format(TimestampFormat))
	add(TagQuoteID, spec.Quote.QuoteID)
	if spec.Quote.QuoteReqID != "" {
		add(TagQuoteReqID, spec.Quote.QuoteReqID)
	}
	add(TagStructure, strconv.Itoa(spec.Kind.WireCode()))

	// Trader identification party group.
	add(TagNoPartyIDs, "1")
	add(TagPartyID, b.senderCompID)
	add(TagPartyIDSource, "D")
	add(TagPartyRole, "11")

	add(TagNoLegs, strconv.Itoa(len(spec.Quote.Legs)))
	for i := range spec.Quote.Legs {
		leg := &spec.Quote.Legs[i]
		sym := leg.LegSymbol
		if sym == "" {
			sym = spec.Symbol
		}
		add(TagLegSymbol, sym)
		if leg.StrategyID != "" {
			add(TagLegStrategyID, leg.StrategyID)
		}
		if !leg.Volatility.IsZero() {
			add(TagVolatility, leg.Volatility.String())
		}
		if !leg.Size.IsZero() {
			add(TagMQSize, leg.Size.String())
		}
		if !leg.PremiumPrice.IsZero() {
			add(TagLegPremPrice, leg.PremiumPrice.String())
		}
	}

	return b.seal(body.String()), nil
}

// BuildLogon assembles the logon (35=A) with credentials and the agreed
// heartbeat interval.
func (b *Builder) BuildLogon(seqNum int, now time.Time, username, password string, heartbeatSecs int, resetSeqNum bool) string {
	var body strings.Builder
	add := func(tag int, value string) { addField(&body, tag, value) }

	add(TagMsgType, MsgTypeLogon)
	add(TagMsgSeqNum, strconv.Itoa(seqNum))
	add(TagSenderCompID, b.senderCompID)
	add(TagSendingTime, now.UTC().Format(TimestampFormat))
	add(TagTargetCompID, b.targetCompID)
	add(TagEncryptMethod, "0")
	add(TagHeartBtInt, strconv.Itoa(heartbeatSecs))
	if resetSeqNum {
		add(TagResetSeqNumFlag, "Y")
	}
	add(TagUsername, username)
	add(TagPassword, password)

	return b.seal(body.String())
}

// BuildHeartbeat assembles a heartbeat (35=0), echoing the test request id
// when responding to a test request.
func (b *Builder) BuildHeartbeat(seqNum int, now time.Time, testReqID string) string {
	var body strings.Builder
	add := func(tag int, value string) { addField(&body, tag, value) }

	add(TagMsgType, MsgTypeHeartbeat)
	add(TagMsgSeqNum, strconv.Itoa(seqNum))
	add(TagSenderCompID, b.senderCompID)
	add(TagSendingTime, now.UTC().Format(TimestampFormat))
	add(TagTargetCompID, b.targetCompID)
	if testReqID != "" {
		add(TagTestReqID, testReqID)
	}

	return b.seal(body.String())
}

// BuildLogout assembles a logout (35=5).
func (b *Builder) BuildLogout(seqNum int, now time.Time, text string) string {
	var body strings.Builder
	add := func(tag int, value string) { addField(&body, tag, value) }

	add(TagMsgType, MsgTypeLogout)
	add(TagMsgSeqNum, strconv.Itoa(seqNum))
	add(TagSenderCompID, b.senderCompID)
	add(TagSendingTime, now.UTC().Format(TimestampFormat))
	add(TagTargetCompID, b.targetCompID)
	if text != "" {
		add(TagText, text)
	}

	return b.seal(body.String())
}

func addField(sb *strings.Builder, tag int, value string) {
	sb.WriteString(strconv.Itoa(tag))
	sb.WriteByte('=')
	sb.WriteString(value)
	sb.WriteString(SOH)
}

// seal prepends the protocol-version and body-length fields and appends the
// checksum trailer. Body length is the byte count between the length field
// and the checksum field.
func (b *Builder) seal(body string) string {
	var msg strings.Builder
	msg.WriteString("8=")
	msg.WriteString(b.beginString)
	msg.WriteString(SOH)
	msg.WriteString("9=")
	msg.WriteString(strconv.Itoa(len(body)))
	msg.WriteString(SOH)
	msg.WriteString(body)

	checksum := Checksum(msg.String())
	msg.WriteString("10=")
	msg.WriteString(checksum)
	msg.WriteString(SOH)
	return msg.String()
}
