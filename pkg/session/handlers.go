package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/fxdesk/rfstrader/pkg/events"
	"github.com/fxdesk/rfstrader/pkg/fix"
	"github.com/fxdesk/rfstrader/pkg/models"
	"github.com/fxdesk/rfstrader/pkg/quotes"
)

// quoteStatusText decodes tag 297 on quote status reports.
var quoteStatusText = map[int]string{
	0:  "accepted",
	1:  "canceled for symbol",
	4:  "canceled all",
	5:  "rejected",
	7:  "expired",
	17: "canceled",
	19: "pending end trade",
}

// HandleInbound verifies, parses and dispatches one framed inbound message.
// Runs on the transport's reader goroutine; registry and ledger updates
// happen here, everything else observes them through the event bus.
func (c *Coordinator) HandleInbound(raw string) {
	if err := fix.Verify(raw); err != nil {
		log.WithError(err).Warn("inbound message failed framing check")
		return
	}
	msg, err := fix.Parse(raw)
	if err != nil {
		log.WithError(err).Warn("inbound message failed to parse")
		return
	}

	switch msg.MsgType() {
	case fix.MsgTypeLogon:
		c.onLogon(msg)
	case fix.MsgTypeLogout:
		c.onLogout(msg)
	case fix.MsgTypeHeartbeat:
		log.Debug("heartbeat received")
	case fix.MsgTypeTestRequest:
		c.onTestRequest(msg)
	case fix.MsgTypeQuote:
		c.onQuote(msg)
	case fix.MsgTypeQuoteCancel:
		c.onQuoteCancel(msg)
	case fix.MsgTypeQuoteStatusReport:
		c.onQuoteStatus(msg)
	case fix.MsgTypeQuoteRequestReject:
		c.onQuoteRequestReject(msg)
	case fix.MsgTypeExecutionReport:
		c.onExecutionReport(msg)
	case fix.MsgTypeSessionReject:
		c.onSessionReject(msg)
	case fix.MsgTypeBusinessReject:
		c.onBusinessReject(msg)
	case fix.MsgTypeStaticData:
		c.onStaticData(raw)
	default:
		log.WithField("msgType", msg.MsgType()).Debug("unhandled message type")
	}
}

func (c *Coordinator) onLogon(msg *fix.Message) {
	c.mu.Lock()
	c.loggedOn = true
	c.state = StateLoggedOn
	c.mu.Unlock()

	log.WithField("sender", msg.Get(fix.TagSenderCompID)).Info("logged on")
	c.bus.Publish(events.TopicLogon, events.LogonEvent{
		Session: c.opts.SenderCompID,
		Time:    c.clock(),
	})
}

func (c *Coordinator) onLogout(msg *fix.Message) {
	reason := msg.Get(fix.TagText)
	c.mu.Lock()
	c.loggedOn = false
	c.state = StateDisconnected
	c.mu.Unlock()

	log.WithField("reason", reason).Info("logged out by venue")
	c.bus.Publish(events.TopicLogout, events.LogoutEvent{
		Session: c.opts.SenderCompID,
		Reason:  reason,
		Time:    c.clock(),
	})
}

func (c *Coordinator) onTestRequest(msg *fix.Message) {
	testReqID := msg.Get(fix.TagTestReqID)
	now := c.clock()
	err := c.transmit(true, func(seq int) (string, error) {
		return c.builder.BuildHeartbeat(seq, now, testReqID), nil
	})
	if err != nil {
		log.WithError(err).Warn("test request response failed")
	}
}

// onQuote cracks one quote (35=S) into its side's slot of the stream
// record. Bid and offer are independent messages; this update never
// touches the other side.
func (c *Coordinator) onQuote(msg *fix.Message) {
	side := models.SideOffer
	if msg.Get(fix.TagSide) == fix.SideValueBuy {
		side = models.SideBid
	}

	q := &models.Quote{
		Provider:   msg.Get(fix.TagOnBehalfOfCompID),
		QuoteReqID: msg.Get(fix.TagQuoteReqID),
		QuoteID:    msg.Get(fix.TagQuoteID),
		Side:       side,
		Symbol:     msg.Get(fix.TagSymbol),
		Received:   c.clock(),
	}
	if v := msg.Get(fix.TagValidUntilTime); v != "" {
		if t, err := time.Parse(fix.TimestampFormat, v); err == nil {
			q.ValidUntil = t
		} else {
			log.WithField("validUntil", v).Warn("unparsable quote expiry, using default ttl")
		}
	}
	for _, leg := range msg.Legs() {
		lp := models.LegPricing{
			LegSymbol:  leg.Get(fix.TagLegSymbol),
			StrategyID: leg.Get(fix.TagLegStrategyID),
		}
		if d, ok := leg.GetDecimal(fix.TagVolatility); ok {
			lp.Volatility = d
		}
		if d, ok := leg.GetDecimal(fix.TagMQSize); ok {
			lp.Size = d
		}
		if d, ok := leg.GetDecimal(fix.TagLegPremPrice); ok {
			lp.PremiumPrice = d
		}
		q.Legs = append(q.Legs, lp)
	}

	c.registry.Upsert(q)
	log.WithFields(log.Fields{
		"provider":   q.Provider,
		"quoteReqID": q.QuoteReqID,
		"side":       q.Side,
		"premium":    q.NetPremium(),
	}).Debug("quote updated")
	c.bus.Publish(events.TopicQuote, events.QuoteEvent{Quote: q})
}

// onQuoteCancel clears the side the cancel's quote id names, or logs an
// awaiting-replacement notice when the id format identifies neither side.
func (c *Coordinator) onQuoteCancel(msg *fix.Message) {
	key := quotes.StreamKey{
		QuoteReqID: msg.Get(fix.TagQuoteReqID),
		Provider:   msg.Get(fix.TagOnBehalfOfCompID),
	}
	side := quotes.InferCancelSide(msg.Get(fix.TagQuoteID))
	if side == "" {
		log.WithFields(log.Fields{
			"quoteReqID": key.QuoteReqID,
			"provider":   key.Provider,
			"quoteID":    msg.Get(fix.TagQuoteID),
		}).Info("cancel with unrecognized side, awaiting replacement quote")
	} else {
		c.registry.ApplyCancel(key, side)
	}
	c.bus.Publish(events.TopicQuoteCancel, events.QuoteCancelEvent{
		QuoteReqID: key.QuoteReqID,
		Provider:   key.Provider,
		Side:       side,
	})
}

func (c *Coordinator) onQuoteStatus(msg *fix.Message) {
	fields := log.Fields{
		"quoteReqID": msg.Get(fix.TagQuoteReqID),
	}
	if code, ok := msg.GetInt(fix.TagQuoteStatus); ok {
		fields["status"] = code
		if text, known := quoteStatusText[code]; known {
			fields["statusText"] = text
		}
		// Expiry or cancellation of the whole stream tears both sides down.
		if code == 7 || code == 4 || code == 17 {
			c.registry.ApplyCancel(quotes.StreamKey{
				QuoteReqID: msg.Get(fix.TagQuoteReqID),
				Provider:   msg.Get(fix.TagOnBehalfOfCompID),
			}, "")
		}
	}
	if text := msg.Get(fix.TagText); text != "" {
		fields["text"] = text
	}
	log.WithFields(fields).Info("quote status report")
}

func (c *Coordinator) onQuoteRequestReject(msg *fix.Message) {
	reason := ""
	if code, ok := msg.GetInt(fix.TagQuoteRequestRejectReason); ok {
		reason = describeReason(quoteRequestRejectReasons, code)
	}
	key := quotes.StreamKey{
		QuoteReqID: msg.Get(fix.TagQuoteReqID),
		Provider:   msg.Get(fix.TagOnBehalfOfCompID),
	}
	c.registry.ApplyCancel(key, "")

	log.WithFields(log.Fields{
		"quoteReqID": key.QuoteReqID,
		"provider":   key.Provider,
		"reason":     reason,
		"text":       msg.Get(fix.TagText),
	}).Warn("quote request rejected")
	c.bus.Publish(events.TopicReject, events.RejectEvent{
		MsgType:    fix.MsgTypeQuoteRequestReject,
		RefMsgType: fix.MsgTypeQuoteRequest,
		Reason:     reason,
		Text:       msg.Get(fix.TagText),
	})
}

func (c *Coordinator) onExecutionReport(msg *fix.Message) {
	clOrdID := msg.Get(fix.TagClOrdID)
	execID := msg.Get(fix.TagExecID)
	status := msg.Get(fix.TagOrdStatus)

	switch status {
	case fix.OrdStatusFilled:
		price := decimal.Zero
		if d, ok := msg.GetDecimal(fix.TagAvgPx); ok {
			price = d
		}
		c.ledger.Fill(clOrdID, execID, price)
		log.WithFields(log.Fields{
			"clOrdID": clOrdID,
			"execID":  execID,
			"price":   price,
		}).Info("order filled")
		c.bus.Publish(events.TopicExecution, events.ExecutionEvent{
			ClOrdID:   clOrdID,
			ExecID:    execID,
			Status:    models.OrderStatusFilled,
			FillPrice: price,
		})
	case fix.OrdStatusRejected, fix.OrdStatusCanceled:
		reason := msg.Get(fix.TagText)
		if reason == "" {
			reason = "rejected by venue"
		}
		c.ledger.Reject(clOrdID, execID, reason)
		log.WithFields(log.Fields{
			"clOrdID": clOrdID,
			"reason":  reason,
		}).Warn("order rejected")
		c.bus.Publish(events.TopicExecution, events.ExecutionEvent{
			ClOrdID: clOrdID,
			ExecID:  execID,
			Status:  models.OrderStatusRejected,
			Reason:  reason,
		})
	default:
		log.WithFields(log.Fields{
			"clOrdID": clOrdID,
			"status":  status,
		}).Debug("non-terminal execution report")
	}
}

func (c *Coordinator) onSessionReject(msg *fix.Message) {
	reason := ""
	if code, ok := msg.GetInt(fix.TagSessionRejectReason); ok {
		reason = describeReason(sessionRejectReasons, code)
	}
	log.WithFields(log.Fields{
		"refSeqNum":  msg.Get(fix.TagRefSeqNum),
		"refTagID":   msg.Get(fix.TagRefTagID),
		"refMsgType": msg.Get(fix.TagRefMsgType),
		"reason":     reason,
		"text":       msg.Get(fix.TagText),
	}).Error("session reject")
	c.bus.Publish(events.TopicReject, events.RejectEvent{
		MsgType:    fix.MsgTypeSessionReject,
		RefMsgType: msg.Get(fix.TagRefMsgType),
		Reason:     reason,
		Text:       msg.Get(fix.TagText),
	})
}

func (c *Coordinator) onBusinessReject(msg *fix.Message) {
	reason := ""
	if code, ok := msg.GetInt(fix.TagBusinessRejectReason); ok {
		reason = describeReason(businessRejectReasons, code)
	}
	log.WithFields(log.Fields{
		"refMsgType": msg.Get(fix.TagRefMsgType),
		"reason":     reason,
		"text":       msg.Get(fix.TagText),
	}).Error("business reject")
	c.bus.Publish(events.TopicReject, events.RejectEvent{
		MsgType:    fix.MsgTypeBusinessReject,
		RefMsgType: msg.Get(fix.TagRefMsgType),
		Reason:     reason,
		Text:       msg.Get(fix.TagText),
	})
}

// onStaticData refreshes the provider directory from the venue's custom
// directory message. Elements repeat without a standard group layout, so
// the raw message is walked directly: a new element opens at each comp id.
func (c *Coordinator) onStaticData(raw string) {
	var (
		updated int
		current *Provider
	)
	flush := func() {
		if current == nil || current.CompID == "" {
			return
		}
		c.provMu.Lock()
		c.providers[current.CompID] = *current
		c.provMu.Unlock()
		c.bus.Publish(events.TopicProvider, events.ProviderEvent{
			CompID:  current.CompID,
			Name:    current.Name,
			Enabled: current.Enabled,
		})
		updated++
	}

	inElements := false
	for _, part := range strings.Split(raw, fix.SOH) {
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			continue
		}
		tag, err := strconv.Atoi(part[:eq])
		if err != nil {
			continue
		}
		val := part[eq+1:]
		switch tag {
		case fix.TagNumElements:
			inElements = true
		case fix.TagOnBehalfOfCompID:
			if inElements {
				flush()
				current = &Provider{CompID: val, Enabled: true}
			}
		case fix.TagDisplayName:
			if current != nil {
				current.Name = val
			}
		case fix.TagPriceRequest:
			if current != nil {
				current.Enabled = val != "N"
			}
		}
	}
	flush()
	log.WithField("providers", updated).Info("provider directory refreshed")
}
