package fix

// SOH is the standard tag=value field delimiter.
const SOH = "\x01"

const (
	TimestampFormat = "20060102-15:04:05.000"
	DateFormat      = "20060102"
)

// Message kinds used on this session.
const (
	MsgTypeHeartbeat          = "0"
	MsgTypeTestRequest        = "1"
	MsgTypeSessionReject      = "3"
	MsgTypeLogout             = "5"
	MsgTypeExecutionReport    = "8"
	MsgTypeLogon              = "A"
	MsgTypeQuoteRequest       = "R"
	MsgTypeQuote              = "S"
	MsgTypeQuoteCancel        = "Z"
	MsgTypeQuoteStatusReport  = "AI"
	MsgTypeQuoteRequestReject = "AG"
	MsgTypeNewOrderMultileg   = "AB"
	MsgTypeBusinessReject     = "j"
	MsgTypeStaticData         = "SD"
)

// Standard tags.
const (
	TagAvgPx                    = 6
	TagBeginString              = 8
	TagBodyLength               = 9
	TagCheckSum                 = 10
	TagClOrdID                  = 11
	TagExecID                   = 17
	TagMsgSeqNum                = 34
	TagMsgType                  = 35
	TagOrderID                  = 37
	TagOrdStatus                = 39
	TagOrdType                  = 40
	TagRefSeqNum                = 45
	TagSenderCompID             = 49
	TagSendingTime              = 52
	TagSide                     = 54
	TagSymbol                   = 55
	TagTargetCompID             = 56
	TagText                     = 58
	TagTimeInForce              = 59
	TagTransactTime             = 60
	TagValidUntilTime           = 62
	TagTradeDate                = 75
	TagEncryptMethod            = 98
	TagHeartBtInt               = 108
	TagTestReqID                = 112
	TagOnBehalfOfCompID         = 115
	TagQuoteID                  = 117
	TagDeliverToCompID          = 128
	TagQuoteReqID               = 131
	TagResetSeqNumFlag          = 141
	TagNoRelatedSym             = 146
	TagExecType                 = 150
	TagQuoteStatus              = 297
	TagQuoteCancelType          = 298
	TagRefTagID                 = 371
	TagRefMsgType               = 372
	TagSessionRejectReason      = 373
	TagBusinessRejectReason     = 380
	TagPartyIDSource            = 447
	TagPartyID                  = 448
	TagPartyRole                = 452
	TagNoPartyIDs               = 453
	TagQuoteType                = 537
	TagUsername                 = 553
	TagPassword                 = 554
	TagNoLegs                   = 555
	TagLegCurrency              = 556
	TagLegSymbol                = 600
	TagLegMaturityDate          = 611
	TagLegStrikePrice           = 612
	TagQuoteRequestRejectReason = 658
	TagLegQty                   = 687
	TagDeliveryDate             = 743
)

// Venue-custom tags.
const (
	TagDisplayName      = 1402
	TagNumElements      = 1663
	TagPremiumDelivery  = 5020
	TagLegSpotRate      = 5235
	TagMQSize           = 5359
	TagPremDel          = 5475
	TagVolatility       = 5678
	TagPremiumCcy       = 5830
	TagLegPremPrice     = 5844
	TagLegDelta         = 6035
	TagTenor            = 6215
	TagStrategy         = 6258
	TagPosition         = 6351
	TagLegStrategyInd   = 6714
	TagLegStrategyID    = 7940
	TagBankGroupID      = 8051
	TagHedgeTradeType   = 9016
	TagFXOptionStyle    = 9019
	TagLegStrategyCcy   = 9034
	TagCutoff           = 9125
	TagStructure        = 9126
	TagPriceIndicator   = 9904
	TagProductQuoteType = 9943
	TagPriceRequest     = 9996
)

// Side values on the wire.
const (
	SideValueBuy  = "1"
	SideValueSell = "2"
)

// OrdStatus values.
const (
	OrdStatusNew      = "0"
	OrdStatusFilled   = "2"
	OrdStatusCanceled = "4"
	OrdStatusRejected = "8"
)

// cutoffCode maps a cutoff center name to the venue's tag 9125 code
// (Appendix I). Unknown centers default to the New York cut.
func cutoffCode(center string) string {
	switch center {
	case "TK":
		return "2"
	case "LON":
		return "157"
	default: // NY
		return "1"
	}
}
