package session

import "fmt"

// sessionRejectReasons decodes tag 373 on session-level rejects (35=3).
var sessionRejectReasons = map[int]string{
	0:  "invalid tag number",
	1:  "required tag missing",
	2:  "tag not defined for this message type",
	3:  "undefined tag",
	4:  "tag specified without a value",
	5:  "value is incorrect for this tag",
	6:  "incorrect data format for value",
	9:  "comp id problem",
	10: "sending time accuracy problem",
	11: "invalid message type",
	13: "tag appears more than once",
	14: "tag specified out of required order",
	15: "repeating group fields out of order",
	16: "incorrect count for repeating group",
}

// businessRejectReasons decodes tag 380 on business-level rejects (35=j).
var businessRejectReasons = map[int]string{
	0: "other",
	1: "unknown id",
	2: "unknown security",
	3: "unsupported message type",
	4: "application not available",
	5: "conditionally required field missing",
	6: "not authorized",
	7: "delivery target not available at this time",
}

// quoteRequestRejectReasons decodes tag 658 on quote request rejects (35=AG).
var quoteRequestRejectReasons = map[int]string{
	1:  "unknown symbol",
	2:  "exchange or security closed",
	3:  "quote request exceeds limit",
	4:  "too late to enter",
	5:  "invalid price",
	6:  "not authorized to request quote",
	7:  "no match for inquiry",
	8:  "no market for instrument",
	9:  "no inventory",
	10: "pass",
	99: "other",
}

func describeReason(table map[int]string, code int) string {
	if text, ok := table[code]; ok {
		return fmt.Sprintf("%s (%d)", text, code)
	}
	return fmt.Sprintf("reason code %d", code)
}
