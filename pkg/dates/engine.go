package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateRuleError reports input the date rules cannot interpret: a malformed
// pair symbol or an unparsable tenor. Calendar fallback for unmapped
// currencies is not an error.
type DateRuleError struct {
	Input  string
	Reason string
}

func (e *DateRuleError) Error() string {
	return fmt.Sprintf("date rule: %s: %q", e.Reason, e.Input)
}

// ResolvedDates are the settlement-relevant dates derived for one request.
// All are business days under their governing calendar and are embedded
// verbatim into outbound messages.
type ResolvedDates struct {
	TradeDate    time.Time
	SpotDate     time.Time
	ExpiryDate   time.Time
	DeliveryDate time.Time
	PremiumDate  time.Time
}

const wireDateFormat = "20060102"

// Ymd formats a date the way the wire wants it.
func Ymd(t time.Time) string { return t.Format(wireDateFormat) }

// ParsePair splits a 6-letter pair symbol into its two currency codes.
// A "/" separator is tolerated ("EUR/USD").
func ParsePair(symbol string) (ccy1, ccy2 string, err error) {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
	if len(s) != 6 {
		return "", "", &DateRuleError{Input: symbol, Reason: "pair symbol must be two 3-letter codes"}
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", "", &DateRuleError{Input: symbol, Reason: "pair symbol must be two 3-letter codes"}
		}
	}
	return s[:3], s[3:], nil
}

// ComputeDates derives spot, expiry, delivery and premium-settlement dates
// from the trade date, pair, tenor and policy. The trade date is first
// rolled forward onto the pair's joint calendar if it falls on a holiday
// or weekend.
func ComputeDates(tradeDateUTC time.Time, pair, tenor, premiumCcy string, policy TradePolicy) (ResolvedDates, error) {
	ccy1, ccy2, err := ParsePair(pair)
	if err != nil {
		return ResolvedDates{}, err
	}

	jointCal := jointCalendarFor(ccy1, ccy2)
	premiumCal := jointCal
	if policy.PremiumCalendarMode == PremiumCurrencyOnly {
		premiumCal, _ = CalendarFor(premiumCcy)
	}

	trade := midnightUTC(tradeDateUTC)
	trade = jointCal.Adjust(trade, Following)

	spotLag := policy.SpotLagDays(strings.ToUpper(pair))
	spot := jointCal.AdvanceBusinessDays(trade, spotLag, Following)

	expiry, err := expiryFromTenor(tenor, trade, jointCal, policy)
	if err != nil {
		return ResolvedDates{}, err
	}

	delivery := jointCal.AdvanceBusinessDays(expiry, spotLag, Following)
	premium := premiumCal.AdvanceBusinessDays(trade, policy.PremiumSettleDays, policy.PremiumConvention)

	return ResolvedDates{
		TradeDate:    trade,
		SpotDate:     spot,
		ExpiryDate:   expiry,
		DeliveryDate: delivery,
		PremiumDate:  premium,
	}, nil
}

// ResolveExplicitExpiry adjusts a caller-supplied expiry date under the
// expiry convention and derives its delivery date, for legs that carry an
// explicit date instead of a tenor.
func ResolveExplicitExpiry(expiry time.Time, pair string, policy TradePolicy) (adjExpiry, delivery time.Time, err error) {
	ccy1, ccy2, err := ParsePair(pair)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	jointCal := jointCalendarFor(ccy1, ccy2)
	adjExpiry = jointCal.Adjust(midnightUTC(expiry), policy.ExpiryConvention)
	delivery = jointCal.AdvanceBusinessDays(adjExpiry, policy.SpotLagDays(strings.ToUpper(pair)), Following)
	return adjExpiry, delivery, nil
}

// expiryFromTenor interprets the tenor grammar: D and W tenors count
// business days (a week is five), M and Y tenors advance calendar months
// honoring the end-of-month flag. A bare integer counts business days.
func expiryFromTenor(tenor string, trade time.Time, cal Calendar, policy TradePolicy) (time.Time, error) {
	s := strings.ToUpper(strings.TrimSpace(tenor))
	if s == "" {
		return time.Time{}, &DateRuleError{Input: tenor, Reason: "empty tenor"}
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return time.Time{}, &DateRuleError{Input: tenor, Reason: "tenor count must be positive"}
		}
		return cal.AdvanceBusinessDays(trade, n, policy.ExpiryConvention), nil
	}
	suffix := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return time.Time{}, &DateRuleError{Input: tenor, Reason: "tenor count must be a positive integer"}
	}
	switch suffix {
	case 'D':
		return cal.AdvanceBusinessDays(trade, n, policy.ExpiryConvention), nil
	case 'W':
		return cal.AdvanceBusinessDays(trade, n*5, policy.ExpiryConvention), nil
	case 'M':
		return cal.AdvanceMonths(trade, n, policy.ExpiryConvention, policy.ExpiryEOM), nil
	case 'Y':
		return cal.AdvanceMonths(trade, n*12, policy.ExpiryConvention, policy.ExpiryEOM), nil
	default:
		return time.Time{}, &DateRuleError{Input: tenor, Reason: "unknown tenor suffix"}
	}
}

func jointCalendarFor(ccy1, ccy2 string) Calendar {
	c1, _ := CalendarFor(ccy1)
	c2, _ := CalendarFor(ccy2)
	return Joint(c1, c2)
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
