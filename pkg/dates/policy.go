package dates

import "strings"

type Convention int

const (
	Following Convention = iota
	ModifiedFollowing
	Preceding
)

type CalendarMode string

const (
	PremiumCurrencyOnly CalendarMode = "PremiumCurrencyOnly"
	JointPairCurrencies CalendarMode = "JointPairCurrencies"
)

// TradePolicy is the process-wide date policy. Constructed once at startup
// and never mutated; use the With* methods to derive variants.
type TradePolicy struct {
	ExpiryConvention    Convention
	ExpiryEOM           bool
	PremiumCalendarMode CalendarMode
	PremiumConvention   Convention
	PremiumSettleDays   int
	SpotLagDays         func(pair string) int
}

// DefaultPolicy matches the venue's conventions: modified-following expiry
// honoring end-of-month, premium settling two business days after trade on
// the joint pair calendar, and a two-day spot lag for all pairs except the
// one-day set.
func DefaultPolicy() TradePolicy {
	return TradePolicy{
		ExpiryConvention:    ModifiedFollowing,
		ExpiryEOM:           true,
		PremiumCalendarMode: JointPairCurrencies,
		PremiumConvention:   Following,
		PremiumSettleDays:   2,
		SpotLagDays:         DefaultSpotLag,
	}
}

// DefaultSpotLag returns the spot settlement lag in business days for a
// pair symbol. USDCAD and USDTRY settle T+1; the majors settle T+2.
func DefaultSpotLag(pair string) int {
	switch strings.ToUpper(pair) {
	case "USDCAD", "USDTRY":
		return 1
	default:
		return 2
	}
}

func (p TradePolicy) WithExpiryConvention(c Convention) TradePolicy {
	p.ExpiryConvention = c
	return p
}

func (p TradePolicy) WithExpiryEOM(eom bool) TradePolicy {
	p.ExpiryEOM = eom
	return p
}

func (p TradePolicy) WithPremiumCalendarMode(m CalendarMode) TradePolicy {
	p.PremiumCalendarMode = m
	return p
}

func (p TradePolicy) WithPremiumConvention(c Convention) TradePolicy {
	p.PremiumConvention = c
	return p
}

func (p TradePolicy) WithPremiumSettleDays(n int) TradePolicy {
	p.PremiumSettleDays = n
	return p
}

func (p TradePolicy) WithSpotLag(fn func(pair string) int) TradePolicy {
	p.SpotLagDays = fn
	return p
}
