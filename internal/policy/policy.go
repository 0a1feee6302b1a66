// Package policy computes the commission and per-tier transfer ceiling for
// a money movement. It is deliberately pure: no I/O, no clock, no ambient
// configuration, so a quote for a given (amount, tier) is always the same.
package policy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/haniyfdev/Chontak-wallet/internal/model"
)

var (
	ErrInvalidAmount = errors.New("invalid transfer amount")
	ErrUnknownTier   = errors.New("unknown actor tier")
)

// Schedule is the immutable fee and limit table injected at construction.
type Schedule struct {
	MinAmount          decimal.Decimal
	StandardCommission decimal.Decimal // fraction of the amount, e.g. 0.01
	StandardLimit      decimal.Decimal
	PremiumLimit       decimal.Decimal
	PlatformLimit      decimal.Decimal
}

// DefaultSchedule is the deployed fee table: 2,000 minimum, 1% commission
// for standard users, ceilings of 2M / 4M / 100M per tier.
func DefaultSchedule() Schedule {
	return Schedule{
		MinAmount:          decimal.NewFromInt(2000),
		StandardCommission: decimal.NewFromFloat(0.01),
		StandardLimit:      decimal.NewFromInt(2_000_000),
		PremiumLimit:       decimal.NewFromInt(4_000_000),
		PlatformLimit:      decimal.NewFromInt(100_000_000),
	}
}

type Policy struct {
	schedule Schedule
}

func New(schedule Schedule) *Policy {
	return &Policy{schedule: schedule}
}

// Quote is what the transfer engine debits and where the difference goes.
type Quote struct {
	TotalDebit decimal.Decimal // amount + commission, taken from the source
	Commission decimal.Decimal // the platform's cut
}

// Compute validates amount against the tier's bounds and returns the quote.
// The switch covers the whole tier set; an unrecognized tier is an error,
// not a fallthrough into some default fee.
func (p *Policy) Compute(amount decimal.Decimal, tier string) (Quote, error) {
	if amount.LessThan(p.schedule.MinAmount) {
		return Quote{}, fmt.Errorf("%w: %s is below the minimum %s", ErrInvalidAmount, amount, p.schedule.MinAmount)
	}

	var commission, limit decimal.Decimal
	switch tier {
	case model.TierStandard:
		commission = amount.Mul(p.schedule.StandardCommission).Round(2)
		limit = p.schedule.StandardLimit
	case model.TierPremium:
		commission = decimal.Zero
		limit = p.schedule.PremiumLimit
	case model.TierPlatform:
		commission = decimal.Zero
		limit = p.schedule.PlatformLimit
	default:
		return Quote{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	if amount.GreaterThan(limit) {
		return Quote{}, fmt.Errorf("%w: %s exceeds the %s tier limit %s", ErrInvalidAmount, amount, tier, limit)
	}

	return Quote{TotalDebit: amount.Add(commission), Commission: commission}, nil
}
