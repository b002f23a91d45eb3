package core

import "math"

// CivilLabour computes the gross labour cost of a team's attendance:
//
//	mf*mason + hf*helper + mh*mason/2 + hh*helper/2
//
// Half-unit counts multiply before halving, so an odd rate keeps the
// half-unit's fractional pay instead of flooring it away per unit.
// A nil rate yields zero labour.
func CivilLabour(masonFull, helperFull, masonHalf, helperHalf int, rate *TeamRate) Money {
	if rate == nil {
		return Money{}
	}
	cents := int64(masonFull)*rate.MasonFull.Cents +
		int64(helperFull)*rate.HelperFull.Cents +
		int64(masonHalf)*rate.MasonFull.Cents/2 +
		int64(helperHalf)*rate.HelperFull.Cents/2
	return Money{Cents: cents}
}

// DepartmentLabour computes fullDays*rate + halfDays*rate/2.
func DepartmentLabour(fullDays, halfDays int, fullRate Money) Money {
	cents := int64(fullDays)*fullRate.Cents + int64(halfDays)*fullRate.Cents/2
	return Money{Cents: cents}
}

// MaterialLineTotal is quantity times unit rate, rounded to the cent.
func MaterialLineTotal(quantity float64, rate Money) Money {
	return Money{Cents: int64(math.Round(quantity * float64(rate.Cents)))}
}

// NetTotal is the payable amount: gross labour or material minus the
// advance taken against the same transaction.
func NetTotal(gross, advance Money) Money {
	return Money{Cents: gross.Cents - advance.Cents}
}
