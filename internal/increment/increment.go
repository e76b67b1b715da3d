// Package increment implements the open-outcry raise policy: the legal
// next bid is the current bid plus a table-driven increment chosen by the
// ratio of the current bid to the tier's base price.
//
// The bracket table is configurable per auction; organizers override the
// default. All amounts are integer budget units.
package increment

import "github.com/draftroom/auction-engine/internal/model"

// DefaultBrackets is the bracket table used when an auction configures
// none: [0,2)→10, [2,5)→25, [5,10)→50, [10,∞)→100.
func DefaultBrackets() []model.IncrementBracket {
	return []model.IncrementBracket{
		{FromMultiplier: 0, ToMultiplier: 2, Increment: 10},
		{FromMultiplier: 2, ToMultiplier: 5, Increment: 25},
		{FromMultiplier: 5, ToMultiplier: 10, Increment: 50},
		{FromMultiplier: 10, ToMultiplier: 0, Increment: 100},
	}
}

// Increment returns the legal raise above currentBid. The multiplier is
// currentBid/basePrice; the first bracket with
// fromMultiplier <= multiplier < toMultiplier wins. A bracket with
// ToMultiplier = 0 is open-ended. When no bracket matches, the last
// bracket's increment applies; with an empty table the increment is the
// base price itself.
func Increment(currentBid, basePrice int64, brackets []model.IncrementBracket) int64 {
	if len(brackets) == 0 {
		return basePrice
	}
	if basePrice <= 0 {
		return brackets[len(brackets)-1].Increment
	}

	multiplier := float64(currentBid) / float64(basePrice)
	for _, b := range brackets {
		if multiplier < b.FromMultiplier {
			continue
		}
		if b.ToMultiplier == 0 || multiplier < b.ToMultiplier {
			return b.Increment
		}
	}
	return brackets[len(brackets)-1].Increment
}

// NextBid returns currentBid plus the bracket increment — the only amount
// an open-outcry raise may carry.
func NextBid(currentBid, basePrice int64, brackets []model.IncrementBracket) int64 {
	return currentBid + Increment(currentBid, basePrice, brackets)
}
