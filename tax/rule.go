package tax

import (
	"fmt"
	"time"
)

// Rule identifies how a disposal was matched to its cost.
type Rule string

const (
	SameDay         Rule = "SAME_DAY"
	BedAndBreakfast Rule = "BED_AND_BREAKFAST"
	Section104      Rule = "SECTION_104"
)

// bedAndBreakfastDays is the length of the window after a disposal in which
// a re-acquisition is matched to it.
const bedAndBreakfastDays = 30

// matchingRules are the rules Match accepts, in the order Run applies them.
var matchingRules = []Rule{SameDay, BedAndBreakfast}

func (r Rule) isMatching() bool {
	for _, m := range matchingRules {
		if r == m {
			return true
		}
	}
	return false
}

// ruleMatches reports whether a sell at sold and a buy at bought pair up
// under rule. Dates are compared as calendar dates in loc.
func ruleMatches(rule Rule, sold, bought time.Time, loc *time.Location) bool {
	sellDate := civilDate(sold, loc)
	buyDate := civilDate(bought, loc)

	switch rule {
	case SameDay:
		return buyDate.Equal(sellDate)
	case BedAndBreakfast:
		return sellDate.Before(buyDate) && !buyDate.After(sellDate.AddDate(0, 0, bedAndBreakfastDays))
	default:
		panic(fmt.Sprintf("unknown matching rule %q (Match should have rejected it)", rule))
	}
}

// civilDate truncates t to midnight UTC of its calendar date in loc, so that
// calendar arithmetic is not disturbed by daylight saving changes.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
