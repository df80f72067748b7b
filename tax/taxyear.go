package tax

import "time"

// TaxYear returns the UK tax year t falls in. Tax years run from 6 April to
// 5 April and are named after the calendar year they end in.
func TaxYear(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	start := time.Date(local.Year(), time.April, 6, 0, 0, 0, 0, loc)
	if local.Before(start) {
		return local.Year()
	}
	return local.Year() + 1
}

// TaxYearStart returns the first instant of tax year year in loc.
func TaxYearStart(year int, loc *time.Location) time.Time {
	return time.Date(year-1, time.April, 6, 0, 0, 0, 0, loc)
}

// TaxYearEnd returns the last calendar day of tax year year in loc.
func TaxYearEnd(year int, loc *time.Location) time.Time {
	return time.Date(year, time.April, 5, 0, 0, 0, 0, loc)
}
