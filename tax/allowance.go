package tax

import "github.com/shopspring/decimal"

// DefaultRate is the flat CGT rate, as a percentage, used for estimates.
var DefaultRate = decimal.NewFromInt(20)

// DefaultAllowances returns the annual exempt amount per tax year.
func DefaultAllowances() map[int]decimal.Decimal {
	table := map[int]int64{
		2009: 10100, 2010: 10100, 2011: 10100,
		2012: 10600, 2013: 10600,
		2014: 10900,
		2015: 11000,
		2016: 11100, 2017: 11100,
		2018: 11300,
		2019: 11700,
		2020: 12000,
		2021: 12300, 2022: 12300, 2023: 12300,
		2024: 6000,
		2025: 3000, 2026: 3000,
	}

	allowances := make(map[int]decimal.Decimal, len(table))
	for year, amount := range table {
		allowances[year] = decimal.NewFromInt(amount)
	}
	return allowances
}

// Allowance returns the annual exempt amount for year.
func (c *Config) Allowance(year int) (decimal.Decimal, error) {
	amount, ok := c.Allowances[year]
	if !ok {
		return decimal.Zero, &UnsupportedTaxYearError{Year: year}
	}
	return amount, nil
}
