package tax

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Europe/London must resolve on hosts without a zoneinfo database

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultTimezone is the zone UK tax years are reckoned in.
const DefaultTimezone = "Europe/London"

// DefaultCurrency is the reporting currency.
const DefaultCurrency = "GBP"

// Config holds the calculator's policy switches and constants.
type Config struct {
	// TransfersInclude moves deposits and withdrawals through the pool at zero cost.
	// When false they are skipped entirely.
	TransfersInclude bool
	ShowEmptyWallets bool
	StrictHoldings   bool
	Debug            bool

	Location *time.Location
	Currency string

	Allowances map[int]decimal.Decimal
	Rate       decimal.Decimal

	// Prices is a static unit price table for holdings valuation.
	Prices map[string]decimal.Decimal
}

// NewConfig creates a Config with UK defaults.
func NewConfig() *Config {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		panic(fmt.Sprintf("embedded timezone %s missing: %v", DefaultTimezone, err))
	}
	return &Config{
		Location:   loc,
		Currency:   DefaultCurrency,
		Allowances: DefaultAllowances(),
		Rate:       DefaultRate,
		Prices:     map[string]decimal.Decimal{},
	}
}

// fileConfig mirrors the YAML layout. Amounts are strings so they parse exactly.
type fileConfig struct {
	TransfersInclude *bool             `yaml:"transfers_include"`
	ShowEmptyWallets *bool             `yaml:"show_empty_wallets"`
	StrictHoldings   *bool             `yaml:"strict_holdings"`
	Debug            *bool             `yaml:"debug"`
	Timezone         string            `yaml:"timezone"`
	Currency         string            `yaml:"currency"`
	Rate             string            `yaml:"rate"`
	Allowances       map[int]string    `yaml:"allowances"`
	Prices           map[string]string `yaml:"prices"`
}

// LoadConfig reads a YAML config file. Missing keys keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses YAML config data on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := NewConfig()

	if fc.TransfersInclude != nil {
		cfg.TransfersInclude = *fc.TransfersInclude
	}
	if fc.ShowEmptyWallets != nil {
		cfg.ShowEmptyWallets = *fc.ShowEmptyWallets
	}
	if fc.StrictHoldings != nil {
		cfg.StrictHoldings = *fc.StrictHoldings
	}
	if fc.Debug != nil {
		cfg.Debug = *fc.Debug
	}

	if fc.Timezone != "" {
		loc, err := time.LoadLocation(fc.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", fc.Timezone, err)
		}
		cfg.Location = loc
	}
	if fc.Currency != "" {
		cfg.Currency = strings.ToUpper(fc.Currency)
	}

	if fc.Rate != "" {
		rate, err := decimal.NewFromString(fc.Rate)
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q: %w", fc.Rate, err)
		}
		cfg.Rate = rate
	}

	// Configured allowances extend or override the built-in table.
	for year, s := range fc.Allowances {
		amount, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid allowance for %d %q: %w", year, s, err)
		}
		cfg.Allowances[year] = amount
	}

	for asset, s := range fc.Prices {
		price, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s %q: %w", asset, s, err)
		}
		cfg.Prices[strings.ToUpper(asset)] = price
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for values the calculator cannot work with.
func (c *Config) Validate() error {
	if c.Location == nil {
		return fmt.Errorf("timezone is required")
	}
	if money.GetCurrency(c.Currency) == nil {
		return fmt.Errorf("unknown currency %q", c.Currency)
	}
	if c.Rate.IsNegative() || c.Rate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("rate %s must be between 0 and 100", c.Rate)
	}
	for year, amount := range c.Allowances {
		if amount.IsNegative() {
			return fmt.Errorf("allowance for %d must not be negative", year)
		}
	}
	for asset, price := range c.Prices {
		if price.IsNegative() {
			return fmt.Errorf("price for %s must not be negative", asset)
		}
	}
	return nil
}

func (c *Config) currency() *money.Currency {
	if cur := money.GetCurrency(c.Currency); cur != nil {
		return cur
	}
	return money.GetCurrency(DefaultCurrency)
}

// Symbol returns the currency symbol, e.g. "£".
func (c *Config) Symbol() string {
	return c.currency().Grapheme
}

// Precision returns the number of decimal places of the reporting currency.
func (c *Config) Precision() int32 {
	return int32(c.currency().Fraction)
}

// contextKey is a private type to avoid key collisions in context.
type contextKey struct{}

// WithContext returns a new context with the Config attached.
func (c *Config) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// ConfigFromContext retrieves the Config from context.
// Returns a default Config if not found.
func ConfigFromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(contextKey{}).(*Config); ok {
		return cfg
	}
	return NewConfig()
}
