// Package shipping computes international shipping quotes from a static
// per-destination rule table. Amounts are in the smallest currency unit (yen).
package shipping

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedDestination = errors.New("unsupported destination")
	ErrInvalidWeight          = errors.New("invalid total weight")
)

// Rule is the cost model for one destination country.
type Rule struct {
	CountryCode     string
	Name            string
	BaseCost        int64
	PerKilogramCost int64
	EstimatedDays   int
}

var rules = map[string]Rule{
	"US": {CountryCode: "US", Name: "United States", BaseCost: 2000, PerKilogramCost: 500, EstimatedDays: 7},
	"CA": {CountryCode: "CA", Name: "Canada", BaseCost: 2500, PerKilogramCost: 600, EstimatedDays: 8},
	"UK": {CountryCode: "UK", Name: "United Kingdom", BaseCost: 3000, PerKilogramCost: 700, EstimatedDays: 6},
	"DE": {CountryCode: "DE", Name: "Germany", BaseCost: 2800, PerKilogramCost: 650, EstimatedDays: 7},
	"FR": {CountryCode: "FR", Name: "France", BaseCost: 2900, PerKilogramCost: 670, EstimatedDays: 7},
	"AU": {CountryCode: "AU", Name: "Australia", BaseCost: 3500, PerKilogramCost: 800, EstimatedDays: 9},
	"JP": {CountryCode: "JP", Name: "Japan", BaseCost: 1000, PerKilogramCost: 200, EstimatedDays: 2},
}

type Breakdown struct {
	BaseCost      int64   `json:"base_cost"`
	WeightCost    int64   `json:"weight_cost"`
	TotalWeightKg float64 `json:"total_weight_kg"`
}

type Quote struct {
	TotalWeightGrams float64   `json:"total_weight_g"`
	ShippingCost     int64     `json:"shipping_cost_jpy"`
	EstimatedDays    int       `json:"estimated_days"`
	Breakdown        Breakdown `json:"breakdown"`
}

// Country is a supported destination, as listed to clients.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Lookup returns the rule for a country code. Codes are matched exactly.
func Lookup(country string) (Rule, bool) {
	r, ok := rules[country]
	return r, ok
}

// Countries lists the supported destinations ordered by code.
func Countries() []Country {
	out := make([]Country, 0, len(rules))
	for _, r := range rules {
		out = append(out, Country{Code: r.CountryCode, Name: r.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Calculate quotes shipping of totalWeightGrams to country.
//
// The weight cost is weightKg * perKg rounded half away from zero to a whole
// unit, so the quote never carries a fractional amount. The final cost is
// floored at the rule's base cost.
func Calculate(country string, totalWeightGrams float64) (Quote, error) {
	rule, ok := Lookup(country)
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q", ErrUnsupportedDestination, strings.TrimSpace(country))
	}
	if math.IsNaN(totalWeightGrams) || math.IsInf(totalWeightGrams, 0) {
		return Quote{}, fmt.Errorf("%w: weight must be a finite number", ErrInvalidWeight)
	}
	if totalWeightGrams < 0 {
		return Quote{}, fmt.Errorf("%w: weight must not be negative", ErrInvalidWeight)
	}

	weightKg := decimal.NewFromFloat(totalWeightGrams).Shift(-3)
	weight := weightKg.Mul(decimal.NewFromInt(rule.PerKilogramCost)).Round(0)
	if weight.GreaterThan(decimal.NewFromInt(math.MaxInt64 - rule.BaseCost)) {
		return Quote{}, fmt.Errorf("%w: weight %g g is out of range", ErrInvalidWeight, totalWeightGrams)
	}
	weightCost := weight.IntPart()

	cost := rule.BaseCost + weightCost
	if cost < rule.BaseCost {
		cost = rule.BaseCost
	}

	return Quote{
		TotalWeightGrams: totalWeightGrams,
		ShippingCost:     cost,
		EstimatedDays:    rule.EstimatedDays,
		Breakdown: Breakdown{
			BaseCost:      rule.BaseCost,
			WeightCost:    weightCost,
			TotalWeightKg: weightKg.InexactFloat64(),
		},
	}, nil
}
