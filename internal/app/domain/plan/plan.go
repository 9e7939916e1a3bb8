// Package plan holds the immutable investment tier configuration.
package plan

import "github.com/shopspring/decimal"

// Tier is a fixed investment plan: principal amount, daily payout rate and the
// daily payout cap shared by ROI-derived limits.
type Tier struct {
	Name        string
	DisplayName string
	Amount      decimal.Decimal
	DailyROI    decimal.Decimal
	DailyCap    decimal.Decimal
}

// Catalog is the ordered, read-only set of tiers. It is built once at startup
// and passed into the services that need it; nothing mutates it at runtime.
type Catalog struct {
	tiers map[string]Tier
	order []string
}

// NewCatalog builds a catalog preserving the given tier order.
func NewCatalog(tiers ...Tier) Catalog {
	c := Catalog{tiers: make(map[string]Tier, len(tiers))}
	for _, t := range tiers {
		if _, exists := c.tiers[t.Name]; exists {
			continue
		}
		c.tiers[t.Name] = t
		c.order = append(c.order, t.Name)
	}
	return c
}

// DefaultCatalog returns the six production tiers, smallest to largest.
func DefaultCatalog() Catalog {
	return NewCatalog(
		tier("basic", "Basic", "10", "0.10", "10"),
		tier("silver", "Silver", "25", "0.25", "25"),
		tier("gold", "Gold", "100", "1.00", "100"),
		tier("platinum", "Platinum", "250", "2.50", "250"),
		tier("diamond", "Diamond", "500", "5.00", "500"),
		tier("crown", "Crown", "1000", "10.00", "1000"),
	)
}

func tier(name, display, amount, dailyROI, dailyCap string) Tier {
	return Tier{
		Name:        name,
		DisplayName: display,
		Amount:      decimal.RequireFromString(amount),
		DailyROI:    decimal.RequireFromString(dailyROI),
		DailyCap:    decimal.RequireFromString(dailyCap),
	}
}

// Get looks up a tier by name.
func (c Catalog) Get(name string) (Tier, bool) {
	t, ok := c.tiers[name]
	return t, ok
}

// List returns the tiers in catalog order.
func (c Catalog) List() []Tier {
	result := make([]Tier, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, c.tiers[name])
	}
	return result
}
