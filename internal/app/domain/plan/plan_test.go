package plan

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	tiers := catalog.List()
	if len(tiers) != 6 {
		t.Fatalf("expected 6 tiers, got %d", len(tiers))
	}
	if tiers[0].Name != "basic" || tiers[5].Name != "crown" {
		t.Fatalf("unexpected tier order %v", tiers)
	}

	gold, ok := catalog.Get("gold")
	if !ok {
		t.Fatal("expected gold tier")
	}
	if !gold.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected gold amount %s", gold.Amount)
	}
	if !gold.DailyROI.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected gold daily roi %s", gold.DailyROI)
	}

	if _, ok := catalog.Get("mega"); ok {
		t.Fatal("unknown tier must not resolve")
	}
}

func TestNewCatalogDropsDuplicates(t *testing.T) {
	catalog := NewCatalog(
		Tier{Name: "basic", Amount: decimal.NewFromInt(10)},
		Tier{Name: "basic", Amount: decimal.NewFromInt(999)},
	)

	tiers := catalog.List()
	if len(tiers) != 1 {
		t.Fatalf("expected 1 tier, got %d", len(tiers))
	}
	if !tiers[0].Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("first registration must win, got %s", tiers[0].Amount)
	}
}
