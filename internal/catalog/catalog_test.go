package catalog

import (
	"testing"

	"ablevoice/internal/domain"
)

func TestLookupPrefersExactMatch(t *testing.T) {
	t.Parallel()

	c := New([]domain.MenuItem{
		{ID: "1", Name: "Chilli Porotta"},
		{ID: "2", Name: "Porotta"},
	})

	item, ok := c.Lookup("POROTTA")
	if !ok || item.ID != "2" {
		t.Fatalf("expected exact match, got %+v ok=%v", item, ok)
	}
}

func TestLookupFallsBackToSubstring(t *testing.T) {
	t.Parallel()

	item, ok := Default().Lookup("biryani")
	if !ok || item.Name != "Thalassery Biryani" {
		t.Fatalf("unexpected lookup result: %+v ok=%v", item, ok)
	}

	if _, ok := Default().Lookup("pizza"); ok {
		t.Fatalf("expected no match for pizza")
	}
	if _, ok := Default().Lookup("   "); ok {
		t.Fatalf("expected no match for blank query")
	}
}

func TestAtIsOneBased(t *testing.T) {
	t.Parallel()

	c := Default()
	first, ok := c.At(1)
	if !ok || first.Name != "Karimeen Pollichathu" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if _, ok := c.At(0); ok {
		t.Fatalf("position 0 must be rejected")
	}
	if _, ok := c.At(c.Len() + 1); ok {
		t.Fatalf("position past the end must be rejected")
	}
}

func TestCategories(t *testing.T) {
	t.Parallel()

	c := Default()
	categories := c.Categories()
	if len(categories) == 0 || categories[0] != "Main Course" {
		t.Fatalf("unexpected categories: %v", categories)
	}

	seen := map[string]bool{}
	for _, category := range categories {
		if seen[category] {
			t.Fatalf("duplicate category %q", category)
		}
		seen[category] = true
	}

	got, ok := c.Category("seafood")
	if !ok || got != "Seafood" {
		t.Fatalf("unexpected category resolution: %q ok=%v", got, ok)
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	t.Parallel()

	c := Default()
	items := c.Items()
	items[0].Name = "changed"
	if first, _ := c.At(1); first.Name == "changed" {
		t.Fatalf("catalog was mutated through Items")
	}
}
