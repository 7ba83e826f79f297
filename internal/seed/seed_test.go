package seed

import "testing"

func TestDemoAssets_UniqueIDsAndPositiveValues(t *testing.T) {
	seen := make(map[string]bool)
	for _, a := range demoAssets {
		if seen[a.assetID] {
			t.Fatalf("duplicate asset_id %q in demoAssets", a.assetID)
		}
		seen[a.assetID] = true

		if a.unitPrice <= 0 {
			t.Errorf("asset %s: unitPrice must be positive, got %d", a.assetID, a.unitPrice)
		}
		if a.quantity <= 0 {
			t.Errorf("asset %s: quantity must be positive, got %d", a.assetID, a.quantity)
		}
		if a.category == "" {
			t.Errorf("asset %s: category must not be empty", a.assetID)
		}
	}
}
