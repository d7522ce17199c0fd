package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestBootstrap_SeedsWhenEmpty checks the embedded defaults load on first run.
func TestBootstrap_SeedsWhenEmpty(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if err := s.Bootstrap(ctx, ""); err != nil {
		t.Fatalf("Bootstrap() failed: %v", err)
	}

	products, err := s.Products.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(products) == 0 {
		t.Fatal("no products seeded")
	}

	customers, err := s.Customers.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(customers) == 0 {
		t.Fatal("no customers seeded")
	}

	// Seeding must not flood the outbox: it predates any remote backend.
	pending, err := s.DB.Queue().PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending after seed = %d, want 0", pending)
	}
}

// TestBootstrap_LegacyPreferredOverSeed checks legacy data wins and the old
// file is removed after a successful migration.
func TestBootstrap_LegacyPreferredOverSeed(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	legacyPath := filepath.Join(t.TempDir(), "legacy-store.json")
	legacy := map[string][]map[string]any{
		"products": {
			{"id": "legacy-1", "name": "Old Stock Fan", "price": 1450.0, "stock": 3},
		},
		"customers": {
			{"id": "legacy-c1", "name": "Suresh", "phone": "9000000000", "balance": 250.0},
		},
	}
	data, err := json.Marshal(legacy)
	if err != nil {
		t.Fatalf("marshal legacy: %v", err)
	}
	if err := os.WriteFile(legacyPath, data, 0644); err != nil {
		t.Fatalf("write legacy: %v", err)
	}

	if err := s.Bootstrap(ctx, legacyPath); err != nil {
		t.Fatalf("Bootstrap() failed: %v", err)
	}

	product, err := s.Products.Get(ctx, "legacy-1")
	if err != nil {
		t.Fatalf("migrated product missing: %v", err)
	}
	if product.Name != "Old Stock Fan" || product.Stock != 3 {
		t.Errorf("migrated product = %+v", product)
	}

	customer, err := s.Customers.Get(ctx, "legacy-c1")
	if err != nil {
		t.Fatalf("migrated customer missing: %v", err)
	}
	if customer.Balance != 250 {
		t.Errorf("migrated balance = %v, want 250", customer.Balance)
	}

	// Seed defaults must not mix in with legacy data.
	products, err := s.Products.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(products) != 1 {
		t.Errorf("products = %d, want only the migrated one", len(products))
	}

	// The legacy file is deleted from its old location after migration.
	if _, err := os.Stat(legacyPath); !os.IsNotExist(err) {
		t.Error("legacy file still exists after migration")
	}
}

// TestBootstrap_OneShot checks a populated store is never re-seeded or
// re-migrated.
func TestBootstrap_OneShot(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if err := s.Bootstrap(ctx, ""); err != nil {
		t.Fatalf("first Bootstrap() failed: %v", err)
	}
	first, err := s.Products.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	// A legacy file appearing later must be ignored: the guard is the
	// primary collection already holding rows.
	legacyPath := filepath.Join(t.TempDir(), "legacy-store.json")
	if err := os.WriteFile(legacyPath, []byte(`{"products":[{"id":"late","name":"Late"}]}`), 0644); err != nil {
		t.Fatalf("write legacy: %v", err)
	}

	if err := s.Bootstrap(ctx, legacyPath); err != nil {
		t.Fatalf("second Bootstrap() failed: %v", err)
	}

	second, err := s.Products.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(second) != len(first) {
		t.Errorf("products changed on second bootstrap: %d -> %d", len(first), len(second))
	}
	if _, err := os.Stat(legacyPath); err != nil {
		t.Error("legacy file should be untouched when bootstrap is skipped")
	}
}
