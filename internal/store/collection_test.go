package store

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukaanhq/dukaan-core/internal/model"
	"github.com/dukaanhq/dukaan-core/internal/outbox"
)

// newTestStores opens a fresh database in a temp dir.
func newTestStores(t *testing.T) *Stores {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, log.New(os.Stderr, "[test] ", 0))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return NewStores(db)
}

// TestAdd_DuplicateKey re-adds the same id and expects ErrDuplicateKey.
func TestAdd_DuplicateKey(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	product := model.Product{ID: "p1", Name: "RO Filter", Price: 850, Stock: 2}
	if err := s.Products.Add(ctx, product); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	err := s.Products.Add(ctx, product)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("second Add() = %v, want ErrDuplicateKey", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStores(t)

	_, err := s.Products.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() = %v, want ErrNotFound", err)
	}
}

// TestUpdate_ShallowMerge checks only supplied fields change.
func TestUpdate_ShallowMerge(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	product := model.Product{ID: "p1", Name: "RO Filter", SKU: "RO-01", Price: 850, Stock: 2, Category: "Water"}
	if err := s.Products.Add(ctx, product); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	updated, err := s.Products.Update(ctx, "p1", map[string]any{"price": 900.0, "stock": 5})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	if updated.Price != 900 {
		t.Errorf("Price = %v, want 900", updated.Price)
	}
	if updated.Stock != 5 {
		t.Errorf("Stock = %d, want 5", updated.Stock)
	}
	if updated.Name != "RO Filter" || updated.SKU != "RO-01" || updated.Category != "Water" {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	// The merge must be durable, not just returned.
	got, err := s.Products.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Price != 900 || got.Stock != 5 {
		t.Errorf("persisted record = %+v, want price=900 stock=5", got)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s := newTestStores(t)

	_, err := s.Products.Update(context.Background(), "missing", map[string]any{"price": 1.0})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() = %v, want ErrNotFound", err)
	}
}

// TestRemove_Idempotent removes twice; neither call may error.
func TestRemove_Idempotent(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if err := s.Products.Add(ctx, model.Product{ID: "p1", Name: "RO Filter", Price: 850, Stock: 2}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err := s.Products.Remove(ctx, "p1"); err != nil {
		t.Fatalf("first Remove() failed: %v", err)
	}
	if err := s.Products.Remove(ctx, "p1"); err != nil {
		t.Fatalf("second Remove() failed: %v", err)
	}

	if _, err := s.Products.Get(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("record still present after Remove: %v", err)
	}
}

// TestList_InsertionOrder checks default collections list in insert order.
func TestList_InsertionOrder(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	ids := []string{"c3", "c1", "c2"}
	for _, id := range ids {
		if err := s.Customers.Add(ctx, model.Customer{ID: id, Name: "Customer " + id}); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}

	customers, err := s.Customers.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(customers) != 3 {
		t.Fatalf("len = %d, want 3", len(customers))
	}
	for i, id := range ids {
		if customers[i].ID != id {
			t.Errorf("customers[%d].ID = %q, want %q", i, customers[i].ID, id)
		}
	}
}

// TestList_FavoritesByPosition checks the explicit position ordering.
func TestList_FavoritesByPosition(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	favs := []model.Favorite{
		{ID: "f1", ProductID: "p1", Position: 3},
		{ID: "f2", ProductID: "p2", Position: 1},
		{ID: "f3", ProductID: "p3", Position: 2},
	}
	for _, f := range favs {
		if err := s.Favorites.Add(ctx, f); err != nil {
			t.Fatalf("Add(%s) failed: %v", f.ID, err)
		}
	}

	got, err := s.Favorites.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	want := []string{"f2", "f3", "f1"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("favorites[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

// TestMutationsEnqueue checks every mutation lands in the sync queue, FIFO.
func TestMutationsEnqueue(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if err := s.Products.Add(ctx, model.Product{ID: "p1", Name: "Bulb", Price: 120, Stock: 10}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if _, err := s.Products.Update(ctx, "p1", map[string]any{"stock": 9}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if err := s.Products.Remove(ctx, "p1"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	items, err := s.DB.Queue().ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("pending = %d, want 3", len(items))
	}

	wantOps := []outbox.Op{outbox.OpAdd, outbox.OpUpdate, outbox.OpDelete}
	for i, op := range wantOps {
		if items[i].Op != op {
			t.Errorf("items[%d].Op = %q, want %q", i, items[i].Op, op)
		}
		if items[i].RecordID != "p1" || items[i].Collection != Products {
			t.Errorf("items[%d] targets %s/%s, want %s/p1", i, items[i].Collection, items[i].RecordID, Products)
		}
	}
}

// TestRemoveAbsent_NoQueueItem checks a no-op delete enqueues nothing.
func TestRemoveAbsent_NoQueueItem(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if err := s.Products.Remove(ctx, "never-existed"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	count, err := s.DB.Queue().PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("pending = %d, want 0", count)
	}
}

// TestSubscribe checks subscribers observe committed mutations.
func TestSubscribe(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	events, cancel := s.Products.Subscribe()
	defer cancel()

	if err := s.Products.Add(ctx, model.Product{ID: "p1", Name: "Bulb", Price: 120, Stock: 10}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Collection != Products || ev.Op != outbox.OpAdd || ev.RecordID != "p1" {
			t.Errorf("event = %+v, want add products/p1", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received after Add")
	}

	// Events stop after cancel.
	cancel()
	if err := s.Products.Remove(ctx, "p1"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, ok := <-events; ok {
		t.Error("channel still open after cancel")
	}
}

// TestProfile_Singleton checks the store profile persists as one row.
func TestProfile_Singleton(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	profile, err := s.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() failed: %v", err)
	}
	if profile.ID != model.ProfileID {
		t.Errorf("profile.ID = %q, want %q", profile.ID, model.ProfileID)
	}
	if profile.Name == "" {
		t.Error("default profile has no name")
	}

	if _, err := s.UpdateProfile(ctx, map[string]any{"name": "Sharma Electronics"}); err != nil {
		t.Fatalf("UpdateProfile() failed: %v", err)
	}

	again, err := s.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() failed: %v", err)
	}
	if again.Name != "Sharma Electronics" {
		t.Errorf("profile.Name = %q, want %q", again.Name, "Sharma Electronics")
	}

	count, err := s.DB.Count(ctx, StoreProfile)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("profile rows = %d, want 1", count)
	}
}
