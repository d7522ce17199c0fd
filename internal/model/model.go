// Package model defines the business entities stored by the local database.
//
// Every entity is a flat record keyed by a string ID unique within its
// collection. Records are stored as JSON documents with last-write-wins
// semantics; each field can be updated independently through a shallow merge.
package model

import (
	"fmt"
	"time"
)

// Visibility controls where a product is listed.
type Visibility string

const (
	VisibilityOnline  Visibility = "online"
	VisibilityOffline Visibility = "offline"
	VisibilityBoth    Visibility = "both"
)

// Product is a catalog item with stock tracking.
type Product struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	SKU          string     `json:"sku,omitempty"` // display key, uniqueness not enforced by storage
	Price        float64    `json:"price"`
	Cost         float64    `json:"cost,omitempty"`
	Stock        int        `json:"stock"`
	Category     string     `json:"category,omitempty"`
	GSTRate      float64    `json:"gstRate,omitempty"`
	ReorderLevel int        `json:"reorderLevel,omitempty"`
	Images       []string   `json:"images,omitempty"` // ordered, encoded image data
	SupplierID   string     `json:"supplierId,omitempty"`
	Visibility   Visibility `json:"visibility,omitempty"`
}

// RecordID implements store.Record.
func (p Product) RecordID() string { return p.ID }

// Validate checks the product has usable field values.
func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Price < 0 {
		return fmt.Errorf("price must not be negative (got %v)", p.Price)
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock must not be negative (got %d)", p.Stock)
	}
	switch p.Visibility {
	case "", VisibilityOnline, VisibilityOffline, VisibilityBoth:
	default:
		return fmt.Errorf("invalid visibility %q", p.Visibility)
	}
	return nil
}

// Customer carries a running udhaar balance: the outstanding credit owed to
// the business. The balance grows by the unpaid remainder of every sale
// attributed to the customer and shrinks by every payment collected.
type Customer struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone,omitempty"`
	Balance       float64    `json:"balance"`
	PurchaseCount int        `json:"purchaseCount"`
	LastVisit     *time.Time `json:"lastVisit,omitempty"`
}

// RecordID implements store.Record.
func (c Customer) RecordID() string { return c.ID }

// Validate checks the customer has usable field values.
func (c Customer) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// SaleStatus is the payment state of a sale.
type SaleStatus string

const (
	SalePaid    SaleStatus = "Paid"
	SalePartial SaleStatus = "Partial"
	SalePending SaleStatus = "Pending"
)

// DeriveSaleStatus computes the payment status from amounts.
// It is a pure function and must be re-applied whenever either amount changes.
func DeriveSaleStatus(amount, paid float64) SaleStatus {
	switch {
	case paid >= amount:
		return SalePaid
	case paid > 0:
		return SalePartial
	default:
		return SalePending
	}
}

// SaleItem is one cart line on a sale.
type SaleItem struct {
	ProductID string  `json:"productId,omitempty"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Sale is an invoice. Customer name and phone are denormalized snapshots, not
// foreign keys: the sale must remain readable after the customer record is
// edited or deleted.
type Sale struct {
	ID            string     `json:"id"` // invoice number
	CustomerName  string     `json:"customerName,omitempty"`
	CustomerPhone string     `json:"customerPhone,omitempty"`
	Item          string     `json:"item,omitempty"` // free-text description
	Items         []SaleItem `json:"items,omitempty"`
	Amount        float64    `json:"amount"`
	PaidAmount    float64    `json:"paidAmount"`
	Status        SaleStatus `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	PaymentLink   string     `json:"paymentLink,omitempty"`
	PDFRef        string     `json:"pdfRef,omitempty"`
}

// RecordID implements store.Record.
func (s Sale) RecordID() string { return s.ID }

// Validate checks the sale has usable field values and a consistent status.
func (s Sale) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Amount < 0 {
		return fmt.Errorf("amount must not be negative (got %v)", s.Amount)
	}
	if s.PaidAmount < 0 {
		return fmt.Errorf("paidAmount must not be negative (got %v)", s.PaidAmount)
	}
	if want := DeriveSaleStatus(s.Amount, s.PaidAmount); s.Status != want {
		return fmt.Errorf("status %q does not match amounts (want %q)", s.Status, want)
	}
	return nil
}

// Outstanding returns the unpaid remainder of the sale, never negative.
func (s Sale) Outstanding() float64 {
	if rem := s.Amount - s.PaidAmount; rem > 0 {
		return rem
	}
	return 0
}

// Payment is an append-only ledger entry. It is never mutated after creation.
type Payment struct {
	ID           string    `json:"id"`
	SaleID       string    `json:"saleId"`
	CustomerName string    `json:"customerName,omitempty"`
	Amount       float64   `json:"amount"`
	Method       string    `json:"method,omitempty"` // cash, upi, card
	CreatedAt    time.Time `json:"createdAt"`
}

// RecordID implements store.Record.
func (p Payment) RecordID() string { return p.ID }

// Validate checks the payment has usable field values.
func (p Payment) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.SaleID == "" {
		return fmt.Errorf("saleId is required")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive (got %v)", p.Amount)
	}
	return nil
}

// Favorite pins a product to the quick-sell grid. Favorites list in explicit
// position order rather than insertion order.
type Favorite struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Position  int    `json:"position"`
}

// RecordID implements store.Record.
func (f Favorite) RecordID() string { return f.ID }

// Reminder is a follow-up note, usually for collecting udhaar.
type Reminder struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId,omitempty"`
	Note       string    `json:"note"`
	DueAt      time.Time `json:"dueAt"`
	Done       bool      `json:"done"`
}

// RecordID implements store.Record.
func (r Reminder) RecordID() string { return r.ID }

// ProfileID is the fixed key of the singleton store profile row.
const ProfileID = "profile"

// StoreProfile describes the business. It is a single-row configuration
// record persisted like any other collection so it survives restarts.
type StoreProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Tagline string `json:"tagline,omitempty"`
	GSTIN   string `json:"gstin,omitempty"`
	Logo    string `json:"logo,omitempty"` // encoded image data
}

// RecordID implements store.Record.
func (p StoreProfile) RecordID() string { return p.ID }

// DefaultProfile returns the profile used until the owner fills in their own.
func DefaultProfile() StoreProfile {
	return StoreProfile{
		ID:   ProfileID,
		Name: "My Shop",
		Slug: "my-shop",
	}
}
