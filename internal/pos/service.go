// Package pos composes the entity store collections into the retail flows:
// recording sales and payments, udhaar bookkeeping, job-card progression,
// favorites and reminders.
//
// All writes go through the entity store, so every flow here is queued for
// sync and broadcast to subscribers automatically.
package pos

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dukaanhq/dukaan-core/internal/model"
	"github.com/dukaanhq/dukaan-core/internal/store"
	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a job card is asked to move to a
// status its current status doesn't allow.
var ErrInvalidTransition = errors.New("invalid job card transition")

// Service provides the retail operations over a set of stores.
type Service struct {
	stores *store.Stores
	logger *log.Logger
	now    func() time.Time
}

// New creates a Service. If logger is nil, a default stderr logger is used.
func New(stores *store.Stores, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[pos] ", log.LstdFlags)
	}
	return &Service{stores: stores, logger: logger, now: time.Now}
}

// NewInvoiceID returns a fresh invoice number.
func NewInvoiceID() string {
	return "INV-" + strings.ToUpper(uuid.NewString()[:8])
}

// SaleInput describes a sale to record.
type SaleInput struct {
	// CustomerID attributes the sale to a customer for udhaar bookkeeping.
	// Optional: a walk-in sale carries only the denormalized name/phone.
	CustomerID string

	CustomerName  string
	CustomerPhone string

	Item       string
	Items      []model.SaleItem
	Amount     float64
	PaidAmount float64
}

// RecordSale creates a sale, decrements stock for each cart line (clamped at
// zero - stock is never negative after any mutation), and, when the sale is
// attributed to a customer, grows their balance by the unpaid remainder and
// bumps their purchase bookkeeping.
//
// The sale stores a snapshot of the customer's name and phone rather than a
// foreign key, so it stays readable after the customer is edited or deleted.
func (s *Service) RecordSale(ctx context.Context, in SaleInput) (model.Sale, error) {
	name, phone := in.CustomerName, in.CustomerPhone

	var customer model.Customer
	if in.CustomerID != "" {
		var err error
		customer, err = s.stores.Customers.Get(ctx, in.CustomerID)
		if err != nil {
			return model.Sale{}, err
		}
		if name == "" {
			name = customer.Name
		}
		if phone == "" {
			phone = customer.Phone
		}
	}

	now := s.now()
	sale := model.Sale{
		ID:            NewInvoiceID(),
		CustomerName:  name,
		CustomerPhone: phone,
		Item:          in.Item,
		Items:         in.Items,
		Amount:        in.Amount,
		PaidAmount:    in.PaidAmount,
		Status:        model.DeriveSaleStatus(in.Amount, in.PaidAmount),
		CreatedAt:     now,
	}
	if err := sale.Validate(); err != nil {
		return model.Sale{}, fmt.Errorf("invalid sale: %w", err)
	}

	if err := s.stores.Sales.Add(ctx, sale); err != nil {
		return model.Sale{}, err
	}

	for _, line := range in.Items {
		if line.ProductID == "" {
			continue
		}
		if _, err := s.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			s.logger.Printf("Warning: failed to adjust stock for %s: %v", line.ProductID, err)
		}
	}

	if in.CustomerID != "" {
		if _, err := s.stores.Customers.Update(ctx, in.CustomerID, map[string]any{
			"balance":       customer.Balance + sale.Outstanding(),
			"purchaseCount": customer.PurchaseCount + 1,
			"lastVisit":     now,
		}); err != nil {
			return model.Sale{}, err
		}
	}

	s.logger.Printf("Recorded sale %s: amount=%.2f paid=%.2f status=%s", sale.ID, sale.Amount, sale.PaidAmount, sale.Status)
	return sale, nil
}

// RecordPayment appends a ledger entry against a sale, recomputes the sale's
// status from the new paid amount, and shrinks the matching customer's
// balance, clamped at zero. Payments are append-only: nothing here mutates
// an existing payment.
func (s *Service) RecordPayment(ctx context.Context, saleID string, amount float64, method string) (model.Payment, error) {
	if amount <= 0 {
		return model.Payment{}, fmt.Errorf("payment amount must be positive (got %v)", amount)
	}

	sale, err := s.stores.Sales.Get(ctx, saleID)
	if err != nil {
		return model.Payment{}, err
	}

	payment := model.Payment{
		ID:           uuid.NewString(),
		SaleID:       saleID,
		CustomerName: sale.CustomerName,
		Amount:       amount,
		Method:       method,
		CreatedAt:    s.now(),
	}
	if err := payment.Validate(); err != nil {
		return model.Payment{}, fmt.Errorf("invalid payment: %w", err)
	}
	if err := s.stores.Payments.Add(ctx, payment); err != nil {
		return model.Payment{}, err
	}

	newPaid := sale.PaidAmount + amount
	if _, err := s.stores.Sales.Update(ctx, saleID, map[string]any{
		"paidAmount": newPaid,
		"status":     model.DeriveSaleStatus(sale.Amount, newPaid),
	}); err != nil {
		return model.Payment{}, err
	}

	if customer, ok := s.findCustomer(ctx, sale.CustomerName, sale.CustomerPhone); ok {
		balance := customer.Balance - amount
		if balance < 0 {
			balance = 0
		}
		if _, err := s.stores.Customers.Update(ctx, customer.ID, map[string]any{"balance": balance}); err != nil {
			return model.Payment{}, err
		}
	}

	s.logger.Printf("Recorded payment %.2f against %s", amount, saleID)
	return payment, nil
}

// findCustomer resolves the denormalized snapshot on a sale back to a live
// customer record, phone first. A deleted customer simply means no balance
// bookkeeping - the sale itself stays intact.
func (s *Service) findCustomer(ctx context.Context, name, phone string) (model.Customer, bool) {
	customers, err := s.stores.Customers.List(ctx)
	if err != nil {
		return model.Customer{}, false
	}
	if phone != "" {
		for _, c := range customers {
			if c.Phone == phone {
				return c, true
			}
		}
	}
	if name != "" {
		for _, c := range customers {
			if c.Name == name {
				return c, true
			}
		}
	}
	return model.Customer{}, false
}

// AdjustStock moves a product's stock by delta, clamped at zero.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) (model.Product, error) {
	product, err := s.stores.Products.Get(ctx, productID)
	if err != nil {
		return model.Product{}, err
	}

	stock := product.Stock + delta
	if stock < 0 {
		stock = 0
	}
	return s.stores.Products.Update(ctx, productID, map[string]any{"stock": stock})
}

// JobCardInput describes a device intake.
type JobCardInput struct {
	CustomerName  string
	CustomerPhone string
	Device        string
	Complaints    []string
	AdvancePaid   float64
}

// OpenJobCard creates a job card in the Received state.
func (s *Service) OpenJobCard(ctx context.Context, in JobCardInput) (model.JobCard, error) {
	now := s.now()
	card := model.JobCard{
		ID:            "JC-" + strings.ToUpper(uuid.NewString()[:8]),
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		Device:        in.Device,
		Complaints:    in.Complaints,
		AdvancePaid:   in.AdvancePaid,
		Status:        model.JobReceived,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := card.Validate(); err != nil {
		return model.JobCard{}, fmt.Errorf("invalid job card: %w", err)
	}
	if err := s.stores.JobCards.Add(ctx, card); err != nil {
		return model.JobCard{}, err
	}
	return card, nil
}

// TransitionJobCard moves a job card to a new status, enforcing the
// workflow's transition table.
func (s *Service) TransitionJobCard(ctx context.Context, id string, to model.JobStatus) (model.JobCard, error) {
	card, err := s.stores.JobCards.Get(ctx, id)
	if err != nil {
		return model.JobCard{}, err
	}
	if !model.CanTransition(card.Status, to) {
		return model.JobCard{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, card.Status, to)
	}
	return s.stores.JobCards.Update(ctx, id, map[string]any{
		"status":    to,
		"updatedAt": s.now(),
	})
}

// AppendWorkLog adds a note to a job card's work log. The log is ordered and
// append-only; existing entries are never rewritten.
func (s *Service) AppendWorkLog(ctx context.Context, id, note string) (model.JobCard, error) {
	card, err := s.stores.JobCards.Get(ctx, id)
	if err != nil {
		return model.JobCard{}, err
	}

	entry := model.WorkLogEntry{At: s.now(), Note: note}
	return s.stores.JobCards.Update(ctx, id, map[string]any{
		"workLog":   append(card.WorkLog, entry),
		"updatedAt": s.now(),
	})
}

// InvoiceJobCard bills a Ready job card: it creates a sale for the quoted
// estimate with the advance already counted as paid, and links the invoice
// back onto the card.
func (s *Service) InvoiceJobCard(ctx context.Context, id string) (model.Sale, error) {
	card, err := s.stores.JobCards.Get(ctx, id)
	if err != nil {
		return model.Sale{}, err
	}
	if card.Status != model.JobReady {
		return model.Sale{}, fmt.Errorf("job card %s is %s, not %s", id, card.Status, model.JobReady)
	}
	if card.InvoiceID != "" {
		return s.stores.Sales.Get(ctx, card.InvoiceID)
	}

	sale, err := s.RecordSale(ctx, SaleInput{
		CustomerName:  card.CustomerName,
		CustomerPhone: card.CustomerPhone,
		Item:          fmt.Sprintf("Repair: %s", card.Device),
		Amount:        card.EstimateTotal(),
		PaidAmount:    card.AdvancePaid,
	})
	if err != nil {
		return model.Sale{}, err
	}

	if _, err := s.stores.JobCards.Update(ctx, id, map[string]any{
		"invoiceId": sale.ID,
		"updatedAt": s.now(),
	}); err != nil {
		return model.Sale{}, err
	}
	return sale, nil
}

// ToggleFavorite pins a product to the quick-sell grid, or unpins it if
// already present. New favorites go to the end of the position order.
func (s *Service) ToggleFavorite(ctx context.Context, productID string) error {
	favorites, err := s.stores.Favorites.List(ctx)
	if err != nil {
		return err
	}

	maxPos := 0
	for _, f := range favorites {
		if f.ProductID == productID {
			return s.stores.Favorites.Remove(ctx, f.ID)
		}
		if f.Position > maxPos {
			maxPos = f.Position
		}
	}

	return s.stores.Favorites.Add(ctx, model.Favorite{
		ID:        "fav-" + productID,
		ProductID: productID,
		Position:  maxPos + 1,
	})
}

// DueReminders returns unfinished reminders due at or before now, oldest
// first.
func (s *Service) DueReminders(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	reminders, err := s.stores.Reminders.List(ctx)
	if err != nil {
		return nil, err
	}

	var due []model.Reminder
	for _, r := range reminders {
		if !r.Done && !r.DueAt.After(now) {
			due = append(due, r)
		}
	}
	return due, nil
}
