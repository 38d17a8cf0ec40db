//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/averku/orderdesk/internal/domain/order"
)

// Repository-level tests for behaviors the HTTP surface cannot force
// deterministically: duplicate numbers, stale versions, date boundaries.

func storedOrder(number, customerID string, createdAt time.Time) *order.Order {
	price := decimal.RequireFromString("10.00")
	return &order.Order{
		ID:            uuid.NewString(),
		OrderNumber:   number,
		CustomerID:    customerID,
		CustomerEmail: customerID + "@example.com",
		Status:        order.StatusPending,
		Items: []order.OrderItem{
			{ProductID: "p1", ProductName: "Widget", Quantity: 1, UnitPrice: price, TotalPrice: price},
		},
		Subtotal:       price,
		TaxAmount:      decimal.Zero,
		ShippingAmount: decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalAmount:    price,
		Currency:       "USD",
		BillingAddress: order.Address{
			Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
		},
		ShippingAddress: order.Address{
			Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
		},
		Payment:   order.PaymentInfo{Method: order.PaymentCreditCard, Status: order.PaymentPending},
		Source:    "api",
		CreatedAt: createdAt,
	}
}

func testNumber() string {
	return fmt.Sprintf("ORD-20260101-%s", uuid.NewString()[:8])
}

func TestRepo_CreateDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	number := testNumber()

	first := storedOrder(number, "cust-dup", time.Now().UTC())
	if err := orderRepo.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := storedOrder(number, "cust-dup", time.Now().UTC())
	err := orderRepo.Create(ctx, second)
	if !errors.Is(err, order.ErrDuplicateOrderNumber) {
		t.Fatalf("expected ErrDuplicateOrderNumber, got %v", err)
	}
}

func TestRepo_UpdateStaleVersion(t *testing.T) {
	ctx := context.Background()

	o := storedOrder(testNumber(), "cust-stale", time.Now().UTC())
	if err := orderRepo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	// First writer wins.
	fresh := *o
	fresh.Notes = "first writer"
	if err := orderRepo.Update(ctx, &fresh); err != nil {
		t.Fatalf("update fresh: %v", err)
	}
	if fresh.Version != o.Version+1 {
		t.Errorf("version after update: got %d, want %d", fresh.Version, o.Version+1)
	}

	// Second writer still holds the old version.
	stale := *o
	stale.Notes = "second writer"
	err := orderRepo.Update(ctx, &stale)
	if !errors.Is(err, order.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestRepo_UpdateMissing(t *testing.T) {
	o := storedOrder(testNumber(), "cust-ghost", time.Now().UTC())
	err := orderRepo.Update(context.Background(), o)
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_DeleteMissing(t *testing.T) {
	err := orderRepo.Delete(context.Background(), uuid.NewString())
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_RoundTripPreservesDocuments(t *testing.T) {
	ctx := context.Background()

	o := storedOrder(testNumber(), "cust-roundtrip", time.Now().UTC().Truncate(time.Microsecond))
	o.Payment.TransactionID = "txn-123"
	o.Payment.LastFourDigits = "4242"
	o.Notes = "ring twice"

	if err := orderRepo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := orderRepo.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Payment != o.Payment {
		t.Errorf("payment: got %+v, want %+v", got.Payment, o.Payment)
	}
	if got.BillingAddress != o.BillingAddress {
		t.Errorf("billing address: got %+v, want %+v", got.BillingAddress, o.BillingAddress)
	}
	if len(got.Items) != 1 || !got.Items[0].UnitPrice.Equal(o.Items[0].UnitPrice) {
		t.Errorf("items: got %+v, want %+v", got.Items, o.Items)
	}
	if !got.CreatedAt.Equal(o.CreatedAt) {
		t.Errorf("created at: got %v, want %v", got.CreatedAt, o.CreatedAt)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Errorf("created at location: got %v, want UTC", got.CreatedAt.Location())
	}
	if got.Notes != o.Notes {
		t.Errorf("notes: got %q, want %q", got.Notes, o.Notes)
	}
}

func TestRepo_ListDateBoundaries(t *testing.T) {
	truncateOrders(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(-time.Second),   // before window
		base,                     // lower bound, included
		base.Add(36 * time.Hour), // inside
		base.AddDate(0, 0, 3),    // upper bound, excluded
	}
	for i, ts := range times {
		o := storedOrder(testNumber(), fmt.Sprintf("cust-range-%d", i), ts)
		if err := orderRepo.Create(ctx, o); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	orders, total, err := orderRepo.List(ctx, order.Filter{
		CreatedFrom: base,
		CreatedTo:   base.AddDate(0, 0, 3),
	}, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Errorf("total: got %d, want 2", total)
	}
	if len(orders) != 2 {
		t.Fatalf("orders: got %d, want 2", len(orders))
	}
	// Ascending by creation time.
	if !orders[0].CreatedAt.Before(orders[1].CreatedAt) {
		t.Errorf("expected ascending creation order, got %v then %v",
			orders[0].CreatedAt, orders[1].CreatedAt)
	}
}
