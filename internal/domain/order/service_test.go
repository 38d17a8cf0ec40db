package order

import (
	"context"
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averku/orderdesk/internal/domain/money"
)

// --- Mock repository ---

type mockRepo struct {
	orders    map[string]*Order
	createErr error
	updateErr error
	getErr    error
}

func newMockRepo() *mockRepo {
	return &mockRepo{orders: make(map[string]*Order)}
}

func (m *mockRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, o *Order) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	o.Version++
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepo) GetByNumber(_ context.Context, number string) (*Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) List(_ context.Context, f Filter, page, pageSize int) ([]Order, int, error) {
	var all []Order
	for _, o := range m.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, *o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := min(start+pageSize, total)
	return all[start:end], total, nil
}

// --- Helpers ---

var testClock = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	svc := NewService(repo, money.DefaultLimits())
	svc.now = func() time.Time { return testClock }
	return svc
}

func testAddress() Address {
	return Address{
		Street:     "42 Harbour Rd",
		City:       "Portsmouth",
		State:      "NH",
		PostalCode: "03801",
		Country:    "US",
	}
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		CustomerID:    "cust-1",
		CustomerEmail: "jamie@example.com",
		Items: []ItemRequest{
			{ProductID: "p1", ProductName: "Widget", Quantity: 2, UnitPrice: decimal.RequireFromString("29.99")},
			{ProductID: "p2", ProductName: "Gadget", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		},
		TaxAmount:      decimal.RequireFromString("5.99"),
		ShippingAmount: decimal.RequireFromString("9.99"),
		BillingAddress: testAddress(),
		Payment:        PaymentRequest{Method: PaymentCreditCard, LastFourDigits: "4242"},
	}
}

func seedOrder(t *testing.T, svc *Service, repo *mockRepo, status Status) *Order {
	t.Helper()
	o, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	if status != StatusPending {
		stored := repo.orders[o.ID]
		stored.Status = status
		o.Status = status
	}
	return o
}

// --- Create ---

func TestCreate_TotalsFromExample(t *testing.T) {
	svc := newTestService(newMockRepo())

	o, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("69.98").Equal(o.Subtotal), "subtotal %s", o.Subtotal)
	assert.True(t, decimal.RequireFromString("85.96").Equal(o.TotalAmount), "total %s", o.TotalAmount)
	assert.True(t, decimal.RequireFromString("59.98").Equal(o.Items[0].TotalPrice))
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "USD", o.Currency)
	assert.Equal(t, testClock, o.CreatedAt)
	assert.Nil(t, o.UpdatedAt)
}

func TestCreate_OrderNumberFormat(t *testing.T) {
	svc := newTestService(newMockRepo())

	o, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ORD-20260115-[0-9A-F]{8}$`), o.OrderNumber)
}

func TestCreate_ShippingDefaultsToBilling(t *testing.T) {
	svc := newTestService(newMockRepo())

	o, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, o.BillingAddress, o.ShippingAddress)

	req := validCreateRequest()
	other := testAddress()
	other.City = "Dover"
	req.ShippingAddress = &other
	o2, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Dover", o2.ShippingAddress.City)
	assert.Equal(t, "Portsmouth", o2.BillingAddress.City)
}

func TestCreate_ValidationFailures(t *testing.T) {
	svc := newTestService(newMockRepo())

	tests := []struct {
		name      string
		mutate    func(*CreateRequest)
		wantField string
	}{
		{
			name:      "missing customer id",
			mutate:    func(r *CreateRequest) { r.CustomerID = "" },
			wantField: "customer_id",
		},
		{
			name:      "bad email",
			mutate:    func(r *CreateRequest) { r.CustomerEmail = "not-an-email" },
			wantField: "customer_email",
		},
		{
			name:      "missing product name",
			mutate:    func(r *CreateRequest) { r.Items[0].ProductName = "" },
			wantField: "items[0].product_name",
		},
		{
			name:      "bad billing address",
			mutate:    func(r *CreateRequest) { r.BillingAddress.PostalCode = "1" },
			wantField: "billing_address.postal_code",
		},
		{
			name:      "bad payment method",
			mutate:    func(r *CreateRequest) { r.Payment.Method = "barter" },
			wantField: "payment_info.method",
		},
		{
			name:      "bad currency",
			mutate:    func(r *CreateRequest) { r.Currency = "DOLLARS" },
			wantField: "currency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)

			_, err := svc.Create(context.Background(), req)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestCreate_MoneyValidationFailures(t *testing.T) {
	svc := newTestService(newMockRepo())

	tests := []struct {
		name      string
		mutate    func(*CreateRequest)
		wantField string
	}{
		{
			name:      "zero quantity",
			mutate:    func(r *CreateRequest) { r.Items[1].Quantity = 0 },
			wantField: "items[1].quantity",
		},
		{
			name:      "excessive quantity",
			mutate:    func(r *CreateRequest) { r.Items[0].Quantity = 10001 },
			wantField: "items[0].quantity",
		},
		{
			name:      "negative unit price",
			mutate:    func(r *CreateRequest) { r.Items[0].UnitPrice = decimal.RequireFromString("-1") },
			wantField: "items[0].unit_price",
		},
		{
			name:      "negative tax",
			mutate:    func(r *CreateRequest) { r.TaxAmount = decimal.RequireFromString("-0.01") },
			wantField: "tax_amount",
		},
		{
			name: "discount exceeds total",
			mutate: func(r *CreateRequest) {
				r.DiscountAmount = decimal.RequireFromString("1000.00")
			},
			wantField: "total_amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)

			_, err := svc.Create(context.Background(), req)
			var vErr *money.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestCreate_EmptyItems(t *testing.T) {
	svc := newTestService(newMockRepo())

	req := validCreateRequest()
	req.Items = nil
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreate_DuplicateOrderNumberSurfaced(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = ErrDuplicateOrderNumber
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.ErrorIs(t, err, ErrDuplicateOrderNumber)
}

// --- Update ---

func TestUpdate_RepricesOnItemChange(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	o := seedOrder(t, svc, repo, StatusPending)

	updated, err := svc.Update(context.Background(), o.ID, UpdateRequest{
		Items: []ItemRequest{
			{ProductID: "p9", ProductName: "Sprocket", Quantity: 3, UnitPrice: decimal.RequireFromString("5.00")},
		},
	})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("15.00").Equal(updated.Subtotal))
	// tax 5.99 + shipping 9.99 carried over
	assert.True(t, decimal.RequireFromString("30.98").Equal(updated.TotalAmount), "total %s", updated.TotalAmount)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, testClock, *updated.UpdatedAt)
}

func TestUpdate_AdjustmentChangeRepricesTotal(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	o := seedOrder(t, svc, repo, StatusConfirmed)

	discount := decimal.RequireFromString("10.00")
	updated, err := svc.Update(context.Background(), o.ID, UpdateRequest{DiscountAmount: &discount})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("75.96").Equal(updated.TotalAmount), "total %s", updated.TotalAmount)
}

func TestUpdate_NotesOnlyKeepsTotals(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	o := seedOrder(t, svc, repo, StatusPending)

	notes := "leave at the door"
	updated, err := svc.Update(context.Background(), o.ID, UpdateRequest{Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, notes, updated.Notes)
	assert.True(t, o.TotalAmount.Equal(updated.TotalAmount))
}

func TestUpdate_RejectedOncePastConfirmed(t *testing.T) {
	for _, status := range []Status{StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMockRepo()
			svc := newTestService(repo)
			o := seedOrder(t, svc, repo, status)

			notes := "too late"
			_, err := svc.Update(context.Background(), o.ID, UpdateRequest{Notes: &notes})
			require.ErrorIs(t, err, ErrNotEditable)
		})
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := newTestService(newMockRepo())

	_, err := svc.Update(context.Background(), "missing", UpdateRequest{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_ConcurrencyConflictSurfaced(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	o := seedOrder(t, svc, repo, StatusPending)

	repo.updateErr = ErrConcurrencyConflict
	notes := "racing"
	_, err := svc.Update(context.Background(), o.ID, UpdateRequest{Notes: &notes})
	require.ErrorIs(t, err, ErrConcurrencyConflict)
}

// --- Transition / Cancel ---

func TestTransition_FullChain(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	o := seedOrder(t, svc, repo, StatusPending)

	for _, target := range []Status{StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered} {
		updated, err := svc.Transition(context.Background(), o.ID, target)
		require.NoError(t, err, "transition to %s", target)
		assert.Equal(t, target, updated.Status)
		require.NotNil(t, updated.UpdatedAt)
	}
}

func TestTransition_SkippingStatesRejected(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	o := seedOrder(t, svc, repo, StatusPending)

	_, err := svc.Transition(context.Background(), o.ID, StatusShipped)
	var tErr *TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StatusPending, tErr.From)
	assert.Equal(t, StatusShipped, tErr.To)
}

func TestTransition_UnknownStatus(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	o := seedOrder(t, svc, repo, StatusPending)

	_, err := svc.Transition(context.Background(), o.ID, Status("refunded"))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestCancel(t *testing.T) {
	cancellable := []Status{StatusPending, StatusConfirmed, StatusProcessing}
	for _, status := range cancellable {
		t.Run("from_"+string(status), func(t *testing.T) {
			repo := newMockRepo()
			svc := newTestService(repo)
			o := seedOrder(t, svc, repo, status)

			updated, err := svc.Cancel(context.Background(), o.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, updated.Status)
		})
	}

	locked := []Status{StatusShipped, StatusDelivered}
	for _, status := range locked {
		t.Run("from_"+string(status), func(t *testing.T) {
			repo := newMockRepo()
			svc := newTestService(repo)
			o := seedOrder(t, svc, repo, status)

			_, err := svc.Cancel(context.Background(), o.ID)
			var tErr *TransitionError
			require.ErrorAs(t, err, &tErr)
		})
	}
}

// --- Reads ---

func TestGetByNumber(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	o := seedOrder(t, svc, repo, StatusPending)

	got, err := svc.GetByNumber(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = svc.GetByNumber(context.Background(), "ORD-19700101-DEADBEEF")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_ClampsPagination(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	seedOrder(t, svc, repo, StatusPending)

	orders, total, err := svc.List(context.Background(), Filter{}, 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, orders, 1)
}
