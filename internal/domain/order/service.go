package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/averku/orderdesk/internal/domain/money"
)

// maxItems caps the number of lines a single order may carry.
const maxItems = 100

// defaultCurrency applies when a request leaves the currency blank.
const defaultCurrency = "USD"

// ItemRequest is one requested order line. TotalPrice is derived, never
// supplied.
type ItemRequest struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// PaymentRequest carries the payment reference supplied at creation.
type PaymentRequest struct {
	Method         PaymentMethod
	LastFourDigits string
}

// CreateRequest holds the input for creating an order. Free-text fields are
// expected to be sanitized by the caller before they reach the service.
type CreateRequest struct {
	CustomerID     string
	CustomerEmail  string
	Items          []ItemRequest
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	Currency       string
	BillingAddress Address
	// ShippingAddress defaults to the billing address when nil.
	ShippingAddress *Address
	Payment         PaymentRequest
	Notes           string
	Source          string
}

// UpdateRequest holds a partial update. Nil fields are left unchanged.
// Changing items or any adjustment amount recomputes the totals.
type UpdateRequest struct {
	Items           []ItemRequest
	TaxAmount       *decimal.Decimal
	ShippingAmount  *decimal.Decimal
	DiscountAmount  *decimal.Decimal
	ShippingAddress *Address
	Notes           *string
}

// Service is the order lifecycle manager: it validates input, computes
// totals through the money limits, enforces the status state machine, and
// persists through the repository port.
type Service struct {
	repo   Repository
	limits money.Limits
	now    func() time.Time
}

// NewService creates a lifecycle Service with the given repository and
// monetary limits.
func NewService(repo Repository, limits money.Limits) *Service {
	return &Service{
		repo:   repo,
		limits: limits,
		now:    time.Now,
	}
}

// Create validates the request, derives totals, assigns identifiers, and
// persists a new pending order.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if err := s.validateCustomer(req.CustomerID, req.CustomerEmail); err != nil {
		return nil, err
	}

	items, subtotal, err := s.buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	tax, err := s.limits.Normalize("tax_amount", req.TaxAmount)
	if err != nil {
		return nil, err
	}
	shipping, err := s.limits.Normalize("shipping_amount", req.ShippingAmount)
	if err != nil {
		return nil, err
	}
	discount, err := s.limits.Normalize("discount_amount", req.DiscountAmount)
	if err != nil {
		return nil, err
	}

	total, err := s.computeTotal(subtotal, tax, shipping, discount)
	if err != nil {
		return nil, err
	}

	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	if err := req.BillingAddress.validate("billing_address"); err != nil {
		return nil, err
	}
	shippingAddr := req.BillingAddress
	if req.ShippingAddress != nil {
		if err := req.ShippingAddress.validate("shipping_address"); err != nil {
			return nil, err
		}
		shippingAddr = *req.ShippingAddress
	}

	if !req.Payment.Method.Valid() {
		return nil, &ValidationError{Field: "payment_info.method", Reason: "unknown payment method"}
	}

	now := s.now().UTC()
	o := &Order{
		ID:              uuid.New().String(),
		OrderNumber:     s.orderNumber(now),
		CustomerID:      req.CustomerID,
		CustomerEmail:   req.CustomerEmail,
		Status:          StatusPending,
		Items:           items,
		Subtotal:        subtotal,
		TaxAmount:       tax,
		ShippingAmount:  shipping,
		DiscountAmount:  discount,
		TotalAmount:     total,
		Currency:        currency,
		BillingAddress:  req.BillingAddress,
		ShippingAddress: shippingAddr,
		Payment: PaymentInfo{
			Method:         req.Payment.Method,
			Status:         PaymentPending,
			LastFourDigits: req.Payment.LastFourDigits,
		},
		Notes:     req.Notes,
		Source:    orDefault(req.Source, "api"),
		CreatedAt: now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateOrderNumber) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Update applies a partial update to an order that is still editable and
// recomputes totals when pricing inputs change.
func (s *Service) Update(ctx context.Context, orderID string, req UpdateRequest) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.Editable() {
		return nil, ErrNotEditable
	}

	reprice := false

	if req.Items != nil {
		items, subtotal, err := s.buildItems(req.Items)
		if err != nil {
			return nil, err
		}
		o.Items = items
		o.Subtotal = subtotal
		reprice = true
	}
	if req.TaxAmount != nil {
		tax, err := s.limits.Normalize("tax_amount", *req.TaxAmount)
		if err != nil {
			return nil, err
		}
		o.TaxAmount = tax
		reprice = true
	}
	if req.ShippingAmount != nil {
		shipping, err := s.limits.Normalize("shipping_amount", *req.ShippingAmount)
		if err != nil {
			return nil, err
		}
		o.ShippingAmount = shipping
		reprice = true
	}
	if req.DiscountAmount != nil {
		discount, err := s.limits.Normalize("discount_amount", *req.DiscountAmount)
		if err != nil {
			return nil, err
		}
		o.DiscountAmount = discount
		reprice = true
	}
	if req.ShippingAddress != nil {
		if err := req.ShippingAddress.validate("shipping_address"); err != nil {
			return nil, err
		}
		o.ShippingAddress = *req.ShippingAddress
	}
	if req.Notes != nil {
		o.Notes = *req.Notes
	}

	if reprice {
		total, err := s.computeTotal(o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount)
		if err != nil {
			return nil, err
		}
		o.TotalAmount = total
	}

	s.stamp(o)
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Transition moves an order to target if the state machine allows it,
// stamping updated_at.
func (s *Service) Transition(ctx context.Context, orderID string, target Status) (*Order, error) {
	if !target.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", string(target))}
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(target) {
		return nil, &TransitionError{From: o.Status, To: target}
	}

	o.Status = target
	s.stamp(o)
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Cancel is shorthand for a transition to cancelled.
func (s *Service) Cancel(ctx context.Context, orderID string) (*Order, error) {
	return s.Transition(ctx, orderID, StatusCancelled)
}

// Get returns an order by its identifier.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// GetByNumber returns an order by its human-readable order number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns one page of orders matching the filter plus the total count.
// Page defaults to 1 and pageSize to 20, capped at 100.
func (s *Service) List(ctx context.Context, f Filter, page, pageSize int) ([]Order, int, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = 20
	case pageSize > 100:
		pageSize = 100
	}
	return s.repo.List(ctx, f, page, pageSize)
}

// Delete removes an order permanently. This is an administrative surface;
// regular flows cancel instead.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	return s.repo.Delete(ctx, orderID)
}

// buildItems validates the requested lines and derives per-line totals and
// the subtotal.
func (s *Service) buildItems(reqs []ItemRequest) ([]OrderItem, decimal.Decimal, error) {
	if len(reqs) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}
	if len(reqs) > maxItems {
		return nil, decimal.Zero, &ValidationError{
			Field:  "items",
			Reason: fmt.Sprintf("cannot exceed %d items", maxItems),
		}
	}

	items := make([]OrderItem, len(reqs))
	subtotal := decimal.Zero
	for i, req := range reqs {
		field := fmt.Sprintf("items[%d]", i)
		if req.ProductID == "" {
			return nil, decimal.Zero, &ValidationError{Field: field + ".product_id", Reason: "is required"}
		}
		if req.ProductName == "" || len(req.ProductName) > 255 {
			return nil, decimal.Zero, &ValidationError{
				Field:  field + ".product_name",
				Reason: "length must be between 1 and 255",
			}
		}
		if err := s.limits.CheckQuantity(field+".quantity", req.Quantity); err != nil {
			return nil, decimal.Zero, err
		}
		unitPrice, err := s.limits.Normalize(field+".unit_price", req.UnitPrice)
		if err != nil {
			return nil, decimal.Zero, err
		}
		totalPrice, err := s.limits.MulInt(field+".total_price", unitPrice, req.Quantity)
		if err != nil {
			return nil, decimal.Zero, err
		}
		subtotal, err = s.limits.Add("subtotal", subtotal, totalPrice)
		if err != nil {
			return nil, decimal.Zero, err
		}

		items[i] = OrderItem{
			ProductID:   req.ProductID,
			ProductName: req.ProductName,
			Quantity:    req.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  totalPrice,
		}
	}
	return items, subtotal, nil
}

// computeTotal derives subtotal + tax + shipping - discount, enforcing the
// bound on intermediates and rejecting a negative result.
func (s *Service) computeTotal(subtotal, tax, shipping, discount decimal.Decimal) (decimal.Decimal, error) {
	total, err := s.limits.Add("total_amount", subtotal, tax)
	if err != nil {
		return decimal.Zero, err
	}
	total, err = s.limits.Add("total_amount", total, shipping)
	if err != nil {
		return decimal.Zero, err
	}
	return s.limits.Sub("total_amount", total, discount)
}

// orderNumber builds a unique, human-readable, creation-time-sortable number:
// ORD-YYYYMMDD-XXXXXXXX with an eight character UUID-derived suffix.
// Uniqueness is best effort; the store's unique index is the backstop.
func (s *Service) orderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

func (s *Service) validateCustomer(id, email string) error {
	if id == "" {
		return &ValidationError{Field: "customer_id", Reason: "is required"}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "customer_email", Reason: "must be a valid email address"}
	}
	return nil
}

// stamp sets updated_at to the current clock reading.
func (s *Service) stamp(o *Order) {
	now := s.now().UTC()
	o.UpdatedAt = &now
}

func normalizeCurrency(c string) (string, error) {
	if c == "" {
		return defaultCurrency, nil
	}
	c = strings.ToUpper(c)
	if len(c) != 3 {
		return "", &ValidationError{Field: "currency", Reason: "must be a 3-letter code"}
	}
	return c, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
