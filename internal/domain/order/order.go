// Package order holds the order aggregate, its status state machine, and the
// lifecycle service that enforces both.
package order

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate root for a customer order. Monetary fields are
// normalized decimals with two fractional digits; TotalAmount is always
// derived as subtotal + tax + shipping - discount and never set directly.
type Order struct {
	ID            string
	OrderNumber   string
	CustomerID    string
	CustomerEmail string
	Status        Status
	Items         []OrderItem

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	Currency       string

	BillingAddress  Address
	ShippingAddress Address
	Payment         PaymentInfo

	Notes  string
	Source string

	// Version supports optimistic concurrency on writes. The repository
	// increments it on every successful update.
	Version   int64
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// OrderItem is a single line of an order. TotalPrice is always
// quantity * unit price rounded to two places.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Address is a billing or shipping address.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentPaypal     PaymentMethod = "paypal"
	PaymentApplePay   PaymentMethod = "apple_pay"
	PaymentGooglePay  PaymentMethod = "google_pay"
)

var paymentMethods = map[PaymentMethod]struct{}{
	PaymentCreditCard: {},
	PaymentDebitCard:  {},
	PaymentPaypal:     {},
	PaymentApplePay:   {},
	PaymentGooglePay:  {},
}

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethods[m]
	return ok
}

// PaymentStatus tracks the payment side of an order.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// PaymentInfo is the payment reference attached to an order. Processing
// itself happens in an external system; the order only records the outcome.
type PaymentInfo struct {
	Method         PaymentMethod `json:"method"`
	Status         PaymentStatus `json:"status"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	LastFourDigits string        `json:"last_four_digits,omitempty"`
	Processor      string        `json:"processor,omitempty"`
}

// Filter narrows List queries. Zero-valued fields are ignored.
type Filter struct {
	CustomerID  string
	Status      Status
	CreatedFrom time.Time
	CreatedTo   time.Time
}

// Repository is the persistence port for orders. Implementations must map a
// unique violation on the order number to ErrDuplicateOrderNumber, a missing
// row to ErrNotFound, and a stale-version update to ErrConcurrencyConflict.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// Update replaces the stored order if the stored version matches
	// o.Version, then increments o.Version.
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	// List returns one page of matching orders ordered by creation time
	// ascending, plus the total match count. pageSize must be positive;
	// implementations never return unbounded result sets.
	List(ctx context.Context, f Filter, page, pageSize int) ([]Order, int, error)
}

// emailPattern is loose: one @, something on both sides, a dot in the
// domain. Strict RFC 5322 validation rejects real addresses.
var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

// validate checks the address text fields and reports the first violation
// with the full field path.
func (a Address) validate(prefix string) error {
	checks := []struct {
		field    string
		value    string
		min, max int
	}{
		{"street", a.Street, 1, 255},
		{"city", a.City, 1, 100},
		{"state", a.State, 2, 50},
		{"postal_code", a.PostalCode, 5, 20},
		{"country", a.Country, 2, 2},
	}
	for _, c := range checks {
		if len(c.value) < c.min || len(c.value) > c.max {
			return &ValidationError{
				Field:  prefix + "." + c.field,
				Reason: fmt.Sprintf("length must be between %d and %d", c.min, c.max),
			}
		}
	}
	return nil
}
