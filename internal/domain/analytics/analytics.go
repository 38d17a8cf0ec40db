// Package analytics derives time-bucketed revenue metrics, customer value
// rankings, and growth figures from the accumulated order history. It is
// read-only: every call recomputes from the repository port, bounded by the
// requested window, with no state of its own.
package analytics

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/averku/orderdesk/internal/domain/order"
)

// ErrNoOrders is returned when customer analytics are requested for a
// customer without any revenue-bearing orders.
var ErrNoOrders = errors.New("customer has no orders")

// InvalidArgumentError reports unusable analytics parameters: inverted date
// ranges, non-positive limits, or mixed currencies inside one window.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}

// DailyMetric is the per-calendar-day aggregate. Date is midnight UTC.
type DailyMetric struct {
	Date              time.Time
	OrderCount        int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	Currency          string
}

// PeriodSummary folds a gap-filled daily series into one figure per period.
type PeriodSummary struct {
	PeriodStart       time.Time
	PeriodEnd         time.Time
	TotalRevenue      decimal.Decimal
	TotalOrders       int
	AverageOrderValue decimal.Decimal
	Currency          string
}

// CustomerAnalytics is the fold of one customer's revenue-bearing orders.
type CustomerAnalytics struct {
	CustomerID        string
	CustomerEmail     string
	TotalOrders       int
	TotalSpent        decimal.Decimal
	AverageOrderValue decimal.Decimal
	FirstOrderDate    time.Time
	LastOrderDate     time.Time
}

// StatusMetric is the per-status aggregate over a window. Unlike revenue
// aggregates it covers every status, cancelled included.
type StatusMetric struct {
	Status     order.Status
	Count      int
	TotalValue decimal.Decimal
	Percentage float64
}

// DayCount marks the day with the most orders in a window.
type DayCount struct {
	Date       time.Time
	OrderCount int
}

// DayRevenue marks the day with the highest revenue in a window.
type DayRevenue struct {
	Date         time.Time
	TotalRevenue decimal.Decimal
}

// Summary is the combined reporting view over one window.
type Summary struct {
	Period            PeriodSummary
	StatusBreakdown   []StatusMetric
	DailyTrend        []DailyMetric
	TopCustomers      []CustomerAnalytics
	GrowthRate        decimal.Decimal
	BusiestDay        *DayCount
	HighestRevenueDay *DayRevenue
}

// GrowthRate returns the period-over-period revenue change as a percentage
// rounded to two places. A previous period with zero revenue yields 0 rather
// than an error: growth against nothing is treated as no growth.
func GrowthRate(current, previous PeriodSummary) decimal.Decimal {
	if !previous.TotalRevenue.IsPositive() {
		return decimal.Zero
	}
	return current.TotalRevenue.
		Sub(previous.TotalRevenue).
		Div(previous.TotalRevenue).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// Day truncates t to midnight UTC, the bucket key for all daily series.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
