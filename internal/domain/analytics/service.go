package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/averku/orderdesk/internal/domain/order"
)

// defaultPageSize bounds repository scans when the config leaves it unset.
const defaultPageSize = 500

// summaryTopCustomers is how many customers the combined summary ranks.
const summaryTopCustomers = 5

// Config tunes the aggregator's scan size and revenue policy.
type Config struct {
	// PageSize is the repository page size used for window scans.
	PageSize int
	// ExcludedStatuses lists the statuses whose orders do not count toward
	// revenue aggregates. Defaults to cancelled only. This is policy, not
	// arithmetic: cancelled orders still exist, they just carry no revenue.
	ExcludedStatuses []order.Status
}

// Service computes analytics on demand from the order repository port.
type Service struct {
	orders   order.Repository
	pageSize int
	excluded map[order.Status]struct{}
	now      func() time.Time
}

// NewService creates an analytics Service reading through the given
// repository.
func NewService(orders order.Repository, cfg Config) *Service {
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	statuses := cfg.ExcludedStatuses
	if statuses == nil {
		statuses = []order.Status{order.StatusCancelled}
	}
	excluded := make(map[order.Status]struct{}, len(statuses))
	for _, s := range statuses {
		excluded[s] = struct{}{}
	}

	return &Service{
		orders:   orders,
		pageSize: pageSize,
		excluded: excluded,
		now:      time.Now,
	}
}

// DailyMetrics buckets the window's revenue-bearing orders by creation day
// and gap-fills: the result always holds exactly one entry per calendar day
// of [start, end], ascending, with zero-valued entries for days without
// orders.
func (s *Service) DailyMetrics(ctx context.Context, start, end time.Time) ([]DailyMetric, error) {
	start, end, err := normalizeRange(start, end)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		count   int
		revenue decimal.Decimal
	}
	buckets := make(map[time.Time]*bucket)
	currency := ""

	err = s.forEachInWindow(ctx, order.Filter{CreatedFrom: start, CreatedTo: end.AddDate(0, 0, 1)}, func(o order.Order) error {
		if s.excludedStatus(o.Status) {
			return nil
		}
		if err := checkCurrency(&currency, o.Currency); err != nil {
			return err
		}
		day := Day(o.CreatedAt)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{revenue: decimal.Zero}
			buckets[day] = b
		}
		b.count++
		b.revenue = b.revenue.Add(o.TotalAmount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if currency == "" {
		currency = "USD"
	}

	days := int(end.Sub(start).Hours()/24) + 1
	metrics := make([]DailyMetric, 0, days)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		m := DailyMetric{
			Date:              day,
			TotalRevenue:      decimal.Zero,
			AverageOrderValue: decimal.Zero,
			Currency:          currency,
		}
		if b, ok := buckets[day]; ok {
			m.OrderCount = b.count
			m.TotalRevenue = b.revenue
			m.AverageOrderValue = b.revenue.Div(decimal.NewFromInt(int64(b.count))).Round(2)
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

// PeriodSummary folds the gap-filled daily series into a single summary.
// Summing the dailies rather than re-scanning keeps the invariant that the
// period revenue equals the sum of the daily revenues exactly.
func (s *Service) PeriodSummary(ctx context.Context, start, end time.Time) (PeriodSummary, error) {
	metrics, err := s.DailyMetrics(ctx, start, end)
	if err != nil {
		return PeriodSummary{}, err
	}
	return foldDailies(metrics), nil
}

// RevenueTrend returns the daily series for the trailing N days ending
// today.
func (s *Service) RevenueTrend(ctx context.Context, days int) ([]DailyMetric, error) {
	if days < 1 {
		return nil, &InvalidArgumentError{Reason: "days must be positive"}
	}
	today := Day(s.now())
	return s.DailyMetrics(ctx, today.AddDate(0, 0, -(days-1)), today)
}

// TopCustomers ranks customers by total spend over the window, descending,
// ties broken by earliest first order. Zero start and end mean all time.
func (s *Service) TopCustomers(ctx context.Context, limit int, start, end time.Time) ([]CustomerAnalytics, error) {
	if limit < 1 {
		return nil, &InvalidArgumentError{Reason: "limit must be positive"}
	}

	f := order.Filter{}
	if !start.IsZero() || !end.IsZero() {
		var err error
		start, end, err = normalizeRange(start, end)
		if err != nil {
			return nil, err
		}
		f.CreatedFrom = start
		f.CreatedTo = end.AddDate(0, 0, 1)
	}

	byCustomer := make(map[string]*CustomerAnalytics)
	currency := ""
	err := s.forEachInWindow(ctx, f, func(o order.Order) error {
		if s.excludedStatus(o.Status) {
			return nil
		}
		if err := checkCurrency(&currency, o.Currency); err != nil {
			return err
		}
		c, ok := byCustomer[o.CustomerID]
		if !ok {
			c = &CustomerAnalytics{
				CustomerID:     o.CustomerID,
				CustomerEmail:  o.CustomerEmail,
				TotalSpent:     decimal.Zero,
				FirstOrderDate: o.CreatedAt,
				LastOrderDate:  o.CreatedAt,
			}
			byCustomer[o.CustomerID] = c
		}
		c.TotalOrders++
		c.TotalSpent = c.TotalSpent.Add(o.TotalAmount)
		if o.CreatedAt.Before(c.FirstOrderDate) {
			c.FirstOrderDate = o.CreatedAt
		}
		if o.CreatedAt.After(c.LastOrderDate) {
			c.LastOrderDate = o.CreatedAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ranked := make([]CustomerAnalytics, 0, len(byCustomer))
	for _, c := range byCustomer {
		c.AverageOrderValue = c.TotalSpent.Div(decimal.NewFromInt(int64(c.TotalOrders))).Round(2)
		ranked = append(ranked, *c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].TotalSpent.Equal(ranked[j].TotalSpent) {
			return ranked[i].TotalSpent.GreaterThan(ranked[j].TotalSpent)
		}
		if !ranked[i].FirstOrderDate.Equal(ranked[j].FirstOrderDate) {
			return ranked[i].FirstOrderDate.Before(ranked[j].FirstOrderDate)
		}
		return ranked[i].CustomerID < ranked[j].CustomerID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// CustomerAnalytics folds the full history of one customer. A customer with
// no revenue-bearing orders yields ErrNoOrders.
func (s *Service) CustomerAnalytics(ctx context.Context, customerID string) (CustomerAnalytics, error) {
	if customerID == "" {
		return CustomerAnalytics{}, &InvalidArgumentError{Reason: "customer id is required"}
	}

	result := CustomerAnalytics{CustomerID: customerID, TotalSpent: decimal.Zero}
	currency := ""
	err := s.forEachInWindow(ctx, order.Filter{CustomerID: customerID}, func(o order.Order) error {
		if s.excludedStatus(o.Status) {
			return nil
		}
		if err := checkCurrency(&currency, o.Currency); err != nil {
			return err
		}
		if result.TotalOrders == 0 {
			result.CustomerEmail = o.CustomerEmail
			result.FirstOrderDate = o.CreatedAt
			result.LastOrderDate = o.CreatedAt
		}
		result.TotalOrders++
		result.TotalSpent = result.TotalSpent.Add(o.TotalAmount)
		if o.CreatedAt.Before(result.FirstOrderDate) {
			result.FirstOrderDate = o.CreatedAt
		}
		if o.CreatedAt.After(result.LastOrderDate) {
			result.LastOrderDate = o.CreatedAt
		}
		return nil
	})
	if err != nil {
		return CustomerAnalytics{}, err
	}
	if result.TotalOrders == 0 {
		return CustomerAnalytics{}, ErrNoOrders
	}

	result.AverageOrderValue = result.TotalSpent.Div(decimal.NewFromInt(int64(result.TotalOrders))).Round(2)
	return result, nil
}

// StatusBreakdown aggregates the window's orders per status, every status
// included, with each status's share of the total order count.
func (s *Service) StatusBreakdown(ctx context.Context, start, end time.Time) ([]StatusMetric, error) {
	start, end, err := normalizeRange(start, end)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[order.Status]*StatusMetric)
	total := 0
	err = s.forEachInWindow(ctx, order.Filter{CreatedFrom: start, CreatedTo: end.AddDate(0, 0, 1)}, func(o order.Order) error {
		m, ok := byStatus[o.Status]
		if !ok {
			m = &StatusMetric{Status: o.Status, TotalValue: decimal.Zero}
			byStatus[o.Status] = m
		}
		m.Count++
		m.TotalValue = m.TotalValue.Add(o.TotalAmount)
		total++
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics := make([]StatusMetric, 0, len(byStatus))
	for _, m := range byStatus {
		share := decimal.NewFromInt(int64(m.Count)).
			Div(decimal.NewFromInt(int64(total))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		m.Percentage = share.InexactFloat64()
		metrics = append(metrics, *m)
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Count != metrics[j].Count {
			return metrics[i].Count > metrics[j].Count
		}
		return metrics[i].Status < metrics[j].Status
	})
	return metrics, nil
}

// Summary combines the period fold, status breakdown, top customers, growth
// against the immediately preceding window of equal length, and the busiest
// and highest-revenue days.
func (s *Service) Summary(ctx context.Context, start, end time.Time) (*Summary, error) {
	start, end, err := normalizeRange(start, end)
	if err != nil {
		return nil, err
	}

	dailies, err := s.DailyMetrics(ctx, start, end)
	if err != nil {
		return nil, err
	}
	period := foldDailies(dailies)

	breakdown, err := s.StatusBreakdown(ctx, start, end)
	if err != nil {
		return nil, err
	}

	top, err := s.TopCustomers(ctx, summaryTopCustomers, start, end)
	if err != nil {
		return nil, err
	}

	days := len(dailies)
	prevEnd := start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(days - 1))
	previous, err := s.PeriodSummary(ctx, prevStart, prevEnd)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Period:          period,
		StatusBreakdown: breakdown,
		DailyTrend:      dailies,
		TopCustomers:    top,
		GrowthRate:      GrowthRate(period, previous),
	}
	for _, m := range dailies {
		if m.OrderCount == 0 {
			continue
		}
		if summary.BusiestDay == nil || m.OrderCount > summary.BusiestDay.OrderCount {
			summary.BusiestDay = &DayCount{Date: m.Date, OrderCount: m.OrderCount}
		}
		if summary.HighestRevenueDay == nil || m.TotalRevenue.GreaterThan(summary.HighestRevenueDay.TotalRevenue) {
			summary.HighestRevenueDay = &DayRevenue{Date: m.Date, TotalRevenue: m.TotalRevenue}
		}
	}
	return summary, nil
}

// forEachInWindow pages through every order matching the filter, largest
// window first page by page, so no call ever asks the store for an unbounded
// result set.
func (s *Service) forEachInWindow(ctx context.Context, f order.Filter, fn func(order.Order) error) error {
	for page := 1; ; page++ {
		orders, total, err := s.orders.List(ctx, f, page, s.pageSize)
		if err != nil {
			return errors.Wrap(err, "list orders")
		}
		for _, o := range orders {
			if err := fn(o); err != nil {
				return err
			}
		}
		if page*s.pageSize >= total || len(orders) == 0 {
			return nil
		}
	}
}

func (s *Service) excludedStatus(status order.Status) bool {
	_, ok := s.excluded[status]
	return ok
}

// checkCurrency tracks the single currency of a window and fails fast on a
// mismatch; summing across currencies would silently produce nonsense.
func checkCurrency(seen *string, currency string) error {
	if *seen == "" {
		*seen = currency
		return nil
	}
	if *seen != currency {
		return &InvalidArgumentError{
			Reason: "window mixes currencies " + *seen + " and " + currency,
		}
	}
	return nil
}

// normalizeRange truncates both bounds to midnight UTC and rejects inverted
// ranges.
func normalizeRange(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, &InvalidArgumentError{Reason: "start and end dates are required"}
	}
	start, end = Day(start), Day(end)
	if start.After(end) {
		return time.Time{}, time.Time{}, &InvalidArgumentError{Reason: "start date is after end date"}
	}
	return start, end, nil
}

func foldDailies(metrics []DailyMetric) PeriodSummary {
	summary := PeriodSummary{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		Currency:          "USD",
	}
	if len(metrics) > 0 {
		summary.PeriodStart = metrics[0].Date
		summary.PeriodEnd = metrics[len(metrics)-1].Date
		summary.Currency = metrics[0].Currency
	}
	for _, m := range metrics {
		summary.TotalOrders += m.OrderCount
		summary.TotalRevenue = summary.TotalRevenue.Add(m.TotalRevenue)
	}
	if summary.TotalOrders > 0 {
		summary.AverageOrderValue = summary.TotalRevenue.
			Div(decimal.NewFromInt(int64(summary.TotalOrders))).
			Round(2)
	}
	return summary
}
