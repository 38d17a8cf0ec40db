package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/averku/orderdesk/internal/domain/analytics"
)

func (h *Handler) dailyMetrics(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.analytics.DailyMetrics(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDailySeries(e, metrics) })
}

func (h *Handler) revenueTrend(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.analytics.RevenueTrend(r.Context(), intQuery(r, "days", 7))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDailySeries(e, metrics) })
}

func (h *Handler) statusBreakdown(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.analytics.StatusBreakdown(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("statuses", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, m := range metrics {
						encodeStatusMetric(e, m)
					}
				})
			})
		})
	})
}

func (h *Handler) topCustomers(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	customers, err := h.analytics.TopCustomers(r.Context(), intQuery(r, "limit", 10), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("customers", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, c := range customers {
						encodeCustomer(e, c)
					}
				})
			})
		})
	})
}

func (h *Handler) customerAnalytics(w http.ResponseWriter, r *http.Request) {
	c, err := h.analytics.CustomerAnalytics(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.analytics.Summary(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("period", func(e *jx.Encoder) { encodePeriod(e, s.Period) })
			e.Field("status_breakdown", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, m := range s.StatusBreakdown {
						encodeStatusMetric(e, m)
					}
				})
			})
			e.Field("daily_trend", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, m := range s.DailyTrend {
						encodeDailyMetric(e, m)
					}
				})
			})
			e.Field("top_customers", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, c := range s.TopCustomers {
						encodeCustomer(e, c)
					}
				})
			})
			e.Field("growth_rate", func(e *jx.Encoder) { e.Raw(jx.Raw(s.GrowthRate.String())) })
			if s.BusiestDay != nil {
				e.Field("busiest_day", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("date", func(e *jx.Encoder) { encDate(e, s.BusiestDay.Date) })
						e.Field("order_count", func(e *jx.Encoder) { e.Int(s.BusiestDay.OrderCount) })
					})
				})
			}
			if s.HighestRevenueDay != nil {
				e.Field("highest_revenue_day", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("date", func(e *jx.Encoder) { encDate(e, s.HighestRevenueDay.Date) })
						e.Field("total_revenue", func(e *jx.Encoder) { encMoney(e, s.HighestRevenueDay.TotalRevenue) })
					})
				})
			}
		})
	})
}

func encodeDailySeries(e *jx.Encoder, metrics []analytics.DailyMetric) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("metrics", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, m := range metrics {
					encodeDailyMetric(e, m)
				}
			})
		})
	})
}

func encodeDailyMetric(e *jx.Encoder, m analytics.DailyMetric) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("date", func(e *jx.Encoder) { encDate(e, m.Date) })
		e.Field("order_count", func(e *jx.Encoder) { e.Int(m.OrderCount) })
		e.Field("total_revenue", func(e *jx.Encoder) { encMoney(e, m.TotalRevenue) })
		e.Field("average_order_value", func(e *jx.Encoder) { encMoney(e, m.AverageOrderValue) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(m.Currency) })
	})
}

func encodePeriod(e *jx.Encoder, p analytics.PeriodSummary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("period_start", func(e *jx.Encoder) { encDate(e, p.PeriodStart) })
		e.Field("period_end", func(e *jx.Encoder) { encDate(e, p.PeriodEnd) })
		e.Field("total_orders", func(e *jx.Encoder) { e.Int(p.TotalOrders) })
		e.Field("total_revenue", func(e *jx.Encoder) { encMoney(e, p.TotalRevenue) })
		e.Field("average_order_value", func(e *jx.Encoder) { encMoney(e, p.AverageOrderValue) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(p.Currency) })
	})
}

func encodeCustomer(e *jx.Encoder, c analytics.CustomerAnalytics) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("customer_id", func(e *jx.Encoder) { e.Str(c.CustomerID) })
		e.Field("customer_email", func(e *jx.Encoder) { e.Str(c.CustomerEmail) })
		e.Field("total_orders", func(e *jx.Encoder) { e.Int(c.TotalOrders) })
		e.Field("total_spent", func(e *jx.Encoder) { encMoney(e, c.TotalSpent) })
		e.Field("average_order_value", func(e *jx.Encoder) { encMoney(e, c.AverageOrderValue) })
		e.Field("first_order_date", func(e *jx.Encoder) { encTime(e, c.FirstOrderDate) })
		e.Field("last_order_date", func(e *jx.Encoder) { encTime(e, c.LastOrderDate) })
	})
}

func encodeStatusMetric(e *jx.Encoder, m analytics.StatusMetric) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(string(m.Status)) })
		e.Field("count", func(e *jx.Encoder) { e.Int(m.Count) })
		e.Field("total_value", func(e *jx.Encoder) { encMoney(e, m.TotalValue) })
		e.Field("percentage", func(e *jx.Encoder) { e.Float64(m.Percentage) })
	})
}
