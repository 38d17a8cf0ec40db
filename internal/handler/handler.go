// Package handler exposes the order and analytics services over HTTP.
package handler

import (
	"net/http"

	"github.com/averku/orderdesk/internal/domain/analytics"
	"github.com/averku/orderdesk/internal/domain/order"
)

// Handler routes HTTP requests to the order lifecycle and analytics services.
type Handler struct {
	orders    *order.Service
	analytics *analytics.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders *order.Service, analytics *analytics.Service) *Handler {
	return &Handler{
		orders:    orders,
		analytics: analytics,
	}
}

// Routes registers every API endpoint on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders", h.createOrder)
	mux.HandleFunc("GET /api/v1/orders", h.listOrders)
	mux.HandleFunc("GET /api/v1/orders/number/{number}", h.getOrderByNumber)
	mux.HandleFunc("GET /api/v1/orders/{id}", h.getOrder)
	mux.HandleFunc("PUT /api/v1/orders/{id}", h.updateOrder)
	mux.HandleFunc("PATCH /api/v1/orders/{id}/status", h.transitionOrder)
	mux.HandleFunc("POST /api/v1/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("DELETE /api/v1/orders/{id}", h.deleteOrder)
	mux.HandleFunc("GET /api/v1/customers/{id}/orders", h.listCustomerOrders)

	mux.HandleFunc("GET /api/v1/analytics/daily", h.dailyMetrics)
	mux.HandleFunc("GET /api/v1/analytics/summary", h.summary)
	mux.HandleFunc("GET /api/v1/analytics/revenue/trends", h.revenueTrend)
	mux.HandleFunc("GET /api/v1/analytics/orders/status", h.statusBreakdown)
	mux.HandleFunc("GET /api/v1/analytics/customers/top", h.topCustomers)
	mux.HandleFunc("GET /api/v1/analytics/customers/{id}", h.customerAnalytics)
}
