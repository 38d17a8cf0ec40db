package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/averku/orderdesk/internal/domain/order"
	"github.com/averku/orderdesk/internal/sanitize"
)

const (
	maxNotesLength       = 1000
	maxProductNameLength = 255
)

type itemRequest struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type paymentRequest struct {
	Method         string `json:"method"`
	LastFourDigits string `json:"last_four_digits"`
}

type createOrderRequest struct {
	CustomerID      string          `json:"customer_id"`
	CustomerEmail   string          `json:"customer_email"`
	Items           []itemRequest   `json:"items"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Currency        string          `json:"currency"`
	BillingAddress  order.Address   `json:"billing_address"`
	ShippingAddress *order.Address  `json:"shipping_address"`
	Payment         paymentRequest  `json:"payment_info"`
	Notes           string          `json:"notes"`
	Source          string          `json:"source"`
}

type updateOrderRequest struct {
	Items           []itemRequest    `json:"items"`
	TaxAmount       *decimal.Decimal `json:"tax_amount"`
	ShippingAmount  *decimal.Decimal `json:"shipping_amount"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount"`
	ShippingAddress *order.Address   `json:"shipping_address"`
	Notes           *string          `json:"notes"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var shipping *order.Address
	if req.ShippingAddress != nil {
		addr := sanitizeAddress(*req.ShippingAddress)
		shipping = &addr
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		CustomerID:      req.CustomerID,
		CustomerEmail:   req.CustomerEmail,
		Items:           sanitizeItems(req.Items),
		TaxAmount:       req.TaxAmount,
		ShippingAmount:  req.ShippingAmount,
		DiscountAmount:  req.DiscountAmount,
		Currency:        req.Currency,
		BillingAddress:  sanitizeAddress(req.BillingAddress),
		ShippingAddress: shipping,
		Payment: order.PaymentRequest{
			Method:         order.PaymentMethod(req.Payment.Method),
			LastFourDigits: req.Payment.LastFourDigits,
		},
		Notes:  sanitize.TextN(req.Notes, maxNotesLength),
		Source: sanitize.TextN(req.Source, 20),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f := order.Filter{
		CustomerID: r.URL.Query().Get("customer_id"),
		Status:     order.Status(r.URL.Query().Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(string(f.Status)))
		return
	}

	start, end, err := parseDateRange(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.CreatedFrom = start
	if !end.IsZero() {
		f.CreatedTo = end.AddDate(0, 0, 1)
	}

	h.writeOrderPage(w, r, f)
}

func (h *Handler) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	h.writeOrderPage(w, r, order.Filter{CustomerID: r.PathValue("id")})
}

func (h *Handler) writeOrderPage(w http.ResponseWriter, r *http.Request, f order.Filter) {
	page := intQuery(r, "page", 1)
	pageSize := intQuery(r, "page_size", 20)

	orders, total, err := h.orders.List(r.Context(), f, page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orders", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range orders {
						encodeOrder(e, &orders[i])
					}
				})
			})
			e.Field("total", func(e *jx.Encoder) { e.Int(total) })
			e.Field("page", func(e *jx.Encoder) { e.Int(page) })
			e.Field("page_size", func(e *jx.Encoder) { e.Int(pageSize) })
		})
	})
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	domainReq := order.UpdateRequest{
		TaxAmount:      req.TaxAmount,
		ShippingAmount: req.ShippingAmount,
		DiscountAmount: req.DiscountAmount,
	}
	if req.Items != nil {
		domainReq.Items = sanitizeItems(req.Items)
	}
	if req.ShippingAddress != nil {
		addr := sanitizeAddress(*req.ShippingAddress)
		domainReq.ShippingAddress = &addr
	}
	if req.Notes != nil {
		notes := sanitize.TextN(*req.Notes, maxNotesLength)
		domainReq.Notes = &notes
	}

	o, err := h.orders.Update(r.Context(), r.PathValue("id"), domainReq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.Transition(r.Context(), r.PathValue("id"), order.Status(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str("order deleted") })
		})
	})
}

func sanitizeItems(items []itemRequest) []order.ItemRequest {
	out := make([]order.ItemRequest, len(items))
	for i, item := range items {
		out[i] = order.ItemRequest{
			ProductID:   sanitize.Text(item.ProductID),
			ProductName: sanitize.TextN(item.ProductName, maxProductNameLength),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	return out
}

func sanitizeAddress(a order.Address) order.Address {
	return order.Address{
		Street:     sanitize.Text(a.Street),
		City:       sanitize.Text(a.City),
		State:      sanitize.Text(a.State),
		PostalCode: sanitize.Text(a.PostalCode),
		Country:    sanitize.Text(a.Country),
	}
}

func intQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Str(o.OrderNumber) })
		e.Field("customer_id", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		e.Field("customer_email", func(e *jx.Encoder) { e.Str(o.CustomerEmail) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					encodeItem(e, item)
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { encMoney(e, o.Subtotal) })
		e.Field("tax_amount", func(e *jx.Encoder) { encMoney(e, o.TaxAmount) })
		e.Field("shipping_amount", func(e *jx.Encoder) { encMoney(e, o.ShippingAmount) })
		e.Field("discount_amount", func(e *jx.Encoder) { encMoney(e, o.DiscountAmount) })
		e.Field("total_amount", func(e *jx.Encoder) { encMoney(e, o.TotalAmount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(o.Currency) })
		e.Field("billing_address", func(e *jx.Encoder) { encodeAddress(e, o.BillingAddress) })
		e.Field("shipping_address", func(e *jx.Encoder) { encodeAddress(e, o.ShippingAddress) })
		e.Field("payment_info", func(e *jx.Encoder) { encodePayment(e, o.Payment) })
		if o.Notes != "" {
			e.Field("notes", func(e *jx.Encoder) { e.Str(o.Notes) })
		}
		e.Field("source", func(e *jx.Encoder) { e.Str(o.Source) })
		e.Field("version", func(e *jx.Encoder) { e.Int64(o.Version) })
		e.Field("created_at", func(e *jx.Encoder) { encTime(e, o.CreatedAt) })
		if o.UpdatedAt != nil {
			e.Field("updated_at", func(e *jx.Encoder) { encTime(e, *o.UpdatedAt) })
		}
	})
}

func encodeItem(e *jx.Encoder, item order.OrderItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(item.ProductName) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { encMoney(e, item.UnitPrice) })
		e.Field("total_price", func(e *jx.Encoder) { encMoney(e, item.TotalPrice) })
	})
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("street", func(e *jx.Encoder) { e.Str(a.Street) })
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
		e.Field("postal_code", func(e *jx.Encoder) { e.Str(a.PostalCode) })
		e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
	})
}

func encodePayment(e *jx.Encoder, p order.PaymentInfo) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("method", func(e *jx.Encoder) { e.Str(string(p.Method)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(p.Status)) })
		if p.TransactionID != "" {
			e.Field("transaction_id", func(e *jx.Encoder) { e.Str(p.TransactionID) })
		}
		if p.LastFourDigits != "" {
			e.Field("last_four_digits", func(e *jx.Encoder) { e.Str(p.LastFourDigits) })
		}
		if p.Processor != "" {
			e.Field("processor", func(e *jx.Encoder) { e.Str(p.Processor) })
		}
	})
}
