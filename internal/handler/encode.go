package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/averku/orderdesk/internal/domain/analytics"
	"github.com/averku/orderdesk/internal/domain/money"
	"github.com/averku/orderdesk/internal/domain/order"
)

// writeJSON encodes one response body with jx and writes it with the given
// status code.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError emits the error envelope shared by every endpoint.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// writeDomainError maps domain errors to HTTP statuses. Unrecognized errors
// become an opaque 500 so internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		valErr      *order.ValidationError
		moneyErr    *money.ValidationError
		overflowErr *money.OverflowError
		argErr      *analytics.InvalidArgumentError
		transErr    *order.TransitionError
	)

	switch {
	case errors.As(err, &valErr),
		errors.As(err, &moneyErr),
		errors.As(err, &overflowErr),
		errors.As(err, &argErr),
		errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, analytics.ErrNoOrders):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &transErr),
		errors.Is(err, order.ErrNotEditable),
		errors.Is(err, order.ErrDuplicateOrderNumber),
		errors.Is(err, order.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads the request body into dst, rejecting bodies that are not
// valid JSON for the target shape.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

// encMoney writes a monetary amount as a plain JSON number with two fraction
// digits.
func encMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Raw(jx.Raw(d.StringFixed(2)))
}

func encTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

// encDate writes a calendar day without a time component.
func encDate(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.DateOnly))
}

// parseDateRange reads the start_date/end_date query parameters as
// YYYY-MM-DD. Both must be present unless optional is set.
func parseDateRange(r *http.Request, optional bool) (start, end time.Time, err error) {
	rawStart := r.URL.Query().Get("start_date")
	rawEnd := r.URL.Query().Get("end_date")
	if optional && rawStart == "" && rawEnd == "" {
		return time.Time{}, time.Time{}, nil
	}

	start, err = time.ParseInLocation(time.DateOnly, rawStart, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start_date must be formatted YYYY-MM-DD")
	}
	end, err = time.ParseInLocation(time.DateOnly, rawEnd, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end_date must be formatted YYYY-MM-DD")
	}
	return start, end, nil
}
