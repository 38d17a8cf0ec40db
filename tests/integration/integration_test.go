//go:build integration

// Package integration runs the API against a real PostgreSQL instance
// provisioned with testcontainers. Tests drive the HTTP surface end to end:
// real handlers, real middleware chain, real storage.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/averku/orderdesk/internal/domain/analytics"
	"github.com/averku/orderdesk/internal/domain/auth"
	"github.com/averku/orderdesk/internal/domain/money"
	"github.com/averku/orderdesk/internal/domain/order"
	"github.com/averku/orderdesk/internal/handler"
	pgstore "github.com/averku/orderdesk/internal/storage/postgres"
	"github.com/averku/orderdesk/pkg/httpmiddleware"
)

const (
	testAPIKey    = "integration-test-key"
	testKeyPepper = "test-pepper-for-integration"
)

var (
	baseURL    string
	httpClient *http.Client
	pool       *pgxpool.Pool
	orderRepo  *pgstore.OrderRepository
)

// Response types decoded with plain encoding/json to keep the HTTP tests
// independent of the server's encoder.

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type addressDTO struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type itemDTO struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

type orderResponse struct {
	ID             string     `json:"id"`
	OrderNumber    string     `json:"order_number"`
	CustomerID     string     `json:"customer_id"`
	CustomerEmail  string     `json:"customer_email"`
	Status         string     `json:"status"`
	Items          []itemDTO  `json:"items"`
	Subtotal       float64    `json:"subtotal"`
	TaxAmount      float64    `json:"tax_amount"`
	ShippingAmount float64    `json:"shipping_amount"`
	DiscountAmount float64    `json:"discount_amount"`
	TotalAmount    float64    `json:"total_amount"`
	Currency       string     `json:"currency"`
	BillingAddress addressDTO `json:"billing_address"`
	Notes          string     `json:"notes"`
	Version        int64      `json:"version"`
}

type orderListResponse struct {
	Orders   []orderResponse `json:"orders"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type dailyMetricDTO struct {
	Date              string  `json:"date"`
	OrderCount        int     `json:"order_count"`
	TotalRevenue      float64 `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
	Currency          string  `json:"currency"`
}

type dailySeriesResponse struct {
	Metrics []dailyMetricDTO `json:"metrics"`
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("orderdesk"),
		tcpostgres.WithUsername("orderdesk"),
		tcpostgres.WithPassword("orderdesk"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = pgstore.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	if err := pgstore.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	orderRepo = pgstore.NewOrderRepository(pool)
	apikeyRepo := pgstore.NewAPIKeyRepository(pool)
	verifier := auth.NewVerifier(apikeyRepo, []byte(testKeyPepper))

	err = apikeyRepo.InsertKey(ctx,
		uuid.NewString(),
		verifier.HashKey(testAPIKey),
		"integration key",
		[]string{"orders", "analytics"},
	)
	if err != nil {
		log.Fatalf("seed api key: %v", err)
	}

	h := handler.NewHandler(
		order.NewService(orderRepo, money.DefaultLimits()),
		analytics.NewService(orderRepo, analytics.Config{}),
	)
	api := http.NewServeMux()
	h.Routes(api)

	mux := http.NewServeMux()
	mux.Handle("/api/", handler.RequireAPIKey(verifier)(api))

	srv := httptest.NewServer(httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.SecureHeaders(),
		httpmiddleware.BodyLimit(1<<20),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zap.NewNop()),
	))
	defer srv.Close()

	baseURL = srv.URL
	httpClient = &http.Client{Timeout: 10 * time.Second}

	return m.Run()
}

// truncateOrders resets order state between tests that depend on counts.
func truncateOrders(t *testing.T) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), "TRUNCATE orders"); err != nil {
		t.Fatalf("truncate orders: %v", err)
	}
}

// HTTP helpers. All requests carry the seeded API key unless the test opts
// out via the key argument.

func doRequest(t *testing.T, method, path string, body any, apiKey string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func doGet(t *testing.T, path string) *http.Response {
	return doRequest(t, http.MethodGet, path, nil, testAPIKey)
}

func doPost(t *testing.T, path string, body any) *http.Response {
	return doRequest(t, http.MethodPost, path, body, testAPIKey)
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status: got %d, want %d", resp.StatusCode, want)
	}
}

func validCreateBody() map[string]any {
	return map[string]any{
		"customer_id":    fmt.Sprintf("cust-%s", uuid.NewString()[:8]),
		"customer_email": "customer@example.com",
		"items": []map[string]any{
			{"product_id": "p1", "product_name": "Widget", "quantity": 2, "unit_price": "29.99"},
			{"product_id": "p2", "product_name": "Gadget", "quantity": 1, "unit_price": "10.00"},
		},
		"tax_amount":      "5.99",
		"shipping_amount": "9.99",
		"billing_address": map[string]any{
			"street":      "1 Main St",
			"city":        "Springfield",
			"state":       "IL",
			"postal_code": "62701",
			"country":     "US",
		},
		"payment_info": map[string]any{"method": "credit_card"},
	}
}
