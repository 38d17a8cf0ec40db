// Command seed-db provisions a development database: it runs migrations,
// stores an API key, and creates a handful of demo orders.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/averku/orderdesk/internal/domain/money"
	"github.com/averku/orderdesk/internal/domain/order"
	"github.com/averku/orderdesk/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
		demoOrders   bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or ORDERDESK_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or ORDERDESK_API_KEY_PEPPER env)")
	flag.BoolVar(&demoOrders, "demo-orders", true, "create demo orders")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("ORDERDESK_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or ORDERDESK_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("ORDERDESK_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper, demoOrders); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string, demoOrders bool) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if demoOrders {
		if err := seedOrders(ctx, postgres.NewOrderRepository(pool)); err != nil {
			return errors.Wrap(err, "seed demo orders")
		}
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	err := repo.InsertKey(ctx,
		"00000000-0000-0000-0000-000000000001",
		keyHash,
		"Default development key",
		[]string{"orders", "analytics"},
	)
	if err != nil {
		return err
	}

	slog.Info("seeded API key", slog.String("name", "Default development key"))
	return nil
}

func seedOrders(ctx context.Context, repo *postgres.OrderRepository) error {
	svc := order.NewService(repo, money.DefaultLimits())

	address := order.Address{
		Street:     "1 Demo Street",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
		Country:    "US",
	}

	requests := []order.CreateRequest{
		{
			CustomerID:    "demo-alice",
			CustomerEmail: "alice@example.com",
			Items: []order.ItemRequest{
				{ProductID: "sku-100", ProductName: "Desk Lamp", Quantity: 2, UnitPrice: decimal.RequireFromString("29.99")},
				{ProductID: "sku-200", ProductName: "Notebook", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
			},
			TaxAmount:      decimal.RequireFromString("5.99"),
			ShippingAmount: decimal.RequireFromString("9.99"),
			BillingAddress: address,
			Payment:        order.PaymentRequest{Method: order.PaymentCreditCard},
			Source:         "seed",
		},
		{
			CustomerID:    "demo-bob",
			CustomerEmail: "bob@example.com",
			Items: []order.ItemRequest{
				{ProductID: "sku-300", ProductName: "Monitor Stand", Quantity: 1, UnitPrice: decimal.RequireFromString("49.50")},
			},
			TaxAmount:      decimal.RequireFromString("4.10"),
			ShippingAmount: decimal.RequireFromString("7.00"),
			DiscountAmount: decimal.RequireFromString("5.00"),
			BillingAddress: address,
			Payment:        order.PaymentRequest{Method: order.PaymentPaypal},
			Source:         "seed",
		},
	}

	slog.Info("creating demo orders", slog.Int("count", len(requests)))

	for _, req := range requests {
		o, err := svc.Create(ctx, req)
		if err != nil {
			return errors.Wrapf(err, "create order for %s", req.CustomerID)
		}
		slog.Info("created order",
			slog.String("order_number", o.OrderNumber),
			slog.String("customer", o.CustomerID),
			slog.String("total", o.TotalAmount.StringFixed(2)),
		)
	}

	return nil
}
