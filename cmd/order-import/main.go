// Command order-import loads gzipped NDJSON order history exports into the
// database. Files are processed concurrently; bloom filters over order
// numbers pre-filter duplicates across files, and the store's unique index is
// the exact backstop.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/averku/orderdesk/internal/domain/money"
	"github.com/averku/orderdesk/internal/domain/order"
	"github.com/averku/orderdesk/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// orderRecord is one line of a legacy export file.
type orderRecord struct {
	OrderNumber   string `json:"order_number"`
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	Status        string `json:"status"`
	Items         []struct {
		ProductID   string          `json:"product_id"`
		ProductName string          `json:"product_name"`
		Quantity    int             `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
	} `json:"items"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Currency        string          `json:"currency"`
	BillingAddress  order.Address   `json:"billing_address"`
	ShippingAddress *order.Address  `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing orders-*.ndjson.gz export files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("order import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "orders-*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "glob export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no orders-*.ndjson.gz files in %s", dataDir)
	}

	// Pass 1: one bloom filter of order numbers per file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Pass 2: import each file, skipping order numbers that appear in an
	// earlier file's filter. The unique index resolves false positives and
	// records already present in the store.
	slog.Info("pass 2: importing orders")

	repo := postgres.NewOrderRepository(pool)
	limits := money.DefaultLimits()

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(importFile(ctx, repo, limits, i, f, filters))
	}
	return g.Wait()
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line []byte) error {
			var rec struct {
				OrderNumber string `json:"order_number"`
			}
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil // malformed lines are reported in pass 2
			}
			if rec.OrderNumber != "" {
				filter.AddString(rec.OrderNumber)
				count++
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("orders", count),
		)

		filters[idx] = filter
		return nil
	}
}

func importFile(
	ctx context.Context,
	repo order.Repository,
	limits money.Limits,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
) func() error {
	return func() error {
		var imported, skipped, malformed uint64

		if err := streamGzFile(ctx, path, func(line []byte) error {
			var rec orderRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				malformed++
				return nil
			}

			// Earlier files win: a number already present in a preceding
			// file's filter is almost certainly a duplicate.
			for j := range idx {
				if filters[j].TestString(rec.OrderNumber) {
					skipped++
					return nil
				}
			}

			o, err := buildOrder(limits, rec)
			if err != nil {
				malformed++
				slog.Warn("invalid order record",
					slog.String("order_number", rec.OrderNumber),
					slog.String("error", err.Error()),
				)
				return nil
			}

			switch err := repo.Create(ctx, o); {
			case err == nil:
				imported++
			case errors.Is(err, order.ErrDuplicateOrderNumber):
				skipped++
			default:
				return errors.Wrapf(err, "insert order %s", rec.OrderNumber)
			}

			if total := imported + skipped + malformed; total%progressEvery == 0 {
				slog.Info("import progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("processed", total),
				)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "import file %d", idx+1)
		}

		slog.Info("import complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("imported", imported),
			slog.Uint64("skipped", skipped),
			slog.Uint64("malformed", malformed),
		)
		return nil
	}
}

// buildOrder validates a legacy record through the money limits and maps it
// onto the order aggregate, preserving the original number, status, and
// creation time.
func buildOrder(limits money.Limits, rec orderRecord) (*order.Order, error) {
	if rec.OrderNumber == "" {
		return nil, errors.New("missing order number")
	}
	status, err := order.ParseStatus(rec.Status)
	if err != nil {
		return nil, err
	}
	if len(rec.Items) == 0 {
		return nil, order.ErrEmptyItems
	}

	items := make([]order.OrderItem, len(rec.Items))
	subtotal := decimal.Zero
	for i, item := range rec.Items {
		if err := limits.CheckQuantity("quantity", item.Quantity); err != nil {
			return nil, err
		}
		unitPrice, err := limits.Normalize("unit_price", item.UnitPrice)
		if err != nil {
			return nil, err
		}
		totalPrice, err := limits.MulInt("total_price", unitPrice, item.Quantity)
		if err != nil {
			return nil, err
		}
		subtotal, err = limits.Add("subtotal", subtotal, totalPrice)
		if err != nil {
			return nil, err
		}
		items[i] = order.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  totalPrice,
		}
	}

	tax, err := limits.Normalize("tax_amount", rec.TaxAmount)
	if err != nil {
		return nil, err
	}
	shipping, err := limits.Normalize("shipping_amount", rec.ShippingAmount)
	if err != nil {
		return nil, err
	}
	discount, err := limits.Normalize("discount_amount", rec.DiscountAmount)
	if err != nil {
		return nil, err
	}
	total, err := limits.Add("total_amount", subtotal, tax)
	if err != nil {
		return nil, err
	}
	total, err = limits.Add("total_amount", total, shipping)
	if err != nil {
		return nil, err
	}
	total, err = limits.Sub("total_amount", total, discount)
	if err != nil {
		return nil, err
	}

	currency := rec.Currency
	if currency == "" {
		currency = "USD"
	}
	shippingAddr := rec.BillingAddress
	if rec.ShippingAddress != nil {
		shippingAddr = *rec.ShippingAddress
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return &order.Order{
		ID:              uuid.New().String(),
		OrderNumber:     rec.OrderNumber,
		CustomerID:      rec.CustomerID,
		CustomerEmail:   rec.CustomerEmail,
		Status:          status,
		Items:           items,
		Subtotal:        subtotal,
		TaxAmount:       tax,
		ShippingAmount:  shipping,
		DiscountAmount:  discount,
		TotalAmount:     total,
		Currency:        currency,
		BillingAddress:  rec.BillingAddress,
		ShippingAddress: shippingAddr,
		Payment: order.PaymentInfo{
			Method: order.PaymentMethod(rec.PaymentMethod),
			Status: order.PaymentCaptured,
		},
		Notes:     rec.Notes,
		Source:    "import",
		CreatedAt: createdAt.UTC(),
	}, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
