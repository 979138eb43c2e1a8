package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// soldStatuses are the order states that count as realized sales.
var soldStatuses = []string{"confirmed", "fulfilled"}

// Repository runs the aggregate queries behind the reporting endpoints.
type Repository interface {
	CustomerSummary(ctx context.Context, customerID uuid.UUID) (*CustomerSummary, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
	DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reporting repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CustomerSummary(ctx context.Context, customerID uuid.UUID) (*CustomerSummary, error) {
	summary := CustomerSummary{CustomerID: customerID}

	row := struct {
		OrderCount  int64
		TotalSpent  *string
		LastOrderAt *string
	}{}
	err := r.db.WithContext(ctx).
		Raw(`SELECT COUNT(*) AS order_count,
		            CAST(COALESCE(SUM(total), 0) AS TEXT) AS total_spent,
		            CAST(MAX(created_at) AS TEXT) AS last_order_at
		     FROM orders
		     WHERE customer_id = ? AND status IN ?`, customerID, soldStatuses).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	summary.OrderCount = row.OrderCount
	if row.LastOrderAt != nil {
		last, err := parseTimestamp(*row.LastOrderAt)
		if err != nil {
			return nil, err
		}
		summary.LastOrderAt = &last
	}
	if row.TotalSpent != nil {
		total, err := parseAmount(*row.TotalSpent)
		if err != nil {
			return nil, err
		}
		summary.TotalSpent = total
	}
	return &summary, nil
}

func (r *repository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	rows := []struct {
		SKU          string
		QuantitySold int64
		Revenue      string
		OrderCount   int64
	}{}
	err := r.db.WithContext(ctx).
		Raw(`SELECT l.sku AS sku,
		            SUM(l.quantity) AS quantity_sold,
		            CAST(SUM(l.quantity * l.unit_price) AS TEXT) AS revenue,
		            COUNT(DISTINCT l.order_id) AS order_count
		     FROM order_lines l
		     JOIN orders o ON o.id = l.order_id
		     WHERE o.status IN ?
		     GROUP BY l.sku
		     ORDER BY quantity_sold DESC, l.sku ASC
		     LIMIT ?`, soldStatuses, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	products := make([]TopProduct, 0, len(rows))
	for _, row := range rows {
		revenue, err := parseAmount(row.Revenue)
		if err != nil {
			return nil, err
		}
		products = append(products, TopProduct{
			SKU:          row.SKU,
			QuantitySold: row.QuantitySold,
			Revenue:      revenue,
			OrderCount:   row.OrderCount,
		})
	}
	return products, nil
}

func (r *repository) DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	rows := []struct {
		Day        string
		OrderCount int64
		Revenue    string
	}{}
	// date() is the function-style cast; it resolves on both postgres and
	// the sqlite driver the tests run against.
	err := r.db.WithContext(ctx).
		Raw(`SELECT CAST(date(created_at) AS TEXT) AS day,
		            COUNT(*) AS order_count,
		            CAST(COALESCE(SUM(total), 0) AS TEXT) AS revenue
		     FROM orders
		     WHERE status IN ? AND created_at >= ? AND created_at < ?
		     GROUP BY date(created_at)
		     ORDER BY day ASC`, soldStatuses, from, to).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	days := make([]DailySales, 0, len(rows))
	for _, row := range rows {
		revenue, err := parseAmount(row.Revenue)
		if err != nil {
			return nil, err
		}
		days = append(days, DailySales{
			Day:        row.Day,
			OrderCount: row.OrderCount,
			Revenue:    revenue,
		})
	}
	return days, nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

// timestampLayouts cover the textual forms postgres and sqlite hand back for
// aggregated datetime expressions.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, lastErr)
}
