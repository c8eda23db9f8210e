package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/store"
)

const defaultTopLimit = 10

type queryProvider interface {
	SalesSummary(ctx context.Context, from, to pgtype.Timestamptz) (store.SalesSummaryRow, error)
	DailyBreakdown(ctx context.Context, from, to pgtype.Timestamptz) ([]store.DailyBreakdownRow, error)
	TopProducts(ctx context.Context, from, to pgtype.Timestamptz, limit int32) ([]store.TopProductRow, error)
	ListLowStockProducts(ctx context.Context) ([]store.Product, error)
}

// Service aggregates sales data into reports, caching results in Redis since
// historical windows rarely change.
type Service struct {
	Q        queryProvider
	Redis    *redis.Client
	CacheTTL time.Duration
	Now      func() time.Time
}

// Summary is the daily report payload.
type Summary struct {
	Date              string  `json:"date"`
	TransactionCount  int64   `json:"transaction_count"`
	GrossSales        float64 `json:"gross_sales"`
	DiscountTotal     float64 `json:"discount_total"`
	TaxTotal          float64 `json:"tax_total"`
	NetSales          float64 `json:"net_sales"`
	ItemsSold         int64   `json:"items_sold"`
	AverageOrderValue float64 `json:"average_order_value"`
}

// Monthly is the monthly report payload with a per-day breakdown.
type Monthly struct {
	Month            string     `json:"month"`
	TransactionCount int64      `json:"transaction_count"`
	GrossSales       float64    `json:"gross_sales"`
	DiscountTotal    float64    `json:"discount_total"`
	TaxTotal         float64    `json:"tax_total"`
	NetSales         float64    `json:"net_sales"`
	ItemsSold        int64      `json:"items_sold"`
	Days             []MonthDay `json:"days"`
}

// MonthDay is one day inside a monthly report.
type MonthDay struct {
	Date             string  `json:"date"`
	TransactionCount int64   `json:"transaction_count"`
	NetSales         float64 `json:"net_sales"`
}

// TopProduct ranks a product by units sold.
type TopProduct struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductSKU   string  `json:"product_sku"`
	QuantitySold int64   `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
}

// LowStockItem flags a product at or below its replenishment threshold.
type LowStockItem struct {
	ProductID     int64  `json:"product_id"`
	ProductName   string `json:"product_name"`
	ProductSKU    string `json:"product_sku"`
	StockQuantity int32  `json:"stock_quantity"`
	Threshold     int32  `json:"low_stock_threshold"`
}

// Daily builds the report for one calendar day in the server's location.
func (s *Service) Daily(ctx context.Context, day time.Time) (Summary, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.Add(24 * time.Hour)
	key := fmt.Sprintf("report:daily:%s", from.Format("2006-01-02"))

	var cached Summary
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}
	row, err := s.Q.SalesSummary(ctx, store.Timestamp(from), store.Timestamp(to))
	if err != nil {
		return Summary{}, fmt.Errorf("daily summary: %w", err)
	}
	out := Summary{
		Date:              from.Format("2006-01-02"),
		TransactionCount:  row.TransactionCount,
		GrossSales:        common.FromCents(row.GrossSales),
		DiscountTotal:     common.FromCents(row.DiscountTotal),
		TaxTotal:          common.FromCents(row.TaxTotal),
		NetSales:          common.FromCents(row.NetSales),
		ItemsSold:         row.ItemsSold,
		AverageOrderValue: averageOrderValue(row.NetSales, row.TransactionCount),
	}
	// Only finished days are cacheable; today keeps changing.
	if to.Before(s.now()) {
		s.setCached(ctx, key, out)
	}
	return out, nil
}

// MonthlyReport builds the report for one calendar month.
func (s *Service) MonthlyReport(ctx context.Context, year int, month time.Month) (Monthly, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 1, 0)
	key := fmt.Sprintf("report:monthly:%s", from.Format("2006-01"))

	var cached Monthly
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}
	summary, err := s.Q.SalesSummary(ctx, store.Timestamp(from), store.Timestamp(to))
	if err != nil {
		return Monthly{}, fmt.Errorf("monthly summary: %w", err)
	}
	days, err := s.Q.DailyBreakdown(ctx, store.Timestamp(from), store.Timestamp(to))
	if err != nil {
		return Monthly{}, fmt.Errorf("monthly breakdown: %w", err)
	}
	out := Monthly{
		Month:            from.Format("2006-01"),
		TransactionCount: summary.TransactionCount,
		GrossSales:       common.FromCents(summary.GrossSales),
		DiscountTotal:    common.FromCents(summary.DiscountTotal),
		TaxTotal:         common.FromCents(summary.TaxTotal),
		NetSales:         common.FromCents(summary.NetSales),
		ItemsSold:        summary.ItemsSold,
		Days:             make([]MonthDay, 0, len(days)),
	}
	for _, d := range days {
		out.Days = append(out.Days, MonthDay{
			Date:             d.Day.Time.Format("2006-01-02"),
			TransactionCount: d.TransactionCount,
			NetSales:         common.FromCents(d.NetSales),
		})
	}
	if to.Before(s.now()) {
		s.setCached(ctx, key, out)
	}
	return out, nil
}

// TopProducts ranks products by units sold inside [from, to).
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	if !from.Before(to) {
		return nil, common.NewAppError("VALIDATION_ERROR", "from must be before to", http.StatusBadRequest, nil)
	}
	if limit < 1 {
		limit = defaultTopLimit
	}
	rows, err := s.Q.TopProducts(ctx, store.Timestamp(from), store.Timestamp(to), int32(limit))
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	out := make([]TopProduct, 0, len(rows))
	for _, r := range rows {
		out = append(out, TopProduct{
			ProductID:    r.ProductID,
			ProductName:  r.ProductName,
			ProductSKU:   r.ProductSKU,
			QuantitySold: r.QuantitySold,
			Revenue:      common.FromCents(r.Revenue),
		})
	}
	return out, nil
}

// LowStock lists products needing replenishment.
func (s *Service) LowStock(ctx context.Context) ([]LowStockItem, error) {
	rows, err := s.Q.ListLowStockProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	out := make([]LowStockItem, 0, len(rows))
	for _, p := range rows {
		out = append(out, LowStockItem{
			ProductID:     p.ID,
			ProductName:   p.Name,
			ProductSKU:    p.SKU,
			StockQuantity: p.StockQuantity,
			Threshold:     p.LowStockThreshold,
		})
	}
	return out, nil
}

// averageOrderValue rounds to whole cents; a day without sales reports 0.
func averageOrderValue(netSales common.Money, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return common.FromCents(common.MulDivHalfUp(netSales, 1, count))
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) getCached(ctx context.Context, key string, dst any) bool {
	if s.Redis == nil {
		return false
	}
	data, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) setCached(ctx context.Context, key string, v any) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	ttl := s.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	_ = s.Redis.Set(ctx, key, data, ttl).Err()
}
