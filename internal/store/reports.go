package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// SalesSummaryRow aggregates completed sales over a window.
type SalesSummaryRow struct {
	TransactionCount int64
	GrossSales       int64
	DiscountTotal    int64
	TaxTotal         int64
	NetSales         int64
	ItemsSold        int64
}

const salesSummaryHeader = `
SELECT count(*),
	COALESCE(SUM(subtotal), 0),
	COALESCE(SUM(discount_amount), 0),
	COALESCE(SUM(tax_amount), 0),
	COALESCE(SUM(grand_total), 0)
FROM sales
WHERE status = 'completed' AND created_at >= $1 AND created_at < $2
`

const itemsSoldInWindow = `
SELECT COALESCE(SUM(si.quantity), 0)
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
WHERE s.status = 'completed' AND s.created_at >= $1 AND s.created_at < $2
`

// SalesSummary aggregates completed sales between from (inclusive) and to
// (exclusive). Item counts come from a separate query to avoid double
// counting headers across the join.
func (q *Queries) SalesSummary(ctx context.Context, from, to pgtype.Timestamptz) (SalesSummaryRow, error) {
	var r SalesSummaryRow
	err := q.db.QueryRow(ctx, salesSummaryHeader, from, to).Scan(
		&r.TransactionCount, &r.GrossSales, &r.DiscountTotal, &r.TaxTotal, &r.NetSales)
	if err != nil {
		return SalesSummaryRow{}, err
	}
	err = q.db.QueryRow(ctx, itemsSoldInWindow, from, to).Scan(&r.ItemsSold)
	if err != nil {
		return SalesSummaryRow{}, err
	}
	return r, nil
}

// DailyBreakdownRow is one day inside a monthly report.
type DailyBreakdownRow struct {
	Day              pgtype.Date
	TransactionCount int64
	NetSales         int64
}

const dailyBreakdown = `
SELECT created_at::date AS day, count(*), COALESCE(SUM(grand_total), 0)
FROM sales
WHERE status = 'completed' AND created_at >= $1 AND created_at < $2
GROUP BY day
ORDER BY day ASC
`

func (q *Queries) DailyBreakdown(ctx context.Context, from, to pgtype.Timestamptz) ([]DailyBreakdownRow, error) {
	rows, err := q.db.Query(ctx, dailyBreakdown, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyBreakdownRow
	for rows.Next() {
		var r DailyBreakdownRow
		if err := rows.Scan(&r.Day, &r.TransactionCount, &r.NetSales); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// TopProductRow ranks a product by units sold over a window.
type TopProductRow struct {
	ProductID    int64
	ProductName  string
	ProductSKU   string
	QuantitySold int64
	Revenue      int64
}

const topProducts = `
SELECT si.product_id, si.product_name, si.product_sku,
	SUM(si.quantity) AS qty, SUM(si.line_total) AS revenue
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
WHERE s.status = 'completed' AND s.created_at >= $1 AND s.created_at < $2
GROUP BY si.product_id, si.product_name, si.product_sku
ORDER BY qty DESC, revenue DESC
LIMIT $3
`

func (q *Queries) TopProducts(ctx context.Context, from, to pgtype.Timestamptz, limit int32) ([]TopProductRow, error) {
	rows, err := q.db.Query(ctx, topProducts, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TopProductRow
	for rows.Next() {
		var r TopProductRow
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.ProductSKU, &r.QuantitySold, &r.Revenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
