package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/store"
)

type stubQueries struct {
	summary      store.SalesSummaryRow
	breakdown    []store.DailyBreakdownRow
	top          []store.TopProductRow
	lowStock     []store.Product
	summaryCalls int
}

func (s *stubQueries) SalesSummary(_ context.Context, _, _ pgtype.Timestamptz) (store.SalesSummaryRow, error) {
	s.summaryCalls++
	return s.summary, nil
}

func (s *stubQueries) DailyBreakdown(_ context.Context, _, _ pgtype.Timestamptz) ([]store.DailyBreakdownRow, error) {
	return s.breakdown, nil
}

func (s *stubQueries) TopProducts(_ context.Context, _, _ pgtype.Timestamptz, limit int32) ([]store.TopProductRow, error) {
	if int(limit) < len(s.top) {
		return s.top[:limit], nil
	}
	return s.top, nil
}

func (s *stubQueries) ListLowStockProducts(_ context.Context) ([]store.Product, error) {
	return s.lowStock, nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDailyConvertsToMajorUnits(t *testing.T) {
	q := &stubQueries{summary: store.SalesSummaryRow{
		TransactionCount: 3,
		GrossSales:       1500000,
		DiscountTotal:    150000,
		TaxTotal:         108000,
		NetSales:         1458000,
		ItemsSold:        9,
	}}
	svc := &Service{Q: q}

	out, err := svc.Daily(context.Background(), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", out.Date)
	assert.Equal(t, int64(3), out.TransactionCount)
	assert.InDelta(t, 15000.0, out.GrossSales, 0.0001)
	assert.InDelta(t, 14580.0, out.NetSales, 0.0001)
	assert.Equal(t, int64(9), out.ItemsSold)
	assert.InDelta(t, 4860.0, out.AverageOrderValue, 0.0001)
}

func TestAverageOrderValueZeroSafe(t *testing.T) {
	svc := &Service{Q: &stubQueries{}}
	out, err := svc.Daily(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, out.AverageOrderValue)
}

func TestDailyCachesFinishedDays(t *testing.T) {
	q := &stubQueries{summary: store.SalesSummaryRow{TransactionCount: 1, NetSales: 100}}
	svc := &Service{
		Q:        q,
		Redis:    testRedis(t),
		CacheTTL: time.Minute,
		Now:      func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) },
	}

	past := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Daily(context.Background(), past)
	require.NoError(t, err)
	_, err = svc.Daily(context.Background(), past)
	require.NoError(t, err)
	assert.Equal(t, 1, q.summaryCalls)
}

func TestDailySkipsCacheForToday(t *testing.T) {
	q := &stubQueries{}
	today := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	svc := &Service{Q: q, Redis: testRedis(t), CacheTTL: time.Minute, Now: func() time.Time { return today }}

	_, err := svc.Daily(context.Background(), today)
	require.NoError(t, err)
	_, err = svc.Daily(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 2, q.summaryCalls)
}

func TestMonthlyBreakdown(t *testing.T) {
	q := &stubQueries{
		summary: store.SalesSummaryRow{TransactionCount: 2, NetSales: 972000},
		breakdown: []store.DailyBreakdownRow{
			{Day: pgtype.Date{Time: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Valid: true}, TransactionCount: 1, NetSales: 486000},
			{Day: pgtype.Date{Time: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Valid: true}, TransactionCount: 1, NetSales: 486000},
		},
	}
	svc := &Service{Q: q}

	out, err := svc.MonthlyReport(context.Background(), 2025, time.June)
	require.NoError(t, err)
	assert.Equal(t, "2025-06", out.Month)
	require.Len(t, out.Days, 2)
	assert.Equal(t, "2025-06-01", out.Days[0].Date)
	assert.InDelta(t, 4860.0, out.Days[0].NetSales, 0.0001)
}

func TestTopProductsValidatesWindow(t *testing.T) {
	svc := &Service{Q: &stubQueries{}}
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.TopProducts(context.Background(), from, from, 5)
	assert.Error(t, err)
}

func TestReportsHandlerRejectsUnknownType(t *testing.T) {
	h := &Handler{Svc: &Service{Q: &stubQueries{}}}
	rr := httptest.NewRecorder()
	h.Reports(rr, httptest.NewRequest(http.MethodGet, "/reports?type=yearly", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReportsHandlerLowStock(t *testing.T) {
	q := &stubQueries{lowStock: []store.Product{{ID: 1, Name: "Kopi", SKU: "K-1", StockQuantity: 2, LowStockThreshold: 5}}}
	h := &Handler{Svc: &Service{Q: q}}
	rr := httptest.NewRecorder()
	h.Reports(rr, httptest.NewRequest(http.MethodGet, "/reports?type=low-stock", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "K-1")
}
