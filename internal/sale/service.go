package sale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/store"
)

// Sale statuses. Completed sales may transition to refunded or cancelled,
// both of which return stock and claw back loyalty points. Refunded and
// cancelled are terminal.
const (
	StatusCompleted = "completed"
	StatusRefunded  = "refunded"
	StatusCancelled = "cancelled"
)

// Service serves sale history and status transitions.
type Service struct {
	Q      *store.Queries
	Pool   *pgxpool.Pool
	Events *events.Bus
}

// Detail is a sale with its snapshot lines, in major currency units.
type Detail struct {
	ID                  int64     `json:"id"`
	InvoiceNumber       string    `json:"invoice_number"`
	UserID              int64     `json:"user_id"`
	CashierName         string    `json:"cashier_name,omitempty"`
	CustomerID          *int64    `json:"customer_id,omitempty"`
	CustomerName        *string   `json:"customer_name,omitempty"`
	Items               []Item    `json:"items"`
	Subtotal            float64   `json:"subtotal"`
	DiscountType        string    `json:"discount_type"`
	DiscountValue       float64   `json:"discount_value"`
	DiscountAmount      float64   `json:"discount_amount"`
	TaxRate             float64   `json:"tax_rate"`
	TaxAmount           float64   `json:"tax_amount"`
	GrandTotal          float64   `json:"grand_total"`
	PaymentMethod       string    `json:"payment_method"`
	AmountPaid          float64   `json:"amount_paid"`
	ChangeAmount        float64   `json:"change_amount"`
	LoyaltyPointsEarned int64     `json:"loyalty_points_earned"`
	Status              string    `json:"status"`
	Notes               *string   `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Item is one line of a sale.
type Item struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	ProductSKU  string  `json:"product_sku"`
	Quantity    int32   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	LineTotal   float64 `json:"line_total"`
}

// Summary is a sale header used in history listings.
type Summary struct {
	ID            int64     `json:"id"`
	InvoiceNumber string    `json:"invoice_number"`
	UserID        int64     `json:"user_id"`
	CashierName   string    `json:"cashier_name,omitempty"`
	CustomerID    *int64    `json:"customer_id,omitempty"`
	CustomerName  *string   `json:"customer_name,omitempty"`
	GrandTotal    float64   `json:"grand_total"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListFilter narrows sale history queries.
type ListFilter struct {
	UserID     *int64
	CustomerID *int64
	Status     string
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

// ListResult is one page of sale history.
type ListResult struct {
	Items []Summary
	Total int64
	Page  int
	Limit int
}

// List returns a page of sales, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) (ListResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 50
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	arg := store.ListSalesParams{
		UserID:     f.UserID,
		CustomerID: f.CustomerID,
		Status:     f.Status,
		From:       optionalTimestamp(f.From),
		To:         optionalTimestamp(f.To),
		Limit:      int32(f.Limit),
		Offset:     int32((f.Page - 1) * f.Limit),
	}
	rows, err := s.Q.ListSales(ctx, arg)
	if err != nil {
		return ListResult{}, fmt.Errorf("list sales: %w", err)
	}
	total, err := s.Q.CountSales(ctx, arg)
	if err != nil {
		return ListResult{}, fmt.Errorf("count sales: %w", err)
	}
	items := make([]Summary, 0, len(rows))
	for _, row := range rows {
		items = append(items, Summary{
			ID:            row.ID,
			InvoiceNumber: row.InvoiceNumber,
			UserID:        row.UserID,
			CashierName:   row.CashierName,
			CustomerID:    store.Int8Value(row.CustomerID),
			CustomerName:  textPtr(row.CustomerName),
			GrandTotal:    common.FromCents(row.GrandTotal),
			PaymentMethod: row.PaymentMethod,
			Status:        row.Status,
			CreatedAt:     row.CreatedAt.Time,
		})
	}
	return ListResult{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// Get returns one sale with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	row, err := s.Q.GetSale(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, notFound()
		}
		return Detail{}, fmt.Errorf("get sale: %w", err)
	}
	items, err := s.Q.ListSaleItems(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("list sale items: %w", err)
	}
	return convertDetail(row, items), nil
}

// Transition moves a sale to a new status. Refunding or cancelling a
// completed sale restores stock and claws back loyalty points in the same
// transaction.
func (s *Service) Transition(ctx context.Context, id int64, status string) (Detail, error) {
	if status != StatusRefunded && status != StatusCancelled {
		return Detail{}, common.NewAppError("VALIDATION_ERROR", "status must be refunded or cancelled", http.StatusBadRequest, nil)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Detail{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.Q.WithTx(tx)

	current, err := qtx.GetSaleForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, notFound()
		}
		return Detail{}, fmt.Errorf("lock sale: %w", err)
	}
	if err := transitionGuard(current.Status, status); err != nil {
		return Detail{}, err
	}

	items, err := qtx.ListSaleItems(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("list sale items: %w", err)
	}
	for _, it := range items {
		if _, err := qtx.RestockProduct(ctx, it.ProductID, it.Quantity); err != nil {
			return Detail{}, fmt.Errorf("restock product %d: %w", it.ProductID, err)
		}
	}

	if current.CustomerID.Valid && current.LoyaltyPointsEarned > 0 {
		if _, err := qtx.AddLoyaltyPoints(ctx, current.CustomerID.Int64, -current.LoyaltyPointsEarned); err != nil {
			return Detail{}, fmt.Errorf("deduct loyalty points: %w", err)
		}
		obs.LoyaltyPointsTotal.WithLabelValues("clawed_back").Add(float64(current.LoyaltyPointsEarned))
	}

	updated, err := qtx.UpdateSaleStatus(ctx, id, status)
	if err != nil {
		return Detail{}, fmt.Errorf("update sale status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Detail{}, err
	}

	if s.Events != nil {
		productIDs := make([]int64, 0, len(items))
		for _, it := range items {
			productIDs = append(productIDs, it.ProductID)
		}
		_ = s.Events.Publish(ctx, events.TopicSaleRefunded, events.SaleRefunded{
			SaleID:        updated.ID,
			InvoiceNumber: updated.InvoiceNumber,
			UserID:        updated.UserID,
			GrandTotal:    updated.GrandTotal,
			ProductIDs:    productIDs,
		})
	}
	if full, err := s.Q.GetSale(ctx, id); err == nil {
		return convertDetail(full, items), nil
	}
	return convertDetail(store.SaleWithNames{Sale: updated}, items), nil
}

// transitionGuard rejects moves out of any state other than completed.
// Refunded and cancelled are terminal.
func transitionGuard(current, requested string) error {
	if current != StatusCompleted {
		return common.NewAppError("INVALID_STATUS",
			fmt.Sprintf("cannot move a %s sale to %s", current, requested), http.StatusBadRequest, nil).
			WithDetails(map[string]any{"current_status": current, "requested_status": requested})
	}
	return nil
}

func optionalTimestamp(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return store.Timestamp(*t)
}

func notFound() error {
	return common.NewAppError("NOT_FOUND", "sale not found", http.StatusNotFound, nil)
}

func textPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	value := v.String
	return &value
}

func convertDetail(row store.SaleWithNames, items []store.SaleItem) Detail {
	d := Detail{
		ID:                  row.ID,
		InvoiceNumber:       row.InvoiceNumber,
		UserID:              row.UserID,
		CashierName:         row.CashierName,
		CustomerID:          store.Int8Value(row.CustomerID),
		CustomerName:        textPtr(row.CustomerName),
		Subtotal:            common.FromCents(row.Subtotal),
		DiscountType:        row.DiscountType,
		DiscountValue:       discountValueMajor(row.DiscountType, row.DiscountValue),
		DiscountAmount:      common.FromCents(row.DiscountAmount),
		TaxRate:             common.BpsToPercent(int(row.TaxRateBPS)),
		TaxAmount:           common.FromCents(row.TaxAmount),
		GrandTotal:          common.FromCents(row.GrandTotal),
		PaymentMethod:       row.PaymentMethod,
		AmountPaid:          common.FromCents(row.AmountPaid),
		ChangeAmount:        common.FromCents(row.ChangeAmount),
		LoyaltyPointsEarned: row.LoyaltyPointsEarned,
		Status:              row.Status,
		CreatedAt:           row.CreatedAt.Time,
		UpdatedAt:           row.UpdatedAt.Time,
	}
	if row.Notes.Valid {
		v := row.Notes.String
		d.Notes = &v
	}
	for _, it := range items {
		d.Items = append(d.Items, Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			UnitPrice:   common.FromCents(it.UnitPrice),
			Discount:    common.FromCents(it.Discount),
			LineTotal:   common.FromCents(it.LineTotal),
		})
	}
	return d
}

// discountValueMajor converts the persisted raw discount value back to the
// wire shape: percent for percentage discounts, major units for fixed ones.
func discountValueMajor(kind string, value int64) float64 {
	switch kind {
	case "percentage":
		return common.BpsToPercent(int(value))
	case "fixed":
		return common.FromCents(value)
	}
	return 0
}
