package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/loyalty"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/store"
)

// invoiceMaxAttempts bounds retries when two checkouts race for the same
// daily sequence number.
const invoiceMaxAttempts = 5

// Input is a checkout request. Monetary values arrive in major currency
// units and are converted at the boundary. An omitted payment method means
// cash; an omitted amount paid means exact tender.
type Input struct {
	Items []InputItem `json:"items" validate:"required,min=1,dive"`

	CustomerID    *int64   `json:"customer_id" validate:"omitempty,gt=0"`
	DiscountType  string   `json:"discount_type" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue float64  `json:"discount_value" validate:"gte=0"`
	TaxRate       *float64 `json:"tax_rate" validate:"omitempty,gte=0"`
	PaymentMethod string   `json:"payment_method" validate:"omitempty,oneof=cash card mobile"`
	AmountPaid    *float64 `json:"amount_paid" validate:"omitempty,gte=0"`
	Notes         *string  `json:"notes"`
}

// InputItem is one cart line. Discount is an absolute amount off this line.
type InputItem struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int32   `json:"quantity" validate:"required,gt=0"`
	Discount  float64 `json:"discount" validate:"gte=0"`
}

// Receipt is the client-facing result of a committed sale.
type Receipt struct {
	SaleID              int64         `json:"sale_id"`
	InvoiceNumber       string        `json:"invoice_number"`
	Items               []ReceiptItem `json:"items"`
	Subtotal            float64       `json:"subtotal"`
	DiscountType        string        `json:"discount_type"`
	DiscountValue       float64       `json:"discount_value"`
	DiscountAmount      float64       `json:"discount_amount"`
	TaxRate             float64       `json:"tax_rate"`
	TaxAmount           float64       `json:"tax_amount"`
	GrandTotal          float64       `json:"grand_total"`
	PaymentMethod       string        `json:"payment_method"`
	AmountPaid          float64       `json:"amount_paid"`
	ChangeAmount        float64       `json:"change_amount"`
	LoyaltyPointsEarned int64         `json:"loyalty_points_earned"`
	Status              string        `json:"status"`
	CreatedAt           time.Time     `json:"created_at"`
}

// ReceiptItem is one snapshot line on a receipt.
type ReceiptItem struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	ProductSKU  string  `json:"product_sku"`
	Quantity    int32   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	LineTotal   float64 `json:"line_total"`
}

// queryProvider is the slice of the store surface a checkout touches.
type queryProvider interface {
	GetProductForUpdate(ctx context.Context, id int64) (store.Product, error)
	DecrementStock(ctx context.Context, id int64, quantity int32) (int64, error)
	GetCustomer(ctx context.Context, id int64) (store.Customer, error)
	AddLoyaltyPoints(ctx context.Context, id int64, delta int64) (int64, error)
	CountSalesForDay(ctx context.Context, from, to pgtype.Timestamptz) (int64, error)
	CreateSale(ctx context.Context, arg store.CreateSaleParams) (store.Sale, error)
	CreateSaleItem(ctx context.Context, arg store.CreateSaleItemParams) (store.SaleItem, error)
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Service runs the sale transaction: price, lock stock, decrement, persist,
// accrue loyalty, all inside one database transaction.
type Service struct {
	Q        queryProvider
	Pool     txBeginner
	Validate *validator.Validate
	Events   *events.Bus

	// TaxRateBPS applies when the request carries no tax_rate of its own.
	TaxRateBPS          int64
	LoyaltyPointDivisor int64

	Now func() time.Time
}

// Create executes a checkout for the cashier identified by userID.
func (s *Service) Create(ctx context.Context, userID int64, in Input) (Receipt, error) {
	if s == nil || s.Q == nil || s.Pool == nil {
		return Receipt{}, errors.New("checkout service not configured")
	}
	if userID <= 0 {
		return Receipt{}, common.NewAppError("UNAUTHORIZED", "user is required for checkout", http.StatusUnauthorized, nil)
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = "cash"
	}
	if err := s.validate(in); err != nil {
		return Receipt{}, err
	}

	var (
		sale     store.Sale
		items    []store.SaleItem
		lowStock []events.StockLow
	)
	attempt := 0
	for {
		attempt++
		var err error
		sale, items, lowStock, err = s.createOnce(ctx, userID, in)
		if err == nil {
			break
		}
		if store.UniqueViolation(err) && attempt < invoiceMaxAttempts {
			obs.InvoiceRetryTotal.Inc()
			continue
		}
		obs.CheckoutTotal.WithLabelValues("error", in.PaymentMethod).Inc()
		return Receipt{}, err
	}

	obs.CheckoutTotal.WithLabelValues("completed", in.PaymentMethod).Inc()
	obs.SaleAmount.Observe(float64(sale.GrandTotal))

	if s.Events != nil {
		productIDs := make([]int64, 0, len(items))
		for _, it := range items {
			if !slices.Contains(productIDs, it.ProductID) {
				productIDs = append(productIDs, it.ProductID)
			}
		}
		_ = s.Events.Publish(ctx, events.TopicSaleCompleted, events.SaleCompleted{
			SaleID:        sale.ID,
			InvoiceNumber: sale.InvoiceNumber,
			UserID:        sale.UserID,
			CustomerID:    in.CustomerID,
			GrandTotal:    sale.GrandTotal,
			PointsEarned:  sale.LoyaltyPointsEarned,
			ProductIDs:    productIDs,
		})
		for _, low := range lowStock {
			_ = s.Events.Publish(ctx, events.TopicStockLow, low)
		}
	}
	return buildReceipt(sale, items), nil
}

func (s *Service) createOnce(ctx context.Context, userID int64, in Input) (store.Sale, []store.SaleItem, []events.StockLow, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.Sale{}, nil, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.txQueries(tx)

	// Duplicate cart lines stay separate for pricing and persistence, but
	// each product is locked and decremented once with its combined quantity.
	ids, need := aggregateQuantities(in.Items)

	// Lock product rows in id order so concurrent checkouts of overlapping
	// carts cannot deadlock.
	prods := make(map[int64]store.Product, len(ids))
	for _, id := range ids {
		p, err := qtx.GetProductForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.Sale{}, nil, nil, common.NewAppError("PRODUCT_NOT_FOUND",
					fmt.Sprintf("product %d not found", id), http.StatusNotFound, err).
					WithDetails(map[string]any{"product_id": id})
			}
			return store.Sale{}, nil, nil, err
		}
		if !p.IsActive {
			return store.Sale{}, nil, nil, common.NewAppError("PRODUCT_NOT_FOUND",
				fmt.Sprintf("product %d is not for sale", id), http.StatusNotFound, nil).
				WithDetails(map[string]any{"product_id": id})
		}
		if p.StockQuantity < need[id] {
			obs.StockConflictTotal.WithLabelValues("insufficient").Inc()
			return store.Sale{}, nil, nil, common.NewAppError("INSUFFICIENT_STOCK",
				fmt.Sprintf("insufficient stock for %s", p.Name), http.StatusBadRequest, nil).
				WithDetails(map[string]any{
					"product_id": p.ID,
					"available":  p.StockQuantity,
					"requested":  need[id],
				})
		}
		prods[id] = p
	}

	// Price the lines in the order they were submitted.
	lines := make([]pricing.Line, len(in.Items))
	for i, it := range in.Items {
		p := prods[it.ProductID]
		lines[i] = pricing.Line{
			ProductID:    p.ID,
			Quantity:     it.Quantity,
			UnitPrice:    p.Price,
			LineDiscount: common.ToCents(it.Discount),
		}
	}

	taxRateBPS := s.TaxRateBPS
	if in.TaxRate != nil {
		taxRateBPS = int64(common.PercentToBps(*in.TaxRate))
	}
	disc := s.discount(in)
	totals := pricing.Compute(lines, disc, taxRateBPS)

	// Omitted tender means exact payment, regardless of method.
	amountPaid := totals.GrandTotal
	if in.AmountPaid != nil {
		amountPaid = common.ToCents(*in.AmountPaid)
	}
	change := common.Money(0)
	if in.PaymentMethod == "cash" {
		var ok bool
		change, ok = pricing.Change(totals.GrandTotal, amountPaid)
		if !ok {
			return store.Sale{}, nil, nil, common.NewAppError("INSUFFICIENT_PAYMENT",
				"amount paid does not cover the total", http.StatusBadRequest, nil).
				WithDetails(map[string]any{
					"required": common.FromCents(totals.GrandTotal),
					"provided": common.FromCents(amountPaid),
				})
		}
	} else if amountPaid > totals.GrandTotal {
		change = amountPaid - totals.GrandTotal
	}

	var customerID pgtype.Int8
	if in.CustomerID != nil {
		if _, err := qtx.GetCustomer(ctx, *in.CustomerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.Sale{}, nil, nil, common.NewAppError("CUSTOMER_NOT_FOUND",
					fmt.Sprintf("customer %d not found", *in.CustomerID), http.StatusNotFound, err)
			}
			return store.Sale{}, nil, nil, err
		}
		customerID = store.Int8(in.CustomerID)
	}

	points := int64(0)
	if in.CustomerID != nil {
		points = loyalty.PointsFor(totals.GrandTotal, s.LoyaltyPointDivisor)
	}

	invoice, err := s.nextInvoiceNumber(ctx, qtx)
	if err != nil {
		return store.Sale{}, nil, nil, err
	}

	sale, err := qtx.CreateSale(ctx, store.CreateSaleParams{
		InvoiceNumber:       invoice,
		UserID:              userID,
		CustomerID:          customerID,
		Subtotal:            totals.Subtotal,
		DiscountType:        discountTypeLabel(in.DiscountType),
		DiscountValue:       disc.Value,
		DiscountAmount:      totals.DiscountAmount,
		TaxRateBPS:          taxRateBPS,
		TaxAmount:           totals.TaxAmount,
		GrandTotal:          totals.GrandTotal,
		PaymentMethod:       in.PaymentMethod,
		AmountPaid:          amountPaid,
		ChangeAmount:        change,
		LoyaltyPointsEarned: points,
		Notes:               store.TextPtr(in.Notes),
	})
	if err != nil {
		return store.Sale{}, nil, nil, err
	}

	for _, id := range ids {
		affected, err := qtx.DecrementStock(ctx, id, need[id])
		if err != nil {
			return store.Sale{}, nil, nil, err
		}
		if affected == 0 {
			// The row is locked, so this only fires if the guard and the
			// earlier read disagree. Abort rather than oversell.
			obs.StockConflictTotal.WithLabelValues("raced").Inc()
			return store.Sale{}, nil, nil, common.NewAppError("INSUFFICIENT_STOCK",
				fmt.Sprintf("insufficient stock for %s", prods[id].Name), http.StatusBadRequest, nil).
				WithDetails(map[string]any{"product_id": id, "requested": need[id]})
		}
	}

	saleItems := make([]store.SaleItem, 0, len(in.Items))
	for i, it := range in.Items {
		p := prods[it.ProductID]
		item, err := qtx.CreateSaleItem(ctx, store.CreateSaleItemParams{
			SaleID:      sale.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
			Discount:    common.ToCents(it.Discount),
			LineTotal:   totals.LineTotals[i],
		})
		if err != nil {
			return store.Sale{}, nil, nil, err
		}
		saleItems = append(saleItems, item)
	}

	var lowStock []events.StockLow
	for _, id := range ids {
		p := prods[id]
		remaining := p.StockQuantity - need[id]
		if remaining <= p.LowStockThreshold {
			lowStock = append(lowStock, events.StockLow{
				ProductID:   p.ID,
				ProductName: p.Name,
				SKU:         p.SKU,
				Remaining:   remaining,
				Threshold:   p.LowStockThreshold,
			})
		}
	}

	if points > 0 {
		if _, err := qtx.AddLoyaltyPoints(ctx, *in.CustomerID, points); err != nil {
			return store.Sale{}, nil, nil, err
		}
		obs.LoyaltyPointsTotal.WithLabelValues("earned").Add(float64(points))
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Sale{}, nil, nil, err
	}
	return sale, saleItems, lowStock, nil
}

// txQueries binds the query surface to the open transaction. Test stubs are
// not transaction-bound and pass through unchanged.
func (s *Service) txQueries(tx pgx.Tx) queryProvider {
	if q, ok := s.Q.(*store.Queries); ok {
		return q.WithTx(tx)
	}
	return s.Q
}

func (s *Service) validate(in Input) error {
	if len(in.Items) == 0 {
		return common.NewAppError("EMPTY_CART", "at least one item is required", http.StatusBadRequest, nil)
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return common.NewAppError("VALIDATION_ERROR", "invalid checkout payload", http.StatusBadRequest, err)
		}
	}
	return nil
}

func (s *Service) discount(in Input) pricing.Discount {
	switch in.DiscountType {
	case "percentage":
		return pricing.Discount{Type: pricing.DiscountPercent, Value: int64(common.PercentToBps(in.DiscountValue))}
	case "fixed":
		return pricing.Discount{Type: pricing.DiscountFixed, Value: common.ToCents(in.DiscountValue)}
	}
	return pricing.Discount{}
}

func discountTypeLabel(kind string) string {
	if kind == "" {
		return "none"
	}
	return kind
}

// nextInvoiceNumber derives INV-YYYYMMDD-NNNN from the count of sales already
// recorded today. The unique index on invoice_number backstops races; the
// caller retries on conflict.
func (s *Service) nextInvoiceNumber(ctx context.Context, qtx queryProvider) (string, error) {
	now := s.clock()()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := qtx.CountSalesForDay(ctx, store.Timestamp(dayStart), store.Timestamp(dayStart.Add(24*time.Hour)))
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(now, count+1), nil
}

func (s *Service) clock() func() time.Time {
	if s.Now != nil {
		return s.Now
	}
	return time.Now
}

// FormatInvoiceNumber renders the daily sequenced invoice identifier.
func FormatInvoiceNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%04d", day.Format("20060102"), seq)
}

// aggregateQuantities sums requested quantities per product and returns the
// product ids sorted, giving the row locks a stable acquisition order.
func aggregateQuantities(items []InputItem) ([]int64, map[int64]int32) {
	need := make(map[int64]int32, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, seen := need[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		need[it.ProductID] += it.Quantity
	}
	slices.Sort(ids)
	return ids, need
}

func discountValueMajor(kind string, value int64) float64 {
	switch kind {
	case "percentage":
		return common.BpsToPercent(int(value))
	case "fixed":
		return common.FromCents(value)
	}
	return 0
}

func buildReceipt(sale store.Sale, items []store.SaleItem) Receipt {
	r := Receipt{
		SaleID:              sale.ID,
		InvoiceNumber:       sale.InvoiceNumber,
		Subtotal:            common.FromCents(sale.Subtotal),
		DiscountType:        sale.DiscountType,
		DiscountValue:       discountValueMajor(sale.DiscountType, sale.DiscountValue),
		DiscountAmount:      common.FromCents(sale.DiscountAmount),
		TaxRate:             common.BpsToPercent(int(sale.TaxRateBPS)),
		TaxAmount:           common.FromCents(sale.TaxAmount),
		GrandTotal:          common.FromCents(sale.GrandTotal),
		PaymentMethod:       sale.PaymentMethod,
		AmountPaid:          common.FromCents(sale.AmountPaid),
		ChangeAmount:        common.FromCents(sale.ChangeAmount),
		LoyaltyPointsEarned: sale.LoyaltyPointsEarned,
		Status:              sale.Status,
		CreatedAt:           sale.CreatedAt.Time,
	}
	for _, it := range items {
		r.Items = append(r.Items, ReceiptItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			UnitPrice:   common.FromCents(it.UnitPrice),
			Discount:    common.FromCents(it.Discount),
			LineTotal:   common.FromCents(it.LineTotal),
		})
	}
	return r
}
