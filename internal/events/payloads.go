package events

// SaleCompleted is published after a checkout commits. ProductIDs lists the
// products whose stock changed so caches can be invalidated.
type SaleCompleted struct {
	SaleID        int64   `json:"sale_id"`
	InvoiceNumber string  `json:"invoice_number"`
	UserID        int64   `json:"user_id"`
	CustomerID    *int64  `json:"customer_id,omitempty"`
	GrandTotal    int64   `json:"grand_total"`
	PointsEarned  int64   `json:"points_earned"`
	ProductIDs    []int64 `json:"product_ids,omitempty"`
}

// SaleRefunded is published after a completed sale is refunded and its stock
// restored.
type SaleRefunded struct {
	SaleID        int64   `json:"sale_id"`
	InvoiceNumber string  `json:"invoice_number"`
	UserID        int64   `json:"user_id"`
	GrandTotal    int64   `json:"grand_total"`
	ProductIDs    []int64 `json:"product_ids,omitempty"`
}

// StockLow is published when a checkout drops a product to or below its
// replenishment threshold.
type StockLow struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	Remaining   int32  `json:"remaining"`
	Threshold   int32  `json:"threshold"`
}
