// Package tasks defines the background jobs handed to the worker process.
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type names routed by the worker mux.
const (
	TypeLowStockAlert = "pos:lowstock"
	TypeReportCache   = "pos:reportcache"
)

// LowStockPayload describes a product that dropped to its threshold.
type LowStockPayload struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	Remaining   int32  `json:"remaining"`
	Threshold   int32  `json:"threshold"`
}

// ReportCachePayload names the day whose cached reports must be refreshed.
type ReportCachePayload struct {
	Date string `json:"date"`
}

// NewLowStockTask builds the low stock alert task.
func NewLowStockTask(p LowStockPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLowStockAlert, body, asynq.MaxRetry(3)), nil
}

// NewReportCacheTask builds the report cache refresh task.
func NewReportCacheTask(p ReportCachePayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReportCache, body, asynq.MaxRetry(2)), nil
}
