package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/report"
)

type dailyReporter interface {
	Daily(ctx context.Context, day time.Time) (report.Summary, error)
}

// Handlers holds the worker-side task processors.
type Handlers struct {
	Redis   *redis.Client
	Reports dailyReporter
	AlertTo string
	Log     zerolog.Logger
}

// Register attaches the handlers to an asynq mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeLowStockAlert, h.HandleLowStock)
	mux.HandleFunc(TypeReportCache, h.HandleReportCache)
}

// HandleLowStock emits the low stock alert. Delivery is a structured log
// line tagged with the configured recipient; an SMTP hookup can replace it
// without touching the enqueue side.
func (h *Handlers) HandleLowStock(_ context.Context, t *asynq.Task) error {
	var p LowStockPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %w: %w", TypeLowStockAlert, err, asynq.SkipRetry)
	}
	h.Log.Warn().
		Str("recipient", h.AlertTo).
		Int64("product_id", p.ProductID).
		Str("product_name", p.ProductName).
		Str("sku", p.SKU).
		Int32("remaining", p.Remaining).
		Int32("threshold", p.Threshold).
		Msg("low stock alert")
	return nil
}

// HandleReportCache drops the cached reports covering the affected day so
// the next dashboard request recomputes them, then precomputes the daily
// summary when it is already a finished window.
func (h *Handlers) HandleReportCache(ctx context.Context, t *asynq.Task) error {
	var p ReportCachePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %w: %w", TypeReportCache, err, asynq.SkipRetry)
	}
	day, err := time.ParseInLocation("2006-01-02", p.Date, time.Local)
	if err != nil {
		return fmt.Errorf("parse report date %q: %w: %w", p.Date, err, asynq.SkipRetry)
	}

	if h.Redis != nil {
		keys := []string{
			"report:daily:" + p.Date,
			"report:monthly:" + day.Format("2006-01"),
		}
		if err := h.Redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("invalidate report cache %s: %w", p.Date, err)
		}
	}

	if h.Reports != nil {
		if _, err := h.Reports.Daily(ctx, day); err != nil {
			return fmt.Errorf("recompute daily report %s: %w", p.Date, err)
		}
	}
	h.Log.Debug().Str("date", p.Date).Msg("report cache refreshed")
	return nil
}
