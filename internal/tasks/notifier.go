package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/events"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier bridges domain events to the asynq queue. It subscribes to the
// in-process bus and enqueues background work for the worker binary.
type Notifier struct {
	client enqueuer
	log    zerolog.Logger
}

// NewNotifier wraps an asynq client. client may be an *asynq.Client.
func NewNotifier(client enqueuer, log zerolog.Logger) *Notifier {
	return &Notifier{client: client, log: log}
}

// Register subscribes the notifier to the topics it cares about.
func (n *Notifier) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicStockLow, n.onStockLow)
	bus.Subscribe(events.TopicSaleCompleted, n.onSaleCompleted)
	bus.Subscribe(events.TopicSaleRefunded, n.onSaleRefunded)
}

func (n *Notifier) onStockLow(ctx context.Context, ev events.Event) {
	var p events.StockLow
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		n.log.Error().Err(err).Str("event_id", ev.ID).Msg("decode stock.low payload")
		return
	}
	task, err := NewLowStockTask(LowStockPayload{
		ProductID:   p.ProductID,
		ProductName: p.ProductName,
		SKU:         p.SKU,
		Remaining:   p.Remaining,
		Threshold:   p.Threshold,
	})
	if err != nil {
		n.log.Error().Err(err).Msg("build low stock task")
		return
	}
	n.enqueue(ctx, task)
}

func (n *Notifier) onSaleCompleted(ctx context.Context, ev events.Event) {
	// Debounced per day: a stable task ID makes duplicate enqueues no-ops
	// until the previous one finishes.
	day := ev.OccurredAt.Format("2006-01-02")
	n.enqueueReportRefresh(ctx, day, asynq.ProcessIn(time.Minute))
}

func (n *Notifier) onSaleRefunded(ctx context.Context, ev events.Event) {
	var p events.SaleRefunded
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		n.log.Error().Err(err).Str("event_id", ev.ID).Msg("decode sale.refunded payload")
		return
	}
	// A refund can rewrite a finished window. The affected day is encoded in
	// the invoice number (INV-YYYYMMDD-NNNN); fall back to the event time.
	day := ev.OccurredAt.Format("2006-01-02")
	if d, ok := invoiceDay(p.InvoiceNumber); ok {
		day = d
	}
	n.enqueueReportRefresh(ctx, day)
}

func (n *Notifier) enqueueReportRefresh(ctx context.Context, day string, opts ...asynq.Option) {
	task, err := NewReportCacheTask(ReportCachePayload{Date: day})
	if err != nil {
		n.log.Error().Err(err).Msg("build report cache task")
		return
	}
	n.enqueue(ctx, task, append(opts, asynq.TaskID("reportcache:"+day))...)
}

func invoiceDay(invoice string) (string, bool) {
	rest := strings.TrimPrefix(invoice, "INV-")
	if len(rest) < 8 {
		return "", false
	}
	parsed, err := time.Parse("20060102", rest[:8])
	if err != nil {
		return "", false
	}
	return parsed.Format("2006-01-02"), true
}

func (n *Notifier) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) {
	info, err := n.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return
		}
		n.log.Error().Err(err).Str("type", task.Type()).Msg("enqueue task")
		return
	}
	n.log.Debug().Str("type", task.Type()).Str("task_id", info.ID).Msg("task enqueued")
}
