package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/report"
	"github.com/noah-isme/backend-pos/internal/store"
)

type stubRecorder struct{}

func (stubRecorder) InsertDomainEvent(_ context.Context, eventID, topic string, payload []byte) (store.DomainEvent, error) {
	return store.DomainEvent{EventID: eventID, Topic: topic, Payload: payload}, nil
}

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func TestNotifierEnqueuesLowStockTask(t *testing.T) {
	enq := &stubEnqueuer{}
	bus := events.NewBus(stubRecorder{}, zerolog.Nop())
	NewNotifier(enq, zerolog.Nop()).Register(bus)

	err := bus.Publish(t.Context(), events.TopicStockLow, events.StockLow{
		ProductID:   7,
		ProductName: "Arabica Gayo 250g",
		SKU:         "COF-001",
		Remaining:   2,
		Threshold:   5,
	})
	require.NoError(t, err)

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeLowStockAlert, enq.tasks[0].Type())

	var p LowStockPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &p))
	assert.Equal(t, int64(7), p.ProductID)
	assert.Equal(t, int32(2), p.Remaining)
}

func TestNotifierEnqueuesReportRefreshOnCheckout(t *testing.T) {
	enq := &stubEnqueuer{}
	bus := events.NewBus(stubRecorder{}, zerolog.Nop())
	bus.Now = func() time.Time { return time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC) }
	NewNotifier(enq, zerolog.Nop()).Register(bus)

	err := bus.Publish(t.Context(), events.TopicSaleCompleted, events.SaleCompleted{SaleID: 1})
	require.NoError(t, err)

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeReportCache, enq.tasks[0].Type())

	var p ReportCachePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &p))
	assert.Equal(t, "2025-06-01", p.Date)
}

func TestNotifierUsesInvoiceDayOnRefund(t *testing.T) {
	enq := &stubEnqueuer{}
	bus := events.NewBus(stubRecorder{}, zerolog.Nop())
	bus.Now = func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) }
	NewNotifier(enq, zerolog.Nop()).Register(bus)

	err := bus.Publish(t.Context(), events.TopicSaleRefunded, events.SaleRefunded{
		SaleID:        4,
		InvoiceNumber: "INV-20250601-0007",
	})
	require.NoError(t, err)

	require.Len(t, enq.tasks, 1)
	var p ReportCachePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &p))
	assert.Equal(t, "2025-06-01", p.Date)
}

type stubReporter struct {
	days []time.Time
}

func (s *stubReporter) Daily(_ context.Context, day time.Time) (report.Summary, error) {
	s.days = append(s.days, day)
	return report.Summary{}, nil
}

func TestHandleReportCacheDeletesKeysAndRecomputes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set("report:daily:2025-06-01", "stale"))
	require.NoError(t, mr.Set("report:monthly:2025-06", "stale"))

	rep := &stubReporter{}
	h := &Handlers{Redis: rdb, Reports: rep, Log: zerolog.Nop()}

	task, err := NewReportCacheTask(ReportCachePayload{Date: "2025-06-01"})
	require.NoError(t, err)
	require.NoError(t, h.HandleReportCache(t.Context(), task))

	assert.False(t, mr.Exists("report:daily:2025-06-01"))
	assert.False(t, mr.Exists("report:monthly:2025-06"))
	require.Len(t, rep.days, 1)
	assert.Equal(t, time.June, rep.days[0].Month())
}

func TestHandleReportCacheRejectsBadDate(t *testing.T) {
	h := &Handlers{Log: zerolog.Nop()}
	task := asynq.NewTask(TypeReportCache, []byte(`{"date":"yesterday"}`))

	err := h.HandleReportCache(t.Context(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleLowStockDecodesPayload(t *testing.T) {
	h := &Handlers{AlertTo: "ops@example.com", Log: zerolog.Nop()}

	task, err := NewLowStockTask(LowStockPayload{ProductID: 3, SKU: "SNK-010", Remaining: 1, Threshold: 5})
	require.NoError(t, err)
	require.NoError(t, h.HandleLowStock(t.Context(), task))

	err = h.HandleLowStock(t.Context(), asynq.NewTask(TypeLowStockAlert, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
