package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/observability"
)

const (
	// TaskCatalogStockAlerts scans the catalog for products running low on stock.
	TaskCatalogStockAlerts = "catalog:stock_alerts"
)

// EmailEnqueuer submits notification tasks to the queue.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// StockAlertPayload carries scheduling metadata.
type StockAlertPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewStockAlertTask constructs an Asynq task for the low-stock scan.
func NewStockAlertTask(at time.Time) (*asynq.Task, error) {
	payload := StockAlertPayload{ScheduledFor: at}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogStockAlerts, body, asynq.Queue(QueueDefault)), nil
}

// StockAlertJob notifies product owners when their stock reaches the low threshold.
type StockAlertJob struct {
	Pool     *pgxpool.Pool
	Enqueuer EmailEnqueuer
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	clock    func() time.Time
}

// NewStockAlertJob initialises the low-stock scan handler.
func NewStockAlertJob(pool *pgxpool.Pool, enqueuer EmailEnqueuer, logger *slog.Logger, metrics *observability.Metrics) *StockAlertJob {
	return &StockAlertJob{
		Pool:     pool,
		Enqueuer: enqueuer,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type stockAlert struct {
	ProductID int64
	Name      string
	Quantity  int64
	Threshold int64
	OwnerMail string
}

// Handle executes the low-stock scan.
func (j *StockAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("stock alerts: handler not configured")
	}
	var payload StockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	logger := j.logger()
	logger.Info("starting low-stock scan")

	alerts, err := j.scan(ctx)
	if err != nil {
		j.Metrics.RecordJob(TaskCatalogStockAlerts, "error")
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	notified := 0
	for _, a := range alerts {
		logger.Warn("low stock detected",
			slog.Int64("product_id", a.ProductID),
			slog.String("product", a.Name),
			slog.Int64("quantity", a.Quantity),
			slog.Int64("threshold", a.Threshold),
		)
		if j.Enqueuer == nil || a.OwnerMail == "" {
			continue
		}
		mail := SendEmailPayload{
			To:      a.OwnerMail,
			Subject: fmt.Sprintf("Low stock: %s", a.Name),
			Body:    fmt.Sprintf("Product %q is down to %d units (threshold %d). Consider restocking.", a.Name, a.Quantity, a.Threshold),
		}
		if _, err := j.Enqueuer.EnqueueSendEmail(ctx, mail); err != nil {
			logger.Warn("enqueue notification", slog.Any("error", err))
			continue
		}
		notified++
	}

	j.Metrics.RecordJob(TaskCatalogStockAlerts, "ok")
	logger.Info("completed low-stock scan",
		slog.Int("alerts", len(alerts)),
		slog.Int("notified", notified),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *StockAlertJob) scan(ctx context.Context) ([]stockAlert, error) {
	if j.Pool == nil {
		return nil, errors.New("stock alerts: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `
		SELECT p.id, p.name, p.quantity, p.low_stock_threshold, u.email
		FROM products p
		JOIN users u ON u.id = p.company_id
		WHERE p.is_active = TRUE AND p.quantity <= p.low_stock_threshold
		ORDER BY p.quantity ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]stockAlert, 0)
	for rows.Next() {
		var a stockAlert
		if err := rows.Scan(&a.ProductID, &a.Name, &a.Quantity, &a.Threshold, &a.OwnerMail); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (j *StockAlertJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCatalogStockAlerts))
	}
	return slog.Default().With(slog.String("job", TaskCatalogStockAlerts))
}

func (j *StockAlertJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
