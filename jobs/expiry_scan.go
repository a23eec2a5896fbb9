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
	// TaskCatalogExpiryScan scans the catalog for batches nearing expiry.
	TaskCatalogExpiryScan = "catalog:expiry_scan"

	defaultExpiryWindowDays = 90
)

// ExpiryScanPayload configures how far ahead the scan looks.
type ExpiryScanPayload struct {
	WindowDays int `json:"window_days"`
}

// NewExpiryScanTask constructs an Asynq task for the expiry scan.
func NewExpiryScanTask(windowDays int) (*asynq.Task, error) {
	payload := ExpiryScanPayload{WindowDays: windowDays}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// ExpiryScanJob notifies product owners about batches expiring soon.
type ExpiryScanJob struct {
	Pool     *pgxpool.Pool
	Enqueuer EmailEnqueuer
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	clock    func() time.Time
}

// NewExpiryScanJob initialises the expiry scan handler.
func NewExpiryScanJob(pool *pgxpool.Pool, enqueuer EmailEnqueuer, logger *slog.Logger, metrics *observability.Metrics) *ExpiryScanJob {
	return &ExpiryScanJob{
		Pool:     pool,
		Enqueuer: enqueuer,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type expiryAlert struct {
	ProductID   int64
	Name        string
	BatchNumber string
	ExpiryDate  time.Time
	OwnerMail   string
}

// Handle executes the expiry scan.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = defaultExpiryWindowDays
	}

	start := j.now()
	logger := j.logger().With(slog.Int("window_days", payload.WindowDays))
	logger.Info("starting expiry scan")

	cutoff := start.AddDate(0, 0, payload.WindowDays)
	alerts, err := j.scan(ctx, cutoff)
	if err != nil {
		j.Metrics.RecordJob(TaskCatalogExpiryScan, "error")
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	notified := 0
	for _, a := range alerts {
		logger.Warn("batch nearing expiry",
			slog.Int64("product_id", a.ProductID),
			slog.String("product", a.Name),
			slog.String("batch", a.BatchNumber),
			slog.Time("expiry_date", a.ExpiryDate),
		)
		if j.Enqueuer == nil || a.OwnerMail == "" {
			continue
		}
		mail := SendEmailPayload{
			To:      a.OwnerMail,
			Subject: fmt.Sprintf("Expiring batch: %s", a.Name),
			Body:    fmt.Sprintf("Batch %s of %q expires on %s. Plan clearance or disposal.", a.BatchNumber, a.Name, a.ExpiryDate.Format("02/01/2006")),
		}
		if _, err := j.Enqueuer.EnqueueSendEmail(ctx, mail); err != nil {
			logger.Warn("enqueue notification", slog.Any("error", err))
			continue
		}
		notified++
	}

	j.Metrics.RecordJob(TaskCatalogExpiryScan, "ok")
	logger.Info("completed expiry scan",
		slog.Int("alerts", len(alerts)),
		slog.Int("notified", notified),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ExpiryScanJob) scan(ctx context.Context, cutoff time.Time) ([]expiryAlert, error) {
	if j.Pool == nil {
		return nil, errors.New("expiry scan: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `
		SELECT p.id, p.name, p.batch_number, p.expiry_date, u.email
		FROM products p
		JOIN users u ON u.id = p.company_id
		WHERE p.is_active = TRUE AND p.expiry_date <= $1
		ORDER BY p.expiry_date ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]expiryAlert, 0)
	for rows.Next() {
		var a expiryAlert
		if err := rows.Scan(&a.ProductID, &a.Name, &a.BatchNumber, &a.ExpiryDate, &a.OwnerMail); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCatalogExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskCatalogExpiryScan))
}

func (j *ExpiryScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
