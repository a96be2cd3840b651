package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository keeps per-tenant daily message counters.
type UsageRepository struct {
	db *pgxpool.Pool
}

type DailyUsage struct {
	Date             time.Time `json:"date"`
	MessagesSent     int       `json:"messages_sent"`
	MessagesReceived int       `json:"messages_received"`
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

// IncrementSent increments messages_sent for the day of at
func (r *UsageRepository) IncrementSent(ctx context.Context, tenantID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tenant_usage (tenant_id, date, messages_sent, messages_received)
		VALUES ($1, $2, 1, 0)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET messages_sent = tenant_usage.messages_sent + 1
	`, tenantID, at.Format("2006-01-02"))
	return err
}

// IncrementReceived increments messages_received for the day of at
func (r *UsageRepository) IncrementReceived(ctx context.Context, tenantID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tenant_usage (tenant_id, date, messages_sent, messages_received)
		VALUES ($1, $2, 0, 1)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET messages_received = tenant_usage.messages_received + 1
	`, tenantID, at.Format("2006-01-02"))
	return err
}

// History returns the last n days of usage, oldest first
func (r *UsageRepository) History(ctx context.Context, tenantID string, days int, now time.Time) ([]DailyUsage, error) {
	startDate := now.AddDate(0, 0, -days).Format("2006-01-02")
	rows, err := r.db.Query(ctx, `
		SELECT date, messages_sent, messages_received
		FROM tenant_usage
		WHERE tenant_id = $1 AND date >= $2
		ORDER BY date ASC
	`, tenantID, startDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := []DailyUsage{}
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.MessagesSent, &u.MessagesReceived); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
