package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"revenda_bot/internal/entities"
)

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// activeKeywords loads the active keywords of one scope; "" is the admin scope.
func activeKeywords(ctx context.Context, db *pgxpool.Pool, tenantID string) ([]entities.Keyword, error) {
	rows, err := db.Query(ctx, "SELECT id, tenant_id, phrase, response, is_active FROM keywords WHERE tenant_id = $1 AND is_active ORDER BY id", tenantID)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var out []entities.Keyword
	for rows.Next() {
		var k entities.Keyword
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Phrase, &k.Response, &k.IsActive); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
