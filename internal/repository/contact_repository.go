package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"revenda_bot/internal/entities"
)

// clientSuffixDigits is how many trailing phone digits link a contact to a client.
const clientSuffixDigits = 8

type ContactRepository struct {
	db *pgxpool.Pool
}

func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db}
}

const contactColumns = `id, tenant_id, phone, name, status, client_id, last_interaction_at, last_response_at,
	last_buttons_sent_at, last_list_sent_at, interaction_count, created_at`

func scanContact(row pgx.Row) (*entities.Contact, error) {
	var c entities.Contact
	var status string
	err := row.Scan(&c.ID, &c.TenantID, &c.Phone, &c.Name, &status, &c.ClientID, &c.LastInteractionAt,
		&c.LastResponseAt, &c.LastButtonsSentAt, &c.LastListSentAt, &c.InteractionCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = entities.ContactStatus(status)
	return &c, nil
}

// GetOrCreate returns the contact for (tenant, phone), inserting it on first
// contact. New contacts matching a client by phone suffix start as CLIENT.
func (r *ContactRepository) GetOrCreate(ctx context.Context, tenantID, phone, name string) (*entities.Contact, bool, error) {
	c, err := r.get(ctx, tenantID, phone)
	if err != nil {
		return nil, false, err
	}
	if c != nil {
		return c, false, nil
	}

	status := entities.ContactNew
	clientID, err := r.findClient(ctx, tenantID, phone)
	if err != nil {
		return nil, false, err
	}
	if clientID != nil {
		status = entities.ContactClient
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO contacts (tenant_id, phone, name, status, client_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, phone) DO NOTHING
	`, tenantID, phone, name, string(status), clientID)
	if err != nil {
		return nil, false, fmt.Errorf("insert contact: %w", err)
	}

	c, err = r.get(ctx, tenantID, phone)
	if err != nil {
		return nil, false, err
	}
	if c == nil {
		return nil, false, fmt.Errorf("contact %s vanished after insert", phone)
	}
	return c, tag.RowsAffected() == 1, nil
}

func (r *ContactRepository) get(ctx context.Context, tenantID, phone string) (*entities.Contact, error) {
	c, err := scanContact(r.db.QueryRow(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE tenant_id = $1 AND phone = $2",
		tenantID, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepository) findClient(ctx context.Context, tenantID, phone string) (*int64, error) {
	if len(phone) < clientSuffixDigits {
		return nil, nil
	}
	suffix := phone[len(phone)-clientSuffixDigits:]
	var id int64
	err := r.db.QueryRow(ctx, `
		SELECT id FROM clients
		WHERE tenant_id = $1 AND RIGHT(regexp_replace(phone, '\D', '', 'g'), $2) = $3
		ORDER BY id LIMIT 1
	`, tenantID, clientSuffixDigits, suffix).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find client: %w", err)
	}
	return &id, nil
}

func (r *ContactRepository) TouchInteraction(ctx context.Context, contactID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, "UPDATE contacts SET last_interaction_at = $2 WHERE id = $1", contactID, at)
	return err
}

// RecordResponse stamps a delivered response. NEW contacts become KNOWN.
func (r *ContactRepository) RecordResponse(ctx context.Context, contactID int64, mark entities.ResponseMark) error {
	_, err := r.db.Exec(ctx, `
		UPDATE contacts SET
			last_response_at = $2,
			last_interaction_at = $2,
			interaction_count = interaction_count + 1,
			last_buttons_sent_at = CASE WHEN $3::text = 'buttons' THEN $2 ELSE last_buttons_sent_at END,
			last_list_sent_at = CASE WHEN $3::text = 'list' THEN $2 ELSE last_list_sent_at END,
			status = CASE WHEN status = 'NEW' THEN 'KNOWN' ELSE status END
		WHERE id = $1
	`, contactID, mark.At, string(mark.Interactive))
	return err
}
