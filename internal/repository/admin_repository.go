package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"revenda_bot/internal/entities"
)

// AdminRepository backs the global admin menu tree and its contacts.
type AdminRepository struct {
	db *pgxpool.Pool
}

func NewAdminRepository(db *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) Nodes(ctx context.Context) ([]entities.AdminNode, error) {
	rows, err := r.db.Query(ctx, "SELECT node_key, parent_key, title, response_type, content, options FROM admin_nodes")
	if err != nil {
		return nil, fmt.Errorf("query admin nodes: %w", err)
	}
	defer rows.Close()

	var out []entities.AdminNode
	for rows.Next() {
		var n entities.AdminNode
		var rtype string
		var options []byte
		if err := rows.Scan(&n.NodeKey, &n.ParentKey, &n.Title, &rtype, &n.Content, &options); err != nil {
			return nil, err
		}
		n.ResponseType = entities.AdminNodeType(rtype)
		if len(options) > 0 {
			if err := json.Unmarshal(options, &n.Options); err != nil {
				return nil, fmt.Errorf("decode options of %s: %w", n.NodeKey, err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Keywords returns the global (tenant-less) keyword set.
func (r *AdminRepository) Keywords(ctx context.Context) ([]entities.Keyword, error) {
	return activeKeywords(ctx, r.db, "")
}

func (r *AdminRepository) GetOrCreateContact(ctx context.Context, phone, name string) (*entities.AdminContact, error) {
	var c entities.AdminContact
	err := r.db.QueryRow(ctx, `
		INSERT INTO admin_contacts (phone, name, current_node_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET
			name = CASE WHEN admin_contacts.name = '' THEN EXCLUDED.name ELSE admin_contacts.name END
		RETURNING id, phone, name, current_node_key, last_response_at, interaction_count
	`, phone, name, entities.AdminRootNode).Scan(&c.ID, &c.Phone, &c.Name, &c.CurrentNodeKey, &c.LastResponseAt, &c.InteractionCount)
	if err != nil {
		return nil, fmt.Errorf("upsert admin contact: %w", err)
	}
	return &c, nil
}

// SaveContactState moves the menu pointer. respondedAt nil leaves the
// response bookkeeping untouched.
func (r *AdminRepository) SaveContactState(ctx context.Context, contactID int64, nodeKey string, respondedAt *time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE admin_contacts SET
			current_node_key = $2,
			last_response_at = COALESCE($3, last_response_at),
			interaction_count = interaction_count + CASE WHEN $3::timestamptz IS NULL THEN 0 ELSE 1 END
		WHERE id = $1
	`, contactID, nodeKey, respondedAt)
	return err
}
