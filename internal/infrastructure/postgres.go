package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPostgresClient(ctx context.Context, connString string, log zerolog.Logger) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool, log: log}

	// Auto-migrate schema
	if err := client.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

// migrations create the tables the engine reads and writes. The dashboard
// side owns the data; these only guarantee the shape exists.
var migrations = []struct {
	name string
	sql  string
}{
	{"tenants", `
		CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			kind VARCHAR(10) NOT NULL DEFAULT 'seller',
			name VARCHAR(255) NOT NULL DEFAULT '',
			instance_name VARCHAR(255) NOT NULL DEFAULT '',
			original_instance_name VARCHAR(255) NOT NULL DEFAULT '',
			connection_state VARCHAR(30) NOT NULL DEFAULT 'disconnected',
			blocked BOOLEAN NOT NULL DEFAULT FALSE,
			blocked_reason TEXT NOT NULL DEFAULT '',
			plan_status VARCHAR(20) NOT NULL DEFAULT 'active',
			silent_mode BOOLEAN NOT NULL DEFAULT TRUE,
			fallback_message TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_tenants_instance ON tenants (LOWER(instance_name));
	`},
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			role VARCHAR(20) DEFAULT 'user',
			instance_name VARCHAR(255) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`},
	{"settings", `
		CREATE TABLE IF NOT EXISTS settings (
			key VARCHAR(100) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
	`},
	{"clients", `
		CREATE TABLE IF NOT EXISTS clients (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(30) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`},
	{"contacts", `
		CREATE TABLE IF NOT EXISTS contacts (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			phone VARCHAR(30) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(10) NOT NULL DEFAULT 'NEW',
			client_id BIGINT REFERENCES clients(id) ON DELETE SET NULL,
			last_interaction_at TIMESTAMPTZ,
			last_response_at TIMESTAMPTZ,
			last_buttons_sent_at TIMESTAMPTZ,
			last_list_sent_at TIMESTAMPTZ,
			interaction_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (tenant_id, phone)
		);
	`},
	{"rules", `
		CREATE TABLE IF NOT EXISTS rules (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			trigger_text TEXT NOT NULL DEFAULT '',
			is_global_trigger BOOLEAN NOT NULL DEFAULT FALSE,
			contact_filter VARCHAR(10) NOT NULL DEFAULT 'ALL',
			cooldown_mode VARCHAR(10) NOT NULL DEFAULT 'polite',
			cooldown_hours INT NOT NULL DEFAULT 0,
			response_type VARCHAR(20) NOT NULL DEFAULT 'text',
			response_content JSONB NOT NULL DEFAULT '{}',
			priority INT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE INDEX IF NOT EXISTS idx_rules_tenant ON rules (tenant_id) WHERE is_active;
	`},
	{"keywords", `
		CREATE TABLE IF NOT EXISTS keywords (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL DEFAULT '',
			phrase TEXT NOT NULL,
			response TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE INDEX IF NOT EXISTS idx_keywords_tenant ON keywords (tenant_id) WHERE is_active;
	`},
	{"templates", `
		CREATE TABLE IF NOT EXISTS templates (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT ''
		);
	`},
	{"flows", `
		CREATE TABLE IF NOT EXISTS flows (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			greeting TEXT NOT NULL DEFAULT '',
			is_main_menu BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_flows_main ON flows (tenant_id) WHERE is_main_menu AND is_active;
	`},
	{"flow_nodes", `
		CREATE TABLE IF NOT EXISTS flow_nodes (
			id BIGSERIAL PRIMARY KEY,
			flow_id BIGINT NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
			parent_node_id BIGINT,
			option_number VARCHAR(10) NOT NULL DEFAULT '',
			label VARCHAR(255) NOT NULL DEFAULT '',
			response_type VARCHAR(20) NOT NULL DEFAULT 'text',
			response_content TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			template_id BIGINT,
			sort_order INT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);
	`},
	{"flow_sessions", `
		CREATE TABLE IF NOT EXISTS flow_sessions (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			contact_phone VARCHAR(30) NOT NULL,
			current_flow_id BIGINT NOT NULL,
			current_node_id BIGINT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			awaiting_human BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (tenant_id, contact_phone)
		);
	`},
	{"admin_nodes", `
		CREATE TABLE IF NOT EXISTS admin_nodes (
			node_key VARCHAR(100) PRIMARY KEY,
			parent_key VARCHAR(100) NOT NULL DEFAULT '',
			title VARCHAR(255) NOT NULL DEFAULT '',
			response_type VARCHAR(10) NOT NULL DEFAULT 'menu',
			content TEXT NOT NULL DEFAULT '',
			options JSONB NOT NULL DEFAULT '[]'
		);
	`},
	{"admin_contacts", `
		CREATE TABLE IF NOT EXISTS admin_contacts (
			id BIGSERIAL PRIMARY KEY,
			phone VARCHAR(30) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			current_node_key VARCHAR(100) NOT NULL DEFAULT 'inicial',
			last_response_at TIMESTAMPTZ,
			interaction_count INT NOT NULL DEFAULT 0
		);
	`},
	{"send_logs", `
		CREATE TABLE IF NOT EXISTS send_logs (
			id BIGSERIAL PRIMARY KEY,
			trace_id VARCHAR(64) NOT NULL DEFAULT '',
			tenant_id TEXT NOT NULL DEFAULT '',
			phone VARCHAR(30) NOT NULL DEFAULT '',
			instance VARCHAR(255) NOT NULL DEFAULT '',
			message_type VARCHAR(40) NOT NULL,
			success BOOLEAN NOT NULL,
			status_code INT NOT NULL DEFAULT 0,
			provider_response TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_send_logs_tenant ON send_logs (tenant_id, created_at DESC);
	`},
	{"interaction_logs", `
		CREATE TABLE IF NOT EXISTS interaction_logs (
			id BIGSERIAL PRIMARY KEY,
			trace_id VARCHAR(64) NOT NULL DEFAULT '',
			tenant_id TEXT NOT NULL DEFAULT '',
			phone VARCHAR(30) NOT NULL DEFAULT '',
			inbound_text TEXT NOT NULL DEFAULT '',
			outcome VARCHAR(20) NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			source VARCHAR(20) NOT NULL DEFAULT '',
			rule_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"tenant_usage", `
		CREATE TABLE IF NOT EXISTS tenant_usage (
			tenant_id TEXT NOT NULL,
			date DATE NOT NULL,
			messages_sent INT NOT NULL DEFAULT 0,
			messages_received INT NOT NULL DEFAULT 0,
			PRIMARY KEY (tenant_id, date)
		);
	`},
}

func (p *PostgresClient) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := p.Pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("create %s table: %w", m.name, err)
		}
	}

	var sellers int
	if err := p.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenants WHERE kind = 'seller'").Scan(&sellers); err != nil {
		return err
	}
	if sellers == 0 {
		p.log.Info().Msg("database initialized, no seller tenants yet")
	}
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
