package interfaces

import (
	"context"
	"time"

	"revenda_bot/internal/entities"
)

type TenantStore interface {
	FindByInstanceName(ctx context.Context, instance string) (*entities.Tenant, error)
	ListSellers(ctx context.Context) ([]entities.Tenant, error)
	UpdateConnectionState(ctx context.Context, tenantID, state string) error
	Block(ctx context.Context, tenantID, reason string) error
}

type UserStore interface {
	ListAdminInstanceNames(ctx context.Context) ([]string, error)
}

// SettingsStore holds global key/value settings (admin instance, admin cooldown).
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

type ContactStore interface {
	GetOrCreate(ctx context.Context, tenantID, phone, name string) (*entities.Contact, bool, error)
	TouchInteraction(ctx context.Context, contactID int64, at time.Time) error
	RecordResponse(ctx context.Context, contactID int64, mark entities.ResponseMark) error
}

type RuleStore interface {
	ActiveRules(ctx context.Context, tenantID string) ([]entities.Rule, error)
}

// KeywordStore serves a seller's exact-match keywords.
type KeywordStore interface {
	TenantKeywords(ctx context.Context, tenantID string) ([]entities.Keyword, error)
}

type FlowStore interface {
	MainFlow(ctx context.Context, tenantID string) (*entities.Flow, error)
	FlowByID(ctx context.Context, tenantID string, flowID int64) (*entities.Flow, error)
	Nodes(ctx context.Context, flowID int64) ([]entities.FlowNode, error)
	ActiveSession(ctx context.Context, tenantID, phone string) (*entities.FlowSession, error)
	SaveSession(ctx context.Context, s *entities.FlowSession) error
}

type TemplateStore interface {
	GetTemplate(ctx context.Context, tenantID string, id int64) (*entities.Template, error)
}

type AdminStore interface {
	Nodes(ctx context.Context) ([]entities.AdminNode, error)
	Keywords(ctx context.Context) ([]entities.Keyword, error)
	GetOrCreateContact(ctx context.Context, phone, name string) (*entities.AdminContact, error)
	SaveContactState(ctx context.Context, contactID int64, nodeKey string, respondedAt *time.Time) error
}

type SendLogStore interface {
	Insert(ctx context.Context, e entities.SendLogEntry) error
}

type InteractionLogStore interface {
	Insert(ctx context.Context, l entities.InteractionLog) error
}

// ProviderResponse is the raw outcome of one provider HTTP call.
type ProviderResponse struct {
	StatusCode int
	Body       string
}

// Provider is the outbound WhatsApp HTTP API, keyed by instance name.
type Provider interface {
	Send(ctx context.Context, endpoint, instance string, payload any) (ProviderResponse, error)
	ConnectionState(ctx context.Context, instance string) (string, ProviderResponse, error)
	SendPresence(ctx context.Context, instance, number string, delay time.Duration) error
}

// Alerter notifies human operators. Implementations must not block for long.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// EventPublisher emits domain events for downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, key string, data any) error
	Close() error
}

// Deduper reports whether a message key was already seen recently.
// Forget releases a key whose processing failed so a redelivery retries it.
type Deduper interface {
	Seen(key string) bool
	Forget(key string)
}

// SendLimiter paces outbound replies per tenant. Wait returns an error only
// when no slot frees up before ctx ends.
type SendLimiter interface {
	Wait(ctx context.Context, key string) error
}

// UsageStore counts messages per tenant per day.
type UsageStore interface {
	IncrementSent(ctx context.Context, tenantID string, at time.Time) error
	IncrementReceived(ctx context.Context, tenantID string, at time.Time) error
}
