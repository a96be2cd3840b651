package entities

import "time"

type TenantKind string

const (
	TenantAdmin  TenantKind = "admin"
	TenantSeller TenantKind = "seller"
)

// Plan status values written by the billing side.
const (
	PlanActive    = "active"
	PlanExpired   = "expired"
	PlanSuspended = "suspended"
)

// Connection states as reported by the provider.
const (
	ConnectionOpen         = "open"
	ConnectionDisconnected = "disconnected"
)

// Tenant is either the single admin account or one seller account.
type Tenant struct {
	ID                   string     `json:"id"`
	Kind                 TenantKind `json:"kind"`
	Name                 string     `json:"name"`
	InstanceName         string     `json:"instance_name"`
	OriginalInstanceName string     `json:"original_instance_name"`
	ConnectionState      string     `json:"connection_state"`
	Blocked              bool       `json:"blocked"`
	BlockedReason        string     `json:"blocked_reason"`
	PlanStatus           string     `json:"plan_status"`
	SilentMode           bool       `json:"silent_mode"`
	FallbackMessage      string     `json:"fallback_message"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (t *Tenant) IsAdmin() bool {
	return t != nil && t.Kind == TenantAdmin
}

// PlanLapsed reports whether billing marked the plan as no longer usable.
func (t *Tenant) PlanLapsed() bool {
	return t.PlanStatus == PlanExpired || t.PlanStatus == PlanSuspended
}
