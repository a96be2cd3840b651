package entities

import "time"

type ContactStatus string

const (
	ContactNew    ContactStatus = "NEW"
	ContactKnown  ContactStatus = "KNOWN"
	ContactClient ContactStatus = "CLIENT"
)

// Contact is one chat partner of a seller tenant, unique per (tenant, phone).
type Contact struct {
	ID                int64         `json:"id"`
	TenantID          string        `json:"tenant_id"`
	Phone             string        `json:"phone"`
	Name              string        `json:"name"`
	Status            ContactStatus `json:"status"`
	ClientID          *int64        `json:"client_id,omitempty"`
	LastInteractionAt *time.Time    `json:"last_interaction_at"`
	LastResponseAt    *time.Time    `json:"last_response_at"`
	LastButtonsSentAt *time.Time    `json:"last_buttons_sent_at"`
	LastListSentAt    *time.Time    `json:"last_list_sent_at"`
	InteractionCount  int           `json:"interaction_count"`
	CreatedAt         time.Time     `json:"created_at"`
}

// ResponseMark describes what was delivered to a contact so the store can
// update its timestamps in one statement.
type ResponseMark struct {
	At          time.Time
	Interactive InteractiveKind
}

type InteractiveKind string

const (
	InteractiveNone    InteractiveKind = ""
	InteractiveButtons InteractiveKind = "buttons"
	InteractiveList    InteractiveKind = "list"
)
