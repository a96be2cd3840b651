package entities

import "encoding/json"

type CooldownMode string

const (
	CooldownFree     CooldownMode = "free"
	CooldownPolite   CooldownMode = "polite"
	CooldownModerate CooldownMode = "moderate"
)

type ResponseType string

const (
	ResponseText        ResponseType = "text"
	ResponseTextImage   ResponseType = "text_image"
	ResponseTextButtons ResponseType = "text_buttons"
	ResponseTextList    ResponseType = "text_list"
)

// ContactFilterAll matches every contact status.
const ContactFilterAll = "ALL"

// Rule is a tenant-scoped trigger with a canned response.
type Rule struct {
	ID              int64           `json:"id"`
	TenantID        string          `json:"tenant_id"`
	TriggerText     string          `json:"trigger_text"`
	IsGlobalTrigger bool            `json:"is_global_trigger"`
	ContactFilter   string          `json:"contact_filter"`
	CooldownMode    CooldownMode    `json:"cooldown_mode"`
	CooldownHours   int             `json:"cooldown_hours"`
	ResponseType    ResponseType    `json:"response_type"`
	ResponseContent json.RawMessage `json:"response_content"`
	Priority        int             `json:"priority"`
	IsActive        bool            `json:"is_active"`
}

// Keyword is an exact phrase with a canned reply. TenantID is empty for the admin tree.
type Keyword struct {
	ID       int64  `json:"id"`
	TenantID string `json:"tenant_id"`
	Phrase   string `json:"phrase"`
	Response string `json:"response"`
	IsActive bool   `json:"is_active"`
}

// Template is reusable content referenced by flow nodes.
type Template struct {
	ID       int64  `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}
