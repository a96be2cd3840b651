package entities

import "time"

// Structured callback prefixes produced by the ingress for button and list replies.
const (
	ButtonCallbackPrefix = "__BUTTON__:"
	ListCallbackPrefix   = "__LIST__:"
)

// InboundMessage is the canonical form of one provider webhook message.
type InboundMessage struct {
	TraceID   string    `json:"trace_id"`
	Event     string    `json:"event"`
	Instance  string    `json:"instance"`
	RemoteJID string    `json:"remote_jid"`
	Phone     string    `json:"phone"`
	MessageID string    `json:"message_id"`
	PushName  string    `json:"push_name"`
	FromMe    bool      `json:"from_me"`
	Text      string    `json:"text"`
	Received  time.Time `json:"received_at"`
}

// SendLogEntry is one outbound attempt. Rows are never updated after insert.
type SendLogEntry struct {
	ID           int64     `json:"id"`
	TraceID      string    `json:"trace_id"`
	TenantID     string    `json:"tenant_id"`
	Phone        string    `json:"phone"`
	Instance     string    `json:"instance"`
	MessageType  string    `json:"message_type"`
	Success      bool      `json:"success"`
	StatusCode   int       `json:"status_code"`
	ProviderBody string    `json:"provider_response"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// Interaction outcomes.
const (
	OutcomeResponded  = "responded"
	OutcomeBlocked    = "blocked"
	OutcomeIgnored    = "ignored"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
	OutcomeNotFound   = "not_found"
)

// InteractionLog records what the engine decided for one inbound message.
type InteractionLog struct {
	TraceID   string    `json:"trace_id"`
	TenantID  string    `json:"tenant_id"`
	Phone     string    `json:"phone"`
	Inbound   string    `json:"inbound_text"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	RuleID    *int64    `json:"rule_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
