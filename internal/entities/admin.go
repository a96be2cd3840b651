package entities

import "time"

const AdminRootNode = "inicial"

type AdminNodeType string

const (
	AdminNodeMenu AdminNodeType = "menu"
	AdminNodeText AdminNodeType = "text"
)

type AdminOption struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Target string `json:"target"`
}

// AdminNode belongs to the single global admin tree.
type AdminNode struct {
	NodeKey      string        `json:"node_key"`
	ParentKey    string        `json:"parent_key"`
	Title        string        `json:"title"`
	ResponseType AdminNodeType `json:"response_type"`
	Content      string        `json:"content"`
	Options      []AdminOption `json:"options"`
}

type AdminContact struct {
	ID               int64      `json:"id"`
	Phone            string     `json:"phone"`
	Name             string     `json:"name"`
	CurrentNodeKey   string     `json:"current_node_key"`
	LastResponseAt   *time.Time `json:"last_response_at"`
	InteractionCount int        `json:"interaction_count"`
}

type AdminCooldownMode string

const (
	AdminCooldownAlways AdminCooldownMode = "always"
	AdminCooldown6h     AdminCooldownMode = "6h"
	AdminCooldown12h    AdminCooldownMode = "12h"
	AdminCooldown24h    AdminCooldownMode = "24h"
)
