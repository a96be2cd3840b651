package entities

import (
	"sort"
	"time"
)

type NodeType string

const (
	NodeText          NodeType = "text"
	NodeTextImage     NodeType = "text_image"
	NodeSubmenu       NodeType = "submenu"
	NodeTemplate      NodeType = "template"
	NodeHumanTransfer NodeType = "human_transfer"
	NodeEndChat       NodeType = "end_chat"
)

// Flow is a seller-defined menu tree. At most one active flow per tenant is
// marked as main menu.
type Flow struct {
	ID         int64  `json:"id"`
	TenantID   string `json:"tenant_id"`
	Name       string `json:"name"`
	Greeting   string `json:"greeting"`
	IsMainMenu bool   `json:"is_main_menu"`
	IsActive   bool   `json:"is_active"`
}

type FlowNode struct {
	ID           int64    `json:"id"`
	FlowID       int64    `json:"flow_id"`
	ParentID     *int64   `json:"parent_node_id"`
	OptionNumber string   `json:"option_number"`
	Label        string   `json:"label"`
	ResponseType NodeType `json:"response_type"`
	Content      string   `json:"response_content"`
	ImageURL     string   `json:"image_url"`
	TemplateID   *int64   `json:"template_id"`
	SortOrder    int      `json:"sort_order"`
	IsActive     bool     `json:"is_active"`
}

// FlowSession points a contact into a flow. CurrentNodeID nil means the root level.
type FlowSession struct {
	ID            int64     `json:"id"`
	TenantID      string    `json:"tenant_id"`
	ContactPhone  string    `json:"contact_phone"`
	FlowID        int64     `json:"current_flow_id"`
	CurrentNodeID *int64    `json:"current_node_id"`
	IsActive      bool      `json:"is_active"`
	AwaitingHuman bool      `json:"awaiting_human"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FlowTree is a flat, id-keyed view of a flow's active nodes.
type FlowTree struct {
	Flow     Flow
	nodes    map[int64]*FlowNode
	children map[int64][]*FlowNode
}

// rootKey holds root-level children. Node ids come from a serial column and are never 0.
const rootKey int64 = 0

// NewFlowTree indexes nodes by id and parent. Inactive nodes are dropped and a
// node whose parent is missing or inactive is attached to the root level.
func NewFlowTree(flow Flow, nodes []FlowNode) *FlowTree {
	t := &FlowTree{
		Flow:     flow,
		nodes:    make(map[int64]*FlowNode, len(nodes)),
		children: make(map[int64][]*FlowNode),
	}
	for i := range nodes {
		n := nodes[i]
		if !n.IsActive || n.ID == rootKey {
			continue
		}
		t.nodes[n.ID] = &n
	}
	for _, n := range t.nodes {
		key := rootKey
		if n.ParentID != nil && *n.ParentID != n.ID {
			if _, ok := t.nodes[*n.ParentID]; ok {
				key = *n.ParentID
			}
		}
		t.children[key] = append(t.children[key], n)
	}
	for _, list := range t.children {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].SortOrder != list[j].SortOrder {
				return list[i].SortOrder < list[j].SortOrder
			}
			return list[i].OptionNumber < list[j].OptionNumber
		})
	}
	return t
}

// Node returns the node or nil when it is missing or inactive.
func (t *FlowTree) Node(id int64) *FlowNode {
	return t.nodes[id]
}

// Children lists the options under parent; nil parent is the root level.
func (t *FlowTree) Children(parent *int64) []*FlowNode {
	if parent == nil {
		return t.children[rootKey]
	}
	if _, ok := t.nodes[*parent]; !ok {
		return t.children[rootKey]
	}
	return t.children[*parent]
}

// Parent returns the id of the level above node, or nil for the root level.
// Dangling references resolve to root.
func (t *FlowTree) Parent(id int64) *int64 {
	n := t.nodes[id]
	if n == nil || n.ParentID == nil {
		return nil
	}
	if _, ok := t.nodes[*n.ParentID]; !ok {
		return nil
	}
	p := *n.ParentID
	return &p
}
