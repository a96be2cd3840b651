package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"revenda_bot/internal/entities"
	"revenda_bot/internal/interfaces"
)

// SettingAdminCooldown selects the admin cooldown mode (always, 6h, 12h, 24h).
const SettingAdminCooldown = "admin_cooldown_mode"

// Reply sources.
const (
	SourceKeyword  = "keyword"
	SourceReset    = "reset"
	SourceOption   = "option"
	SourceNone     = "none"
	SourceFlow     = "flow"
	SourceRule     = "rule"
	SourceFallback = "fallback"
)

var adminResetWords = map[string]bool{"*": true, "voltar": true, "menu": true, "0": true}

// AdminTree is the global admin menu indexed by node key.
type AdminTree struct {
	nodes map[string]*entities.AdminNode
}

func NewAdminTree(nodes []entities.AdminNode) *AdminTree {
	t := &AdminTree{nodes: make(map[string]*entities.AdminNode, len(nodes))}
	for i := range nodes {
		n := nodes[i]
		if n.NodeKey == "" {
			continue
		}
		t.nodes[n.NodeKey] = &n
	}
	return t
}

func (t *AdminTree) Node(key string) *entities.AdminNode {
	return t.nodes[key]
}

// AdminReply is what the admin menu decided for one input. An empty Message
// means send nothing.
type AdminReply struct {
	Message     string
	NextNodeKey string
	Source      string
}

// RenderAdminNode formats a node and its options for WhatsApp.
func RenderAdminNode(n *entities.AdminNode) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	if n.Title != "" && n.ResponseType == entities.AdminNodeMenu {
		b.WriteString("*" + n.Title + "*")
	}
	if n.Content != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(n.Content)
	}
	if len(n.Options) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		for i, o := range n.Options {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fmt.Sprintf("%s - %s", o.Key, o.Label))
		}
	}
	return b.String()
}

// MatchKeyword returns the first active keyword equal to input, ignoring case
// and surrounding space.
func MatchKeyword(keywords []entities.Keyword, input string) *entities.Keyword {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	for i := range keywords {
		k := &keywords[i]
		if k.IsActive && k.Phrase != "" && strings.EqualFold(strings.TrimSpace(k.Phrase), input) {
			return k
		}
	}
	return nil
}

// ReplyAdmin runs one step of the admin menu. Keywords win over the tree and
// never move the pointer. Input matching no option yields an empty reply.
func ReplyAdmin(tree *AdminTree, currentKey, input string, keywords []entities.Keyword) AdminReply {
	trimmed := strings.TrimSpace(input)
	if k := MatchKeyword(keywords, trimmed); k != nil {
		return AdminReply{Message: k.Response, NextNodeKey: currentKey, Source: SourceKeyword}
	}

	norm := NormalizeMenuInput(trimmed)
	if adminResetWords[norm] {
		return AdminReply{Message: RenderAdminNode(tree.Node(entities.AdminRootNode)), NextNodeKey: entities.AdminRootNode, Source: SourceReset}
	}

	current := tree.Node(currentKey)
	if current == nil {
		currentKey = entities.AdminRootNode
		current = tree.Node(currentKey)
	}
	if current == nil {
		return AdminReply{NextNodeKey: currentKey, Source: SourceNone}
	}

	for _, o := range current.Options {
		if NormalizeMenuInput(o.Key) != norm {
			continue
		}
		target := tree.Node(o.Target)
		if target == nil {
			return AdminReply{NextNodeKey: currentKey, Source: SourceNone}
		}
		next := target.NodeKey
		// leaves answer without moving the pointer so the same menu stays selectable
		if len(target.Options) == 0 && target.ResponseType != entities.AdminNodeMenu {
			next = currentKey
		}
		return AdminReply{Message: RenderAdminNode(target), NextNodeKey: next, Source: SourceOption}
	}
	return AdminReply{NextNodeKey: currentKey, Source: SourceNone}
}

// AdminResult carries a computed admin reply plus the cooldown verdict.
type AdminResult struct {
	Contact  *entities.AdminContact
	Reply    AdminReply
	Decision Decision
	Mode     entities.AdminCooldownMode
	// SettingErr is set when the cooldown setting could not be read and the
	// default mode was used.
	SettingErr error
}

// AdminMenu drives the admin tenant's conversations.
type AdminMenu struct {
	store    interfaces.AdminStore
	settings interfaces.SettingsStore
	now      Clock
}

func NewAdminMenu(store interfaces.AdminStore, settings interfaces.SettingsStore, clock Clock) *AdminMenu {
	if clock == nil {
		clock = time.Now
	}
	return &AdminMenu{store: store, settings: settings, now: clock}
}

// Evaluate computes the reply for an inbound admin message. State is not
// written; call Commit once the outcome is known.
func (m *AdminMenu) Evaluate(ctx context.Context, phone, name, text string) (AdminResult, error) {
	contact, err := m.store.GetOrCreateContact(ctx, phone, name)
	if err != nil {
		return AdminResult{}, fmt.Errorf("admin contact: %w", err)
	}
	nodes, err := m.store.Nodes(ctx)
	if err != nil {
		return AdminResult{}, fmt.Errorf("admin nodes: %w", err)
	}
	keywords, err := m.store.Keywords(ctx)
	if err != nil {
		return AdminResult{}, fmt.Errorf("admin keywords: %w", err)
	}

	mode := entities.AdminCooldownAlways
	v, settingErr := m.settings.GetSetting(ctx, SettingAdminCooldown)
	if settingErr != nil {
		settingErr = fmt.Errorf("admin cooldown setting: %w", settingErr)
	} else if v != "" {
		mode = entities.AdminCooldownMode(strings.ToLower(strings.TrimSpace(v)))
	}

	reply := ReplyAdmin(NewAdminTree(nodes), contact.CurrentNodeKey, text, keywords)
	return AdminResult{
		Contact:    contact,
		Reply:      reply,
		Decision:   CanRespondAdmin(contact.LastResponseAt, mode, m.now()),
		Mode:       mode,
		SettingErr: settingErr,
	}, nil
}

// Commit persists the pointer move. respondedAt is nil when nothing was sent.
func (m *AdminMenu) Commit(ctx context.Context, res AdminResult, respondedAt *time.Time) error {
	next := res.Reply.NextNodeKey
	if !res.Decision.Allow || next == "" {
		next = res.Contact.CurrentNodeKey
	}
	if err := m.store.SaveContactState(ctx, res.Contact.ID, next, respondedAt); err != nil {
		return fmt.Errorf("save admin contact state: %w", err)
	}
	return nil
}
