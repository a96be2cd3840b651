package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"revenda_bot/internal/entities"
	"revenda_bot/internal/interfaces"
)

// Words that start or restart the main flow.
var flowTriggers = map[string]bool{"menu": true, "inicio": true, "início": true, "ajuda": true, "#": true}

const (
	defaultHandoffText = "Aguarde um momento, um atendente vai falar com você."
	defaultClosingText = "Atendimento encerrado. Digite *menu* para começar de novo."
)

// Flow actions reported in FlowOutcome.Action.
const (
	FlowActionStart    = "start"
	FlowActionBack     = "back"
	FlowActionDescend  = "descend"
	FlowActionContent  = "content"
	FlowActionTemplate = "template"
	FlowActionHandoff  = "handoff"
	FlowActionEnd      = "end"
)

// FlowOutcome reports what the flow layer did with an inbound message.
// Handled=false means the rule matcher should run.
type FlowOutcome struct {
	Handled    bool
	Suppressed bool
	Response   entities.Response
	Action     string
	Session    *entities.FlowSession
}

// FlowEngine walks per-contact sessions over seller flow trees.
type FlowEngine struct {
	flows     interfaces.FlowStore
	templates interfaces.TemplateStore
	now       Clock
}

func NewFlowEngine(flows interfaces.FlowStore, templates interfaces.TemplateStore, clock Clock) *FlowEngine {
	if clock == nil {
		clock = time.Now
	}
	return &FlowEngine{flows: flows, templates: templates, now: clock}
}

// IsFlowTrigger reports whether text starts the main flow.
func IsFlowTrigger(text string) bool {
	return flowTriggers[strings.ToLower(strings.TrimSpace(text))]
}

// AwaitingHuman reports whether the contact's session is parked for a human.
func (e *FlowEngine) AwaitingHuman(ctx context.Context, tenantID, phone string) (bool, error) {
	session, err := e.flows.ActiveSession(ctx, tenantID, phone)
	if err != nil {
		return false, fmt.Errorf("load flow session: %w", err)
	}
	return session != nil && session.AwaitingHuman, nil
}

// Handle applies one inbound message to the contact's flow session.
func (e *FlowEngine) Handle(ctx context.Context, tenant *entities.Tenant, phone, text string) (FlowOutcome, error) {
	session, err := e.flows.ActiveSession(ctx, tenant.ID, phone)
	if err != nil {
		return FlowOutcome{}, fmt.Errorf("load flow session: %w", err)
	}
	if session != nil && session.AwaitingHuman {
		return FlowOutcome{Handled: true, Suppressed: true, Session: session}, nil
	}

	input := strings.TrimSpace(text)
	if IsFlowTrigger(input) {
		return e.start(ctx, tenant, phone, session)
	}
	if session == nil {
		return FlowOutcome{}, nil
	}

	flow, err := e.flows.FlowByID(ctx, tenant.ID, session.FlowID)
	if err != nil {
		return FlowOutcome{}, fmt.Errorf("load flow %d: %w", session.FlowID, err)
	}
	if flow == nil || !flow.IsActive {
		return FlowOutcome{}, nil
	}
	tree, err := e.tree(ctx, *flow)
	if err != nil {
		return FlowOutcome{}, err
	}

	current := session.CurrentNodeID
	if current != nil && tree.Node(*current) == nil {
		current = nil
	}

	if input == "0" || strings.EqualFold(input, "voltar") {
		var parent *int64
		if current != nil {
			parent = tree.Parent(*current)
		}
		session.CurrentNodeID = parent
		if err := e.save(ctx, session); err != nil {
			return FlowOutcome{}, err
		}
		return e.outcome(FlowActionBack, session, entities.TextResponse{Text: levelMenu(tree, parent)}), nil
	}

	var picked *entities.FlowNode
	for _, n := range tree.Children(current) {
		if n.OptionNumber == input {
			picked = n
			break
		}
	}
	if picked == nil {
		return FlowOutcome{}, nil
	}

	switch picked.ResponseType {
	case entities.NodeSubmenu:
		id := picked.ID
		if len(tree.Children(&id)) == 0 {
			return e.outcome(FlowActionContent, session, entities.TextResponse{Text: picked.Content}), nil
		}
		session.CurrentNodeID = &id
		if err := e.save(ctx, session); err != nil {
			return FlowOutcome{}, err
		}
		return e.outcome(FlowActionDescend, session, entities.TextResponse{Text: levelMenu(tree, &id)}), nil

	case entities.NodeTemplate:
		resp, err := e.template(ctx, tenant.ID, picked)
		if err != nil {
			return FlowOutcome{}, err
		}
		return e.outcome(FlowActionTemplate, session, resp), nil

	case entities.NodeHumanTransfer:
		session.AwaitingHuman = true
		if err := e.save(ctx, session); err != nil {
			return FlowOutcome{}, err
		}
		return e.outcome(FlowActionHandoff, session, entities.TextResponse{Text: orDefault(picked.Content, defaultHandoffText)}), nil

	case entities.NodeEndChat:
		session.IsActive = false
		if err := e.save(ctx, session); err != nil {
			return FlowOutcome{}, err
		}
		return e.outcome(FlowActionEnd, session, entities.TextResponse{Text: orDefault(picked.Content, defaultClosingText)}), nil

	default:
		return e.outcome(FlowActionContent, session, nodeContent(picked)), nil
	}
}

func (e *FlowEngine) start(ctx context.Context, tenant *entities.Tenant, phone string, session *entities.FlowSession) (FlowOutcome, error) {
	flow, err := e.flows.MainFlow(ctx, tenant.ID)
	if err != nil {
		return FlowOutcome{}, fmt.Errorf("load main flow: %w", err)
	}
	if flow == nil {
		return FlowOutcome{}, nil
	}
	tree, err := e.tree(ctx, *flow)
	if err != nil {
		return FlowOutcome{}, err
	}
	if session == nil {
		session = &entities.FlowSession{TenantID: tenant.ID, ContactPhone: phone}
	}
	session.FlowID = flow.ID
	session.CurrentNodeID = nil
	session.IsActive = true
	session.AwaitingHuman = false
	if err := e.save(ctx, session); err != nil {
		return FlowOutcome{}, err
	}
	return e.outcome(FlowActionStart, session, entities.TextResponse{Text: levelMenu(tree, nil)}), nil
}

func (e *FlowEngine) tree(ctx context.Context, flow entities.Flow) (*entities.FlowTree, error) {
	nodes, err := e.flows.Nodes(ctx, flow.ID)
	if err != nil {
		return nil, fmt.Errorf("load flow nodes: %w", err)
	}
	return entities.NewFlowTree(flow, nodes), nil
}

func (e *FlowEngine) save(ctx context.Context, s *entities.FlowSession) error {
	s.UpdatedAt = e.now()
	if err := e.flows.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("save flow session: %w", err)
	}
	return nil
}

func (e *FlowEngine) template(ctx context.Context, tenantID string, n *entities.FlowNode) (entities.Response, error) {
	if n.TemplateID == nil {
		return nodeContent(n), nil
	}
	t, err := e.templates.GetTemplate(ctx, tenantID, *n.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template %d: %w", *n.TemplateID, err)
	}
	if t == nil || strings.TrimSpace(t.Content) == "" {
		return nodeContent(n), nil
	}
	if t.ImageURL != "" {
		return entities.ImageResponse{Caption: t.Content, ImageURL: t.ImageURL}, nil
	}
	return entities.TextResponse{Text: t.Content}, nil
}

func (e *FlowEngine) outcome(action string, s *entities.FlowSession, r entities.Response) FlowOutcome {
	return FlowOutcome{Handled: true, Response: r, Action: action, Session: s}
}

// levelMenu renders the options under parent. Root uses the flow greeting.
func levelMenu(tree *entities.FlowTree, parent *int64) string {
	if parent == nil {
		title := tree.Flow.Greeting
		if title == "" {
			title = tree.Flow.Name
		}
		return RenderFlowMenu(title, tree.Children(nil), true)
	}
	n := tree.Node(*parent)
	menu := RenderFlowMenu(n.Label, tree.Children(parent), false)
	if n.Content != "" {
		return n.Content + "\n\n" + menu
	}
	return menu
}

func nodeContent(n *entities.FlowNode) entities.Response {
	if n.ResponseType == entities.NodeTextImage && n.ImageURL != "" {
		return entities.ImageResponse{Caption: n.Content, ImageURL: n.ImageURL}
	}
	return entities.TextResponse{Text: n.Content}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
