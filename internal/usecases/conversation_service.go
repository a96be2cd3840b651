package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"revenda_bot/internal/entities"
	"revenda_bot/internal/interfaces"
)

// EventTenantBlocked is published when a lapsed plan blocks a tenant.
const EventTenantBlocked = "tenant.blocked"

// ReasonRateLimited marks messages the per-tenant send limiter could not
// fit in before the processing deadline.
const ReasonRateLimited = "tenant send rate exceeded"

// Outcome is the final status of one inbound message.
type Outcome struct {
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Instance string `json:"instance,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	Source   string `json:"source,omitempty"`
	RuleID   *int64 `json:"rule_id,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

type ConversationDeps struct {
	Resolver     *IdentityResolver
	Admin        *AdminMenu
	Flows        *FlowEngine
	Delivery     *Delivery
	Tenants      interfaces.TenantStore
	Contacts     interfaces.ContactStore
	Rules        interfaces.RuleStore
	Keywords     interfaces.KeywordStore
	Interactions interfaces.InteractionLogStore
	Deduper      interfaces.Deduper
	Limiter      interfaces.SendLimiter
	Usage        interfaces.UsageStore
	Alerter      interfaces.Alerter
	Events       interfaces.EventPublisher
	Logger       zerolog.Logger
	Clock        Clock
	// ProcessTimeout bounds one message end to end; zero means no bound.
	ProcessTimeout time.Duration
}

// ConversationService routes inbound messages to the admin menu or the
// seller pipeline and records what happened.
type ConversationService struct {
	ConversationDeps
	log zerolog.Logger
	now Clock
}

func NewConversationService(deps ConversationDeps) *ConversationService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &ConversationService{
		ConversationDeps: deps,
		log:              deps.Logger.With().Str("component", "conversation").Logger(),
		now:              now,
	}
}

// Handle processes one canonical inbound message.
func (s *ConversationService) Handle(ctx context.Context, msg entities.InboundMessage) Outcome {
	if s.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ProcessTimeout)
		defer cancel()
	}
	log := s.log.With().Str("trace", msg.TraceID).Str("instance", msg.Instance).Str("phone", msg.Phone).Logger()

	var dedupeKey string
	if s.Deduper != nil && msg.MessageID != "" {
		dedupeKey = msg.Instance + ":" + msg.MessageID
		if s.Deduper.Seen(dedupeKey) {
			log.Debug().Str("message_id", msg.MessageID).Msg("duplicate delivery ignored")
			return Outcome{Status: entities.OutcomeIgnored, Reason: "duplicate message", Instance: msg.Instance}
		}
	}

	out := s.dispatch(ctx, msg, log)
	if dedupeKey != "" && out.Status == entities.OutcomeFailed {
		s.Deduper.Forget(dedupeKey)
	}
	return out
}

func (s *ConversationService) dispatch(ctx context.Context, msg entities.InboundMessage, log zerolog.Logger) Outcome {
	res, err := s.Resolver.Resolve(ctx, msg.Instance)
	if err != nil {
		log.Error().Err(err).Msg("resolve tenant failed")
		return Outcome{Status: entities.OutcomeFailed, Reason: "tenant lookup failed", Instance: msg.Instance}
	}
	if !res.Found {
		log.Warn().Str("searched", res.Searched).Str("reason", res.Reason).Msg("tenant not found for instance")
		return Outcome{Status: entities.OutcomeNotFound, Reason: res.Reason, Instance: res.Searched}
	}

	tenant := res.Tenant
	var out Outcome
	if tenant.IsAdmin() {
		out = s.handleAdmin(ctx, tenant, msg, log)
	} else {
		out = s.handleSeller(ctx, tenant, msg, log)
	}
	out.Instance = msg.Instance
	out.TenantID = tenant.ID

	s.logInteraction(ctx, msg, out, log)
	s.countUsage(ctx, tenant.ID, out, log)
	log.Info().Str("tenant", tenant.ID).Str("status", out.Status).Str("reason", out.Reason).Str("source", out.Source).Msg("message processed")
	return out
}

func (s *ConversationService) handleAdmin(ctx context.Context, tenant *entities.Tenant, msg entities.InboundMessage, log zerolog.Logger) Outcome {
	res, err := s.Admin.Evaluate(ctx, msg.Phone, msg.PushName, msg.Text)
	if err != nil {
		log.Error().Err(err).Msg("admin menu failed")
		return Outcome{Status: entities.OutcomeFailed, Reason: "admin menu error"}
	}
	if res.SettingErr != nil {
		log.Warn().Err(res.SettingErr).Str("mode", string(res.Mode)).Msg("admin cooldown setting unavailable, using default")
	}

	commit := func(at *time.Time) {
		if err := s.Admin.Commit(ctx, res, at); err != nil {
			log.Error().Err(err).Msg("admin state save failed")
		}
	}

	if !res.Decision.Allow {
		commit(nil)
		return Outcome{Status: entities.OutcomeBlocked, Reason: res.Decision.Reason, Source: res.Reply.Source}
	}
	if res.Reply.Message == "" {
		commit(nil)
		return Outcome{Status: entities.OutcomeIgnored, Reason: "no matching option", Source: res.Reply.Source}
	}

	text := ApplyTemplateVars(res.Reply.Message, res.Contact.Name, msg.Phone)
	dr, err := s.Delivery.Deliver(ctx, DeliveryRequest{
		TraceID:  msg.TraceID,
		Tenant:   tenant,
		Phone:    msg.Phone,
		Response: entities.TextResponse{Text: text},
	})
	if err != nil {
		commit(nil)
		return failedDelivery(err, res.Reply.Source)
	}
	commit(&dr.SentAt)
	return Outcome{Status: entities.OutcomeResponded, Source: res.Reply.Source, Endpoint: dr.Endpoint}
}

func (s *ConversationService) handleSeller(ctx context.Context, tenant *entities.Tenant, msg entities.InboundMessage, log zerolog.Logger) Outcome {
	if tenant.Blocked {
		reason := tenant.BlockedReason
		if reason == "" {
			reason = "instance blocked"
		}
		return Outcome{Status: entities.OutcomeBlocked, Reason: reason}
	}
	if tenant.PlanLapsed() {
		return s.autoBlock(ctx, tenant, log)
	}

	contact, created, err := s.Contacts.GetOrCreate(ctx, tenant.ID, msg.Phone, msg.PushName)
	if err != nil {
		log.Error().Err(err).Msg("contact get-or-create failed")
		return Outcome{Status: entities.OutcomeFailed, Reason: "contact store error"}
	}
	if created {
		log.Debug().Int64("contact", contact.ID).Str("status", string(contact.Status)).Msg("contact created")
	}
	if err := s.Contacts.TouchInteraction(ctx, contact.ID, s.now()); err != nil {
		log.Warn().Err(err).Msg("touch interaction failed")
	}

	// runs before the flow engine writes the session
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx, tenant.ID); err != nil {
			log.Warn().Err(err).Str("tenant", tenant.ID).Msg("send limiter gave up")
			return Outcome{Status: entities.OutcomeIgnored, Reason: ReasonRateLimited}
		}
	}

	if out, ok := s.sellerKeyword(ctx, tenant, contact, msg, log); ok {
		return out
	}

	flow, err := s.Flows.Handle(ctx, tenant, msg.Phone, msg.Text)
	if err != nil {
		log.Error().Err(err).Msg("flow engine failed")
		return Outcome{Status: entities.OutcomeFailed, Reason: "flow error", Source: SourceFlow}
	}
	if flow.Suppressed {
		return Outcome{Status: entities.OutcomeSuppressed, Reason: "awaiting human", Source: SourceFlow}
	}
	if flow.Handled {
		return s.respond(ctx, tenant, contact, msg, flow.Response, CanRespond(contact.LastResponseAt, entities.CooldownFree, 0, s.now()), SourceFlow, nil)
	}

	rules, err := s.Rules.ActiveRules(ctx, tenant.ID)
	if err != nil {
		log.Error().Err(err).Msg("load rules failed")
		return Outcome{Status: entities.OutcomeFailed, Reason: "rule store error"}
	}
	rule := MatchRule(rules, msg.Text, contact.Status)
	if rule == nil {
		if !tenant.SilentMode && tenant.FallbackMessage != "" {
			decision := CanRespond(contact.LastResponseAt, entities.CooldownPolite, 0, s.now())
			return s.respond(ctx, tenant, contact, msg, entities.TextResponse{Text: tenant.FallbackMessage}, decision, SourceFallback, nil)
		}
		return Outcome{Status: entities.OutcomeIgnored, Reason: "no matching rule", Source: SourceRule}
	}

	resp, err := entities.ParseResponse(rule.ResponseType, rule.ResponseContent)
	if err != nil {
		log.Error().Err(err).Int64("rule", rule.ID).Msg("invalid rule content")
		return Outcome{Status: entities.OutcomeFailed, Reason: "invalid rule content", Source: SourceRule, RuleID: &rule.ID}
	}
	decision := CanRespond(contact.LastResponseAt, rule.CooldownMode, rule.CooldownHours, s.now())
	return s.respond(ctx, tenant, contact, msg, resp, decision, SourceRule, &rule.ID)
}

// sellerKeyword answers an exact keyword match without touching the flow
// session. A parked (awaiting human) session still silences keywords.
func (s *ConversationService) sellerKeyword(ctx context.Context, tenant *entities.Tenant, contact *entities.Contact, msg entities.InboundMessage, log zerolog.Logger) (Outcome, bool) {
	if s.Keywords == nil {
		return Outcome{}, false
	}
	keywords, err := s.Keywords.TenantKeywords(ctx, tenant.ID)
	if err != nil {
		log.Warn().Err(err).Msg("load keywords failed")
		return Outcome{}, false
	}
	k := MatchKeyword(keywords, msg.Text)
	if k == nil {
		return Outcome{}, false
	}
	parked, err := s.Flows.AwaitingHuman(ctx, tenant.ID, msg.Phone)
	if err != nil {
		log.Error().Err(err).Msg("flow session lookup failed")
		return Outcome{Status: entities.OutcomeFailed, Reason: "flow error", Source: SourceKeyword}, true
	}
	if parked {
		return Outcome{Status: entities.OutcomeSuppressed, Reason: "awaiting human", Source: SourceFlow}, true
	}
	decision := CanRespond(contact.LastResponseAt, entities.CooldownFree, 0, s.now())
	return s.respond(ctx, tenant, contact, msg, entities.TextResponse{Text: k.Response}, decision, SourceKeyword, nil), true
}

// respond applies the cooldown decision and the interactive gate, then delivers.
func (s *ConversationService) respond(ctx context.Context, tenant *entities.Tenant, contact *entities.Contact, msg entities.InboundMessage, resp entities.Response, decision Decision, source string, ruleID *int64) Outcome {
	if !decision.Allow {
		return Outcome{Status: entities.OutcomeBlocked, Reason: decision.Reason, Source: source, RuleID: ruleID}
	}
	if resp == nil || ResponseEmpty(resp) {
		return Outcome{Status: entities.OutcomeIgnored, Reason: "empty response", Source: source, RuleID: ruleID}
	}
	switch resp.(type) {
	case entities.ButtonsResponse:
		if !CanSendInteractive(contact.LastButtonsSentAt, s.now()).Allow {
			resp = Downgrade(resp)
		}
	case entities.ListResponse:
		if !CanSendInteractive(contact.LastListSentAt, s.now()).Allow {
			resp = Downgrade(resp)
		}
	}
	resp = WithTemplateVars(resp, contact.Name, msg.Phone)

	dr, err := s.Delivery.Deliver(ctx, DeliveryRequest{
		TraceID:   msg.TraceID,
		Tenant:    tenant,
		Phone:     msg.Phone,
		ContactID: contact.ID,
		Response:  resp,
	})
	if err != nil {
		out := failedDelivery(err, source)
		out.RuleID = ruleID
		return out
	}
	return Outcome{Status: entities.OutcomeResponded, Source: source, RuleID: ruleID, Endpoint: dr.Endpoint}
}

func (s *ConversationService) autoBlock(ctx context.Context, tenant *entities.Tenant, log zerolog.Logger) Outcome {
	reason := "plan " + tenant.PlanStatus
	if err := s.Tenants.Block(ctx, tenant.ID, reason); err != nil {
		log.Error().Err(err).Msg("auto-block failed")
	} else {
		log.Warn().Str("tenant", tenant.ID).Str("plan", tenant.PlanStatus).Msg("tenant auto-blocked")
	}
	if s.Alerter != nil {
		if err := s.Alerter.Alert(ctx, fmt.Sprintf("🔒 Revendedor %s (%s) bloqueado: %s", tenant.Name, tenant.InstanceName, reason)); err != nil {
			log.Warn().Err(err).Msg("alert failed")
		}
	}
	if s.Events != nil {
		if err := s.Events.Publish(ctx, EventTenantBlocked, map[string]any{"tenant_id": tenant.ID, "reason": reason}); err != nil {
			log.Warn().Err(err).Msg("publish event failed")
		}
	}
	return Outcome{Status: entities.OutcomeBlocked, Reason: reason}
}

func (s *ConversationService) logInteraction(ctx context.Context, msg entities.InboundMessage, out Outcome, log zerolog.Logger) {
	if s.Interactions == nil {
		return
	}
	err := s.Interactions.Insert(ctx, entities.InteractionLog{
		TraceID:   msg.TraceID,
		TenantID:  out.TenantID,
		Phone:     msg.Phone,
		Inbound:   Truncate(msg.Text, MaxProviderBody),
		Outcome:   out.Status,
		Reason:    out.Reason,
		Source:    out.Source,
		RuleID:    out.RuleID,
		CreatedAt: s.now(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("interaction log insert failed")
	}
}

func (s *ConversationService) countUsage(ctx context.Context, tenantID string, out Outcome, log zerolog.Logger) {
	if s.Usage == nil {
		return
	}
	now := s.now()
	if err := s.Usage.IncrementReceived(ctx, tenantID, now); err != nil {
		log.Warn().Err(err).Msg("usage counter failed")
	}
	if out.Status != entities.OutcomeResponded {
		return
	}
	if err := s.Usage.IncrementSent(ctx, tenantID, now); err != nil {
		log.Warn().Err(err).Msg("usage counter failed")
	}
}

func failedDelivery(err error, source string) Outcome {
	reason := "delivery failed"
	if errors.Is(err, ErrInstanceDisconnected) {
		reason = "instance disconnected"
	}
	return Outcome{Status: entities.OutcomeFailed, Reason: reason, Source: source}
}

// ResponseEmpty reports whether a response has nothing to show.
func ResponseEmpty(r entities.Response) bool {
	switch v := r.(type) {
	case entities.ImageResponse:
		return v.ImageURL == "" && v.Caption == ""
	case entities.ButtonsResponse:
		return v.Text == "" && len(v.Buttons) == 0
	case entities.ListResponse:
		return v.Text == "" && len(v.Sections) == 0
	}
	return entities.ResponseBody(r) == ""
}
