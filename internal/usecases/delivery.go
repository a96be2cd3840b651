package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"revenda_bot/internal/entities"
	"revenda_bot/internal/interfaces"
)

var (
	ErrInstanceDisconnected = errors.New("instance not connected")
	ErrDeliveryExhausted    = errors.New("all delivery attempts failed")
)

// MaxProviderBody caps the provider response stored in the send log.
const MaxProviderBody = 1000

// Event keys published by the delivery pipeline.
const (
	EventMessageSent        = "message.sent"
	EventMessageFailed      = "message.failed"
	EventTenantDisconnected = "tenant.disconnected"
)

type DeliveryConfig struct {
	TypingEnabled bool
	TypingMin     time.Duration
	TypingMax     time.Duration
}

// DeliveryRequest is one outbound message. ContactID 0 skips the contact
// bookkeeping (admin contacts are tracked by the admin menu).
type DeliveryRequest struct {
	TraceID   string
	Tenant    *entities.Tenant
	Phone     string
	ContactID int64
	Response  entities.Response
}

type DeliveryResult struct {
	Sent        bool
	Endpoint    string
	Attempts    int
	Interactive entities.InteractiveKind
	SentAt      time.Time
}

// stage is one tier of the send strategy.
type stage struct {
	endpoint    string
	payload     any
	interactive entities.InteractiveKind
}

// Delivery sends responses through the provider with graduated fallback.
type Delivery struct {
	provider interfaces.Provider
	tenants  interfaces.TenantStore
	sendLog  interfaces.SendLogStore
	contacts interfaces.ContactStore
	alerter  interfaces.Alerter
	events   interfaces.EventPublisher
	cfg      DeliveryConfig
	log      zerolog.Logger

	now   Clock
	sleep func(ctx context.Context, d time.Duration) error
	rand  func(n int64) int64
}

func NewDelivery(
	provider interfaces.Provider,
	tenants interfaces.TenantStore,
	sendLog interfaces.SendLogStore,
	contacts interfaces.ContactStore,
	alerter interfaces.Alerter,
	events interfaces.EventPublisher,
	cfg DeliveryConfig,
	log zerolog.Logger,
) *Delivery {
	return &Delivery{
		provider: provider,
		tenants:  tenants,
		sendLog:  sendLog,
		contacts: contacts,
		alerter:  alerter,
		events:   events,
		cfg:      cfg,
		log:      log.With().Str("component", "delivery").Logger(),
		now:      time.Now,
		sleep:    sleepCtx,
		rand:     rand.Int63n,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// planStages lists the tiers for a response, last tier always plain text
// for interactive content.
func planStages(number string, r entities.Response) []stage {
	switch v := r.(type) {
	case entities.TextResponse:
		return []stage{{endpoint: EndpointText, payload: textPayload{Number: number, Text: v.Text}}}
	case entities.ImageResponse:
		return []stage{{endpoint: EndpointMedia, payload: mediaPayload{Number: number, MediaType: "image", Media: v.ImageURL, Caption: v.Caption}}}
	case entities.ButtonsResponse:
		native, inter := buttonsPayloads(number, v)
		return []stage{
			{endpoint: EndpointButtons, payload: native, interactive: entities.InteractiveButtons},
			{endpoint: EndpointInteractive, payload: inter, interactive: entities.InteractiveButtons},
			{endpoint: EndpointText, payload: textPayload{Number: number, Text: RenderPlainText(v)}},
		}
	case entities.ListResponse:
		native, inter := listPayloads(number, v)
		return []stage{
			{endpoint: EndpointList, payload: native, interactive: entities.InteractiveList},
			{endpoint: EndpointInteractive, payload: inter, interactive: entities.InteractiveList},
			{endpoint: EndpointText, payload: textPayload{Number: number, Text: RenderPlainText(v)}},
		}
	default:
		panic(fmt.Sprintf("usecases: unknown response %T", r))
	}
}

// Deliver runs the connection gate, pacing and send stages for one message.
func (d *Delivery) Deliver(ctx context.Context, req DeliveryRequest) (DeliveryResult, error) {
	var res DeliveryResult
	number, err := NormalizeJIDUser(req.Phone)
	if err != nil {
		return res, fmt.Errorf("normalize phone: %w", err)
	}
	instance := req.Tenant.InstanceName
	log := d.log.With().Str("trace", req.TraceID).Str("tenant", req.Tenant.ID).Str("instance", instance).Str("phone", number).Logger()

	if err := d.checkConnection(ctx, req, number, log); err != nil {
		return res, err
	}
	d.pace(ctx, instance, number, log)

	var lastErr error
	for _, st := range planStages(number, req.Response) {
		resp, err := d.provider.Send(ctx, st.endpoint, instance, st.payload)
		res.Attempts++
		d.record(ctx, req, number, st.endpoint, resp, err, log)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("endpoint", st.endpoint).Int("status", resp.StatusCode).Msg("send attempt failed")
			continue
		}
		res.Sent = true
		res.Endpoint = st.endpoint
		res.Interactive = st.interactive
		res.SentAt = d.now()
		break
	}

	if !res.Sent {
		d.publish(ctx, EventMessageFailed, req, res, log)
		return res, fmt.Errorf("%w: %v", ErrDeliveryExhausted, lastErr)
	}

	log.Info().Str("endpoint", res.Endpoint).Int("attempts", res.Attempts).Msg("message delivered")
	if req.ContactID != 0 {
		mark := entities.ResponseMark{At: res.SentAt, Interactive: res.Interactive}
		if err := d.contacts.RecordResponse(ctx, req.ContactID, mark); err != nil {
			log.Error().Err(err).Int64("contact", req.ContactID).Msg("record response failed")
		}
	}
	d.publish(ctx, EventMessageSent, req, res, log)
	return res, nil
}

func (d *Delivery) checkConnection(ctx context.Context, req DeliveryRequest, number string, log zerolog.Logger) error {
	state, resp, err := d.provider.ConnectionState(ctx, req.Tenant.InstanceName)
	if err == nil && state == entities.ConnectionOpen {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("connection state %q", state)
	}
	log.Warn().Err(err).Msg("instance not connected, aborting send")

	if uerr := d.tenants.UpdateConnectionState(ctx, req.Tenant.ID, entities.ConnectionDisconnected); uerr != nil {
		log.Error().Err(uerr).Msg("mark tenant disconnected failed")
	}
	d.record(ctx, req, number, EndpointConnectionCheck, resp, err, log)
	if d.alerter != nil {
		msg := fmt.Sprintf("⚠️ Instância %s (%s) desconectada: %v", req.Tenant.InstanceName, req.Tenant.Name, err)
		if aerr := d.alerter.Alert(ctx, msg); aerr != nil {
			log.Warn().Err(aerr).Msg("alert failed")
		}
	}
	if d.events != nil {
		if perr := d.events.Publish(ctx, EventTenantDisconnected, map[string]any{
			"tenant_id": req.Tenant.ID,
			"instance":  req.Tenant.InstanceName,
			"state":     state,
		}); perr != nil {
			log.Warn().Err(perr).Msg("publish event failed")
		}
	}
	return fmt.Errorf("%w: %v", ErrInstanceDisconnected, err)
}

// pace waits a random delay, showing "typing" when enabled.
func (d *Delivery) pace(ctx context.Context, instance, number string, log zerolog.Logger) {
	delay := d.cfg.TypingMin
	if span := d.cfg.TypingMax - d.cfg.TypingMin; span > 0 {
		delay += time.Duration(d.rand(int64(span)))
	}
	if delay <= 0 {
		return
	}
	if d.cfg.TypingEnabled {
		err := d.provider.SendPresence(ctx, instance, number, delay)
		if err == nil {
			return
		}
		log.Debug().Err(err).Msg("presence failed, sleeping instead")
	}
	_ = d.sleep(ctx, delay)
}

func (d *Delivery) record(ctx context.Context, req DeliveryRequest, number, endpoint string, resp interfaces.ProviderResponse, sendErr error, log zerolog.Logger) {
	entry := entities.SendLogEntry{
		TraceID:      req.TraceID,
		TenantID:     req.Tenant.ID,
		Phone:        number,
		Instance:     req.Tenant.InstanceName,
		MessageType:  endpoint,
		Success:      sendErr == nil,
		StatusCode:   resp.StatusCode,
		ProviderBody: Truncate(resp.Body, MaxProviderBody),
		CreatedAt:    d.now(),
	}
	if sendErr != nil {
		entry.ErrorMessage = Truncate(sendErr.Error(), MaxProviderBody)
	}
	if err := d.sendLog.Insert(ctx, entry); err != nil {
		log.Error().Err(err).Str("endpoint", endpoint).Msg("send log insert failed")
	}
}

func (d *Delivery) publish(ctx context.Context, key string, req DeliveryRequest, res DeliveryResult, log zerolog.Logger) {
	if d.events == nil {
		return
	}
	err := d.events.Publish(ctx, key, map[string]any{
		"trace_id":    req.TraceID,
		"tenant_id":   req.Tenant.ID,
		"phone":       req.Phone,
		"type":        string(req.Response.Type()),
		"endpoint":    res.Endpoint,
		"attempts":    res.Attempts,
		"interactive": string(res.Interactive),
	})
	if err != nil {
		log.Warn().Err(err).Str("event", key).Msg("publish event failed")
	}
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
