package usecases

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenda_bot/internal/entities"
)

type deliveryFixture struct {
	provider *fakeProvider
	tenants  *fakeTenants
	sendLog  *fakeSendLog
	contacts *fakeContacts
	alerter  *fakeAlerter
	events   *fakePublisher
	slept    atomic.Int64
	d        *Delivery
}

func newDeliveryFixture(cfg DeliveryConfig) *deliveryFixture {
	f := &deliveryFixture{
		provider: &fakeProvider{statuses: map[string]int{}, errs: map[string]error{}},
		tenants:  &fakeTenants{},
		sendLog:  &fakeSendLog{},
		contacts: newFakeContacts(),
		alerter:  &fakeAlerter{},
		events:   &fakePublisher{},
	}
	f.d = NewDelivery(f.provider, f.tenants, f.sendLog, f.contacts, f.alerter, f.events, cfg, zerolog.Nop())
	f.d.now = fixedClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	f.d.sleep = func(_ context.Context, d time.Duration) error {
		f.slept.Add(int64(d))
		return nil
	}
	f.d.rand = func(n int64) int64 { return n / 2 }
	return f
}

var deliveryTenant = &entities.Tenant{ID: "t1", Name: "Loja", InstanceName: "loja_centro"}

func buttonsReply() entities.ButtonsResponse {
	return entities.ButtonsResponse{Text: "Escolha um plano", Buttons: []entities.Button{
		{ID: "mensal", Label: "Mensal"},
		{ID: "anual", Label: "Anual"},
	}}
}

func TestDeliverText(t *testing.T) {
	f := newDeliveryFixture(DeliveryConfig{})
	c, _, _ := f.contacts.GetOrCreate(context.Background(), "t1", "5511999998888", "Ana")

	res, err := f.d.Deliver(context.Background(), DeliveryRequest{TraceID: "tr", Tenant: deliveryTenant, Phone: "+55 11 99999-8888", ContactID: c.ID, Response: entities.TextResponse{Text: "oi"}})
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, EndpointText, res.Endpoint)

	call := f.provider.lastCall()
	assert.Equal(t, "loja_centro", call.Instance)
	assert.Equal(t, textPayload{Number: "5511999998888", Text: "oi"}, call.Payload)

	got := f.contacts.get("t1", "5511999998888")
	assert.Equal(t, entities.ContactKnown, got.Status)
	assert.Equal(t, 1, got.InteractionCount)
	assert.Nil(t, got.LastButtonsSentAt)
	assert.Equal(t, []string{EventMessageSent}, f.events.keys())
}

func TestDeliverButtonsFallsBackToPlainText(t *testing.T) {
	f := newDeliveryFixture(DeliveryConfig{})
	f.provider.statuses[EndpointButtons] = 500
	f.provider.statuses[EndpointInteractive] = 500
	c, _, _ := f.contacts.GetOrCreate(context.Background(), "t1", "5511999998888", "")

	res, err := f.d.Deliver(context.Background(), DeliveryRequest{Tenant: deliveryTenant, Phone: "5511999998888", ContactID: c.ID, Response: buttonsReply()})
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []string{EndpointButtons, EndpointInteractive, EndpointText}, f.provider.endpoints())

	payload, ok := f.provider.lastCall().Payload.(textPayload)
	require.True(t, ok)
	assert.Contains(t, payload.Text, "1️⃣ Mensal")
	assert.Contains(t, payload.Text, "2️⃣ Anual")

	logs := f.sendLog.all()
	require.Len(t, logs, 3)
	assert.False(t, logs[0].Success)
	assert.Equal(t, 500, logs[0].StatusCode)
	assert.False(t, logs[1].Success)
	assert.True(t, logs[2].Success)

	got := f.contacts.get("t1", "5511999998888")
	assert.Nil(t, got.LastButtonsSentAt, "plain text tier does not count as interactive")
}

func TestDeliverListInteractiveTier(t *testing.T) {
	f := newDeliveryFixture(DeliveryConfig{})
	f.provider.errs[EndpointList] = context.DeadlineExceeded
	c, _, _ := f.contacts.GetOrCreate(context.Background(), "t1", "5511999998888", "")

	list := entities.ListResponse{Text: "Catálogo", ButtonText: "Ver", Sections: []entities.ListSection{
		{Title: "Kits", Rows: []entities.ListRow{{ID: "k1", Title: "Kit 1"}, {Title: "Kit 2"}}},
	}}
	res, err := f.d.Deliver(context.Background(), DeliveryRequest{Tenant: deliveryTenant, Phone: "5511999998888", ContactID: c.ID, Response: list})
	require.NoError(t, err)
	assert.Equal(t, EndpointInteractive, res.Endpoint)
	assert.Equal(t, entities.InteractiveList, res.Interactive)

	p := f.provider.lastCall().Payload.(interactivePayload)
	require.Len(t, p.Action.Sections, 1)
	assert.Equal(t, "row_2", p.Action.Sections[0].Rows[1].ID)

	got := f.contacts.get("t1", "5511999998888")
	require.NotNil(t, got.LastListSentAt)
}

func TestDeliverExhausted(t *testing.T) {
	f := newDeliveryFixture(DeliveryConfig{})
	for _, e := range []string{EndpointButtons, EndpointInteractive, EndpointText} {
		f.provider.statuses[e] = 502
	}
	c, _, _ := f.contacts.GetOrCreate(context.Background(), "t1", "5511999998888", "")

	res, err := f.d.Deliver(context.Background(), DeliveryRequest{Tenant: deliveryTenant, Phone: "5511999998888", ContactID: c.ID, Response: buttonsReply()})
	require.ErrorIs(t, err, ErrDeliveryExhausted)
	assert.False(t, res.Sent)
	assert.Equal(t, entities.ContactNew, f.contacts.get("t1", "5511999998888").Status)
	assert.Equal(t, []string{EventMessageFailed}, f.events.keys())
}

func TestDeliverInternationalNumberUnchanged(t *testing.T) {
	f := newDeliveryFixture(DeliveryConfig{})

	_, err := f.d.Deliver(context.Background(), DeliveryRequest{Tenant: deliveryTenant, Phone: "14155552671", Response: entities.TextResponse{Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, textPayload{Number: "14155552671", Text: "hi"}, f.provider.lastCall().Payload)
}

func TestDeliverSingleTierTimeoutFails(t *testing.T) {
	f := newDeliveryFixture(DeliveryConfig{})
	f.provider.errs[EndpointMedia] = context.DeadlineExceeded

	_, err := f.d.Deliver(context.Background(), DeliveryRequest{Tenant: deliveryTenant, Phone: "5511999998888", Response: entities.ImageResponse{Caption: "c", ImageURL: "u"}})
	require.ErrorIs(t, err, ErrDeliveryExhausted)
	assert.Equal(t, []string{EndpointMedia}, f.provider.endpoints())
}

func TestDeliverDisconnectedFastFails(t *testing.T) {
	f := newDeliveryFixture(DeliveryConfig{})
	f.provider.state = "close"

	_, err := f.d.Deliver(context.Background(), DeliveryRequest{Tenant: deliveryTenant, Phone: "5511999998888", Response: entities.TextResponse{Text: "oi"}})
	require.ErrorIs(t, err, ErrInstanceDisconnected)
	assert.Empty(t, f.provider.endpoints())
	assert.Equal(t, entities.ConnectionDisconnected, f.tenants.states["t1"])
	logs := f.sendLog.all()
	require.Len(t, logs, 1)
	assert.Equal(t, EndpointConnectionCheck, logs[0].MessageType)
	assert.False(t, logs[0].Success)
	assert.Len(t, f.alerter.alerts, 1)
	assert.Equal(t, []string{EventTenantDisconnected}, f.events.keys())
}

func TestDeliverSendLogFailureDoesNotBlock(t *testing.T) {
	f := newDeliveryFixture(DeliveryConfig{})
	f.sendLog.err = errors.New("db down")

	res, err := f.d.Deliver(context.Background(), DeliveryRequest{Tenant: deliveryTenant, Phone: "5511999998888", Response: entities.TextResponse{Text: "oi"}})
	require.NoError(t, err)
	assert.True(t, res.Sent)
}

func TestDeliverTruncatesProviderBody(t *testing.T) {
	entry := strings.Repeat("x", 5000)
	assert.Len(t, Truncate(entry, MaxProviderBody), MaxProviderBody)
	assert.Equal(t, "abc", Truncate("abc", MaxProviderBody))
}

func TestDeliverPacing(t *testing.T) {
	cfg := DeliveryConfig{TypingMin: time.Second, TypingMax: 3 * time.Second}

	f := newDeliveryFixture(cfg)
	_, err := f.d.Deliver(context.Background(), DeliveryRequest{Tenant: deliveryTenant, Phone: "5511999998888", Response: entities.TextResponse{Text: "oi"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2*time.Second), f.slept.Load())
	assert.Zero(t, f.provider.presences)

	cfg.TypingEnabled = true
	f = newDeliveryFixture(cfg)
	_, err = f.d.Deliver(context.Background(), DeliveryRequest{Tenant: deliveryTenant, Phone: "5511999998888", Response: entities.TextResponse{Text: "oi"}})
	require.NoError(t, err)
	assert.Equal(t, 1, f.provider.presences)
	assert.Zero(t, f.slept.Load())
}

func TestRenderPlainTextList(t *testing.T) {
	list := entities.ListResponse{Text: "Catálogo", Footer: "rodapé", Sections: []entities.ListSection{
		{Title: "A", Rows: []entities.ListRow{{Title: "um", Description: "d1"}}},
		{Title: "B", Rows: []entities.ListRow{{Title: "dois"}}},
	}}
	out := RenderPlainText(list)
	assert.Contains(t, out, "*A*")
	assert.Contains(t, out, "1️⃣ um - d1")
	assert.Contains(t, out, "*B*")
	assert.Contains(t, out, "2️⃣ dois")
	assert.Contains(t, out, "_rodapé_")
	assert.Equal(t, "11.", EmojiNumber(11))
	assert.Equal(t, "🔟", EmojiNumber(10))
}
