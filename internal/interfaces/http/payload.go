package http

import (
	"strings"
	"unicode"

	"go.mau.fi/whatsmeow/types"

	"revenda_bot/internal/entities"
	"revenda_bot/internal/usecases"
)

// Ignore reasons returned by ParseWebhook.
const (
	ReasonMissingRemoteJID = "missing remoteJid"
	ReasonMissingInstance  = "missing instance"
	ReasonUnsupportedEvent = "unsupported event"
	ReasonFromMe           = "message from me"
	ReasonNotPrivateChat   = "group, broadcast or status chat"
	ReasonInvalidPhone     = "invalid phone"
	ReasonEmptyText        = "empty message"
)

type strategy[T any] func(root map[string]any) (T, bool)

var eventStrategies = []strategy[string]{
	stringAt("event"),
	stringAt("type"),
	stringAt("data", "event"),
	stringAt("data", "type"),
}

var instanceStrategies = []strategy[string]{
	instanceAt("instance"),
	stringAt("instanceName"),
	instanceAt("data", "instance"),
	stringAt("data", "instanceName"),
}

var envelopeStrategies = []strategy[map[string]any]{
	objectAt("data"),
	firstOf("data", "messages"),
	objectAt("data", "message"),
	firstOf("messages"),
	objectAt("message"),
	func(root map[string]any) (map[string]any, bool) { return root, true },
}

func firstMatch[T any](root map[string]any, strategies []strategy[T]) (T, bool) {
	for _, s := range strategies {
		if v, ok := s(root); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func lookup(root map[string]any, path ...string) (any, bool) {
	var cur any = root
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func str(root map[string]any, path ...string) string {
	v, _ := lookup(root, path...)
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func stringAt(path ...string) strategy[string] {
	return func(root map[string]any) (string, bool) {
		s := str(root, path...)
		return s, s != ""
	}
}

// instanceAt accepts a plain string or an object carrying instanceName or name.
func instanceAt(path ...string) strategy[string] {
	return func(root map[string]any) (string, bool) {
		v, ok := lookup(root, path...)
		if !ok {
			return "", false
		}
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			return s, s != ""
		case map[string]any:
			if s := str(t, "instanceName"); s != "" {
				return s, true
			}
			s := str(t, "name")
			return s, s != ""
		}
		return "", false
	}
}

func objectAt(path ...string) strategy[map[string]any] {
	return func(root map[string]any) (map[string]any, bool) {
		v, _ := lookup(root, path...)
		m, ok := v.(map[string]any)
		return m, ok && hasRemoteJID(m)
	}
}

func firstOf(path ...string) strategy[map[string]any] {
	return func(root map[string]any) (map[string]any, bool) {
		v, _ := lookup(root, path...)
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			return nil, false
		}
		m, ok := arr[0].(map[string]any)
		return m, ok && hasRemoteJID(m)
	}
}

func hasRemoteJID(m map[string]any) bool {
	return remoteJID(m) != ""
}

func remoteJID(envelope map[string]any) string {
	if s := str(envelope, "key", "remoteJid"); s != "" {
		return s
	}
	return str(envelope, "remoteJid")
}

// IsMessagesUpsert compares ignoring case and separators.
func IsMessagesUpsert(event string) bool {
	return compactEvent(event) == "messagesupsert"
}

func compactEvent(event string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(event) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseWebhook turns a provider payload into an InboundMessage. A non-empty
// reason means the payload must be acknowledged and ignored.
func ParseWebhook(root map[string]any, pathEvent string) (entities.InboundMessage, string) {
	var msg entities.InboundMessage

	event, ok := firstMatch(root, eventStrategies)
	if !ok {
		event = strings.Trim(pathEvent, "/")
	}
	if event != "" && !IsMessagesUpsert(event) {
		return msg, ReasonUnsupportedEvent + ": " + event
	}
	msg.Event = event

	envelope, _ := firstMatch(root, envelopeStrategies)
	jid := remoteJID(envelope)
	if jid == "" {
		return msg, ReasonMissingRemoteJID
	}
	msg.RemoteJID = jid

	instance, ok := firstMatch(root, instanceStrategies)
	if !ok {
		return msg, ReasonMissingInstance
	}
	msg.Instance = instance

	if fromMe, _ := lookup(envelope, "key", "fromMe"); fromMe == true {
		msg.FromMe = true
		return msg, ReasonFromMe
	}

	user, ok := privateChatUser(envelope, jid)
	if !ok {
		return msg, ReasonNotPrivateChat
	}
	phone, err := usecases.NormalizeJIDUser(user)
	if err != nil {
		return msg, ReasonInvalidPhone
	}
	msg.Phone = phone

	msg.MessageID = str(envelope, "key", "id")
	msg.PushName = TruncateString(SanitizeString(str(envelope, "pushName")), 120)

	message, _ := lookup(envelope, "message")
	m, _ := message.(map[string]any)
	msg.Text = TruncateString(strings.TrimSpace(SanitizeString(ExtractText(m))), MaxInboundTextLength)
	if msg.Text == "" {
		return msg, ReasonEmptyText
	}
	return msg, ""
}

// privateChatUser returns the user part of a one-to-one chat JID. LID
// addressed chats fall back to the phone JID the provider sends alongside.
func privateChatUser(envelope map[string]any, raw string) (string, bool) {
	jid, err := types.ParseJID(raw)
	if err != nil {
		return "", false
	}
	switch jid.Server {
	case types.DefaultUserServer, types.LegacyUserServer:
		return jid.User, jid.User != ""
	case types.HiddenUserServer:
		for _, alt := range []string{str(envelope, "key", "senderPn"), str(envelope, "key", "remoteJidAlt")} {
			if alt == "" {
				continue
			}
			if a, err := types.ParseJID(alt); err == nil && a.Server == types.DefaultUserServer {
				return a.User, a.User != ""
			}
		}
	}
	return "", false
}

// ExtractText picks the user-visible text of a message, turning button and
// list selections into callback identifiers.
func ExtractText(m map[string]any) string {
	if m == nil {
		return ""
	}
	if id := str(m, "buttonsResponseMessage", "selectedButtonId"); id != "" {
		return entities.ButtonCallbackPrefix + id
	}
	if id := str(m, "templateButtonReplyMessage", "selectedId"); id != "" {
		return entities.ButtonCallbackPrefix + id
	}
	if id := str(m, "listResponseMessage", "singleSelectReply", "selectedRowId"); id != "" {
		return entities.ListCallbackPrefix + id
	}
	for _, path := range [][]string{
		{"conversation"},
		{"extendedTextMessage", "text"},
		{"imageMessage", "caption"},
		{"videoMessage", "caption"},
		{"documentMessage", "caption"},
		{"buttonsResponseMessage", "selectedDisplayText"},
		{"listResponseMessage", "title"},
	} {
		if s := str(m, path...); s != "" {
			return s
		}
	}
	return ""
}
