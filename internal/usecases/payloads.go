package usecases

import (
	"strconv"

	"revenda_bot/internal/entities"
)

// Provider endpoints under /message/{endpoint}/{instance}.
const (
	EndpointText        = "sendText"
	EndpointMedia       = "sendMedia"
	EndpointButtons     = "sendButtons"
	EndpointList        = "sendList"
	EndpointInteractive = "sendWhatsAppInteractive"
)

// EndpointConnectionCheck labels send-log rows written by the pre-send gate.
const EndpointConnectionCheck = "connection_check"

type textPayload struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type mediaPayload struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
}

type replyButton struct {
	Type        string `json:"type"`
	DisplayText string `json:"displayText"`
	ID          string `json:"id"`
}

type buttonsPayload struct {
	Number      string        `json:"number"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Footer      string        `json:"footer,omitempty"`
	Buttons     []replyButton `json:"buttons"`
}

type listRow struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	RowID       string `json:"rowId"`
}

type listSection struct {
	Title string    `json:"title"`
	Rows  []listRow `json:"rows"`
}

type listPayload struct {
	Number      string        `json:"number"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ButtonText  string        `json:"buttonText"`
	FooterText  string        `json:"footerText,omitempty"`
	Sections    []listSection `json:"sections"`
}

type interactiveReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type interactiveButton struct {
	Type  string           `json:"type"`
	Reply interactiveReply `json:"reply"`
}

type interactiveRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type interactiveSection struct {
	Title string           `json:"title"`
	Rows  []interactiveRow `json:"rows"`
}

type interactiveAction struct {
	Button   string               `json:"button,omitempty"`
	Buttons  []interactiveButton  `json:"buttons,omitempty"`
	Sections []interactiveSection `json:"sections,omitempty"`
}

type interactiveBody struct {
	Text string `json:"text"`
}

type interactivePayload struct {
	Number string            `json:"number"`
	Type   string            `json:"type"`
	Body   interactiveBody   `json:"body"`
	Footer *interactiveBody  `json:"footer,omitempty"`
	Action interactiveAction `json:"action"`
}

func footerOf(s string) *interactiveBody {
	if s == "" {
		return nil
	}
	return &interactiveBody{Text: s}
}

func buttonID(b entities.Button, i int) string {
	if b.ID != "" {
		return b.ID
	}
	return "btn_" + strconv.Itoa(i+1)
}

func rowID(r entities.ListRow, n int) string {
	if r.ID != "" {
		return r.ID
	}
	return "row_" + strconv.Itoa(n)
}

func buttonsPayloads(number string, v entities.ButtonsResponse) (buttonsPayload, interactivePayload) {
	native := buttonsPayload{Number: number, Title: v.Text, Description: v.Text, Footer: v.Footer}
	inter := interactivePayload{Number: number, Type: "button", Body: interactiveBody{Text: v.Text}, Footer: footerOf(v.Footer)}
	for i, b := range v.Buttons {
		id := buttonID(b, i)
		native.Buttons = append(native.Buttons, replyButton{Type: "reply", DisplayText: b.Label, ID: id})
		inter.Action.Buttons = append(inter.Action.Buttons, interactiveButton{Type: "reply", Reply: interactiveReply{ID: id, Title: b.Label}})
	}
	return native, inter
}

func listPayloads(number string, v entities.ListResponse) (listPayload, interactivePayload) {
	native := listPayload{Number: number, Title: v.Text, Description: v.Text, ButtonText: v.ButtonText, FooterText: v.Footer}
	inter := interactivePayload{Number: number, Type: "list", Body: interactiveBody{Text: v.Text}, Footer: footerOf(v.Footer)}
	inter.Action.Button = v.ButtonText
	n := 0
	for _, sec := range v.Sections {
		ns := listSection{Title: sec.Title}
		is := interactiveSection{Title: sec.Title}
		for _, r := range sec.Rows {
			n++
			id := rowID(r, n)
			ns.Rows = append(ns.Rows, listRow{Title: r.Title, Description: r.Description, RowID: id})
			is.Rows = append(is.Rows, interactiveRow{ID: id, Title: r.Title, Description: r.Description})
		}
		native.Sections = append(native.Sections, ns)
		inter.Action.Sections = append(inter.Action.Sections, is)
	}
	return native, inter
}
