package entities

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Response is the closed set of outbound message shapes. Only the types in
// this file implement it.
type Response interface {
	Type() ResponseType
	isResponse()
}

type TextResponse struct {
	Text string
}

type ImageResponse struct {
	Caption  string
	ImageURL string
}

type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type ButtonsResponse struct {
	Text    string
	Footer  string
	Buttons []Button
}

type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

type ListResponse struct {
	Text       string
	Footer     string
	ButtonText string
	Sections   []ListSection
}

func (TextResponse) Type() ResponseType    { return ResponseText }
func (ImageResponse) Type() ResponseType   { return ResponseTextImage }
func (ButtonsResponse) Type() ResponseType { return ResponseTextButtons }
func (ListResponse) Type() ResponseType    { return ResponseTextList }

func (TextResponse) isResponse()    {}
func (ImageResponse) isResponse()   {}
func (ButtonsResponse) isResponse() {}
func (ListResponse) isResponse()    {}

// ResponseContent is the stored JSON shape of rule and node content.
type ResponseContent struct {
	Text       string        `json:"text"`
	ImageURL   string        `json:"image_url,omitempty"`
	Footer     string        `json:"footer,omitempty"`
	Buttons    []Button      `json:"buttons,omitempty"`
	ButtonText string        `json:"button_text,omitempty"`
	Sections   []ListSection `json:"sections,omitempty"`
}

// ParseResponse builds a Response from a stored type and content. Content may
// be a JSON object or a bare JSON string holding the text.
func ParseResponse(t ResponseType, raw json.RawMessage) (Response, error) {
	var c ResponseContent
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
	case strings.HasPrefix(trimmed, `"`):
		if err := json.Unmarshal(raw, &c.Text); err != nil {
			return nil, fmt.Errorf("decode response text: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode response content: %w", err)
		}
	}
	return c.Build(t), nil
}

// Build turns stored content into a Response, degrading to text when the
// interactive parts are missing.
func (c ResponseContent) Build(t ResponseType) Response {
	switch t {
	case ResponseTextImage:
		if c.ImageURL != "" {
			return ImageResponse{Caption: c.Text, ImageURL: c.ImageURL}
		}
	case ResponseTextButtons:
		if len(c.Buttons) > 0 {
			return ButtonsResponse{Text: c.Text, Footer: c.Footer, Buttons: c.Buttons}
		}
	case ResponseTextList:
		if len(c.Sections) > 0 {
			bt := c.ButtonText
			if bt == "" {
				bt = "Ver opções"
			}
			return ListResponse{Text: c.Text, Footer: c.Footer, ButtonText: bt, Sections: c.Sections}
		}
	}
	return TextResponse{Text: c.Text}
}

// ResponseBody returns the main text of any response.
func ResponseBody(r Response) string {
	switch v := r.(type) {
	case TextResponse:
		return v.Text
	case ImageResponse:
		return v.Caption
	case ButtonsResponse:
		return v.Text
	case ListResponse:
		return v.Text
	default:
		panic(fmt.Sprintf("entities: unknown response %T", r))
	}
}
