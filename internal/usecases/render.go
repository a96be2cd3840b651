package usecases

import (
	"fmt"
	"strings"

	"revenda_bot/internal/entities"
)

var emojiDigits = []string{"0️⃣", "1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// EmojiNumber renders 1..10 as keycap emoji and larger numbers as "n.".
func EmojiNumber(n int) string {
	if n >= 0 && n < len(emojiDigits) {
		return emojiDigits[n]
	}
	return fmt.Sprintf("%d.", n)
}

// RenderPlainText flattens any response into the text used by the last
// delivery tier. Every button and list row label is kept.
func RenderPlainText(r entities.Response) string {
	switch v := r.(type) {
	case entities.TextResponse:
		return v.Text
	case entities.ImageResponse:
		if v.Caption == "" {
			return v.ImageURL
		}
		return v.Caption + "\n\n" + v.ImageURL
	case entities.ButtonsResponse:
		var b strings.Builder
		b.WriteString(v.Text)
		b.WriteString("\n")
		for i, btn := range v.Buttons {
			b.WriteString(fmt.Sprintf("\n%s %s", EmojiNumber(i+1), btn.Label))
		}
		if v.Footer != "" {
			b.WriteString("\n\n_" + v.Footer + "_")
		}
		return b.String()
	case entities.ListResponse:
		var b strings.Builder
		b.WriteString(v.Text)
		n := 0
		for _, sec := range v.Sections {
			b.WriteString("\n")
			if sec.Title != "" {
				b.WriteString("\n*" + sec.Title + "*")
			}
			for _, row := range sec.Rows {
				n++
				b.WriteString(fmt.Sprintf("\n%s %s", EmojiNumber(n), row.Title))
				if row.Description != "" {
					b.WriteString(" - " + row.Description)
				}
			}
		}
		if v.Footer != "" {
			b.WriteString("\n\n_" + v.Footer + "_")
		}
		return b.String()
	default:
		panic(fmt.Sprintf("usecases: unknown response %T", r))
	}
}

const menuFooter = "Digite o número da opção desejada."

// RenderFlowMenu lists the options of one flow level. Non-root levels get a
// "0 - Voltar" entry.
func RenderFlowMenu(title string, options []*entities.FlowNode, root bool) string {
	var b strings.Builder
	if title != "" {
		b.WriteString("*" + title + "*\n\n")
	}
	for _, n := range options {
		b.WriteString(fmt.Sprintf("%s - %s\n", n.OptionNumber, n.Label))
	}
	if !root {
		b.WriteString("0 - Voltar\n")
	}
	b.WriteString("\n" + menuFooter)
	return b.String()
}

// ApplyTemplateVars fills {{nome}}, {{name}} and {{telefone}}.
func ApplyTemplateVars(text, name, phone string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	if name == "" {
		name = "cliente"
	}
	return strings.NewReplacer(
		"{{nome}}", name,
		"{{name}}", name,
		"{{telefone}}", phone,
	).Replace(text)
}

// WithTemplateVars returns r with its visible text passed through ApplyTemplateVars.
func WithTemplateVars(r entities.Response, name, phone string) entities.Response {
	switch v := r.(type) {
	case entities.TextResponse:
		v.Text = ApplyTemplateVars(v.Text, name, phone)
		return v
	case entities.ImageResponse:
		v.Caption = ApplyTemplateVars(v.Caption, name, phone)
		return v
	case entities.ButtonsResponse:
		v.Text = ApplyTemplateVars(v.Text, name, phone)
		return v
	case entities.ListResponse:
		v.Text = ApplyTemplateVars(v.Text, name, phone)
		return v
	default:
		panic(fmt.Sprintf("usecases: unknown response %T", r))
	}
}

// Downgrade turns interactive content into its plain-text rendering.
func Downgrade(r entities.Response) entities.Response {
	switch r.(type) {
	case entities.ButtonsResponse, entities.ListResponse:
		return entities.TextResponse{Text: RenderPlainText(r)}
	}
	return r
}
