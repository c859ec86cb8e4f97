package email

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/rd-agent/backend/pkg/common"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Data feeds the notification templates. Fields a kind does not use stay empty.
type Data struct {
	RecipientName  string
	ActorName      string
	ProjectName    string
	ProjectURL     string
	Role           string
	HypothesisText string
	OldStatus      string
	NewStatus      string
	Confidence     int
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(kind common.NotificationKind, subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New(string(kind) + ".subject").Parse(subject)),
		body:    template.Must(template.New(string(kind) + ".body").Parse(body)),
	}
}

var templates = map[common.NotificationKind]mailTemplate{
	common.NotifyMemberAdded: mustTemplate(common.NotifyMemberAdded,
		`You were added to {{.ProjectName}}`,
		`Hi {{.RecipientName}},

**{{.ActorName}}** added you to the project **{{.ProjectName}}** as *{{.Role}}*.

[Open the project]({{.ProjectURL}})
`),
	common.NotifyStatusChanged: mustTemplate(common.NotifyStatusChanged,
		`Hypothesis is now {{.NewStatus}} in {{.ProjectName}}`,
		`Hi {{.RecipientName}},

New evidence changed the status of a hypothesis in **{{.ProjectName}}**:

> {{.HypothesisText}}

| before | after | confidence |
|---|---|---|
| {{.OldStatus}} | {{.NewStatus}} | {{.Confidence}}% |

[Review the evidence]({{.ProjectURL}})
`),
	common.NotifySummaryReady: mustTemplate(common.NotifySummaryReady,
		`New summary for {{.ProjectName}}`,
		`Hi {{.RecipientName}},

A fresh AI summary of **{{.ProjectName}}** is ready.

[Read it]({{.ProjectURL}})
`),
}

// Render builds subject, Markdown text and HTML for a notification kind.
func Render(kind common.NotificationKind, data Data) (subject, text, htmlBody string, err error) {
	tpl, ok := templates[kind]
	if !ok {
		return "", "", "", fmt.Errorf("no email template for %q", kind)
	}

	var sb, bb bytes.Buffer
	if err := tpl.subject.Execute(&sb, data); err != nil {
		return "", "", "", err
	}
	if err := tpl.body.Execute(&bb, data); err != nil {
		return "", "", "", err
	}

	return sb.String(), bb.String(), string(toHTML(bb.Bytes())), nil
}

func toHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse(md)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML,
	})
	return markdown.Render(doc, renderer)
}
