package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
)

// TemplateData contains all the fields available for email template rendering
type TemplateData struct {
	Greeting   string // depends on recipient count
	FileName   string
	URL        string
	Size       string // e.g. "2.40 MB", empty when unknown
	SenderName string
}

// EmailTemplate contains the templates for rendering emails
type EmailTemplate struct {
	SubjectFormat string
	PlainText     string
	HTML          string
}

// DefaultTemplate announces a freshly uploaded audio file
var DefaultTemplate = EmailTemplate{
	SubjectFormat: "Audio ready: {{.FileName}}",
	PlainText: `{{.Greeting}}

The audio {{.FileName}}{{if .Size}} ({{.Size}}){{end}} is ready:

{{.URL}}
{{if .SenderName}}
Thanks!
~{{.SenderName}}{{end}}`,
	HTML: `<div dir="ltr">{{.Greeting}}<br><br>
The audio <a href="{{.URL}}">{{.FileName}}</a>{{if .Size}} ({{.Size}}){{end}} is ready.<br>
{{if .SenderName}}<br>Thanks!<br>
~{{.SenderName}}{{end}}</div>`,
}

// NewTemplateData builds the template fields for a notice
func NewTemplateData(n *ShareNotice) TemplateData {
	data := TemplateData{
		Greeting:   FormatGreeting(n.To),
		FileName:   n.FileName,
		URL:        n.URL,
		SenderName: n.SenderName,
	}
	if n.SizeBytes > 0 {
		data.Size = fmt.Sprintf("%.2f MB", float64(n.SizeBytes)/1024/1024)
	}
	return data
}

// FormatGreeting creates an appropriate greeting based on number of recipients
// 1 recipient: "Dear John,"
// 2 recipients: "Dear John & Jane,"
// 3+ recipients: "Hey Everyone!"
func FormatGreeting(recipients []Recipient) string {
	switch len(recipients) {
	case 0:
		return "Hello,"
	case 1:
		return fmt.Sprintf("Dear %s,", firstName(recipients[0]))
	case 2:
		return fmt.Sprintf("Dear %s & %s,", firstName(recipients[0]), firstName(recipients[1]))
	default:
		return "Hey Everyone!"
	}
}

// firstName falls back to the local part of the address
func firstName(r Recipient) string {
	if name, _, _ := strings.Cut(strings.TrimSpace(r.Name), " "); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(r.Address, "@"); ok && local != "" {
		return local
	}
	return "Friend"
}

// RenderSubject renders the email subject using the template
func (t *EmailTemplate) RenderSubject(data TemplateData) (string, error) {
	return render(template.New("subject"), t.SubjectFormat, data)
}

// RenderPlainText renders the plain text email body
func (t *EmailTemplate) RenderPlainText(data TemplateData) (string, error) {
	return render(template.New("plaintext"), t.PlainText, data)
}

// RenderHTML renders the HTML email body with contextual escaping
func (t *EmailTemplate) RenderHTML(data TemplateData) (string, error) {
	tmpl, err := htmltemplate.New("html").Parse(t.HTML)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func render(tmpl *template.Template, text string, data TemplateData) (string, error) {
	tmpl, err := tmpl.Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
