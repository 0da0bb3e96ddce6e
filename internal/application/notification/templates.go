package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/taskfabric/taskfabric/internal/event"
)

// EmailMessage is a rendered email ready for the provider.
type EmailMessage struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// PushMessage is a rendered push notification ready for the provider.
type PushMessage struct {
	DeviceToken string
	Title       string
	Body        string
}

// reminderView is the template input built from a reminder.due.v1 payload.
type reminderView struct {
	TaskTitle       string
	TaskDescription string
	DueAt           string
}

var (
	emailSubjectTmpl = texttemplate.Must(texttemplate.New("email_subject").Parse(
		`Reminder: {{.TaskTitle}}`,
	))

	emailTextTmpl = texttemplate.Must(texttemplate.New("email_text").Parse(
		`Your task "{{.TaskTitle}}" is due at {{.DueAt}}.
{{- if .TaskDescription}}

{{.TaskDescription}}
{{- end}}
`,
	))

	emailHTMLTmpl = htmltemplate.Must(htmltemplate.New("email_html").Parse(
		`<p>Your task <strong>{{.TaskTitle}}</strong> is due at {{.DueAt}}.</p>
{{- if .TaskDescription}}
<p>{{.TaskDescription}}</p>
{{- end}}
`,
	))

	pushBodyTmpl = texttemplate.Must(texttemplate.New("push_body").Parse(
		`"{{.TaskTitle}}" is due at {{.DueAt}}`,
	))
)

func newReminderView(p event.ReminderDue) reminderView {
	v := reminderView{
		TaskTitle: p.TaskTitle,
		DueAt:     p.DueAt.UTC().Format("2006-01-02 15:04 UTC"),
	}
	if p.TaskDescription != nil {
		v.TaskDescription = *p.TaskDescription
	}
	return v
}

// renderEmail builds the email for a due reminder.
func renderEmail(to string, p event.ReminderDue) (EmailMessage, error) {
	view := newReminderView(p)

	var subject, text, html bytes.Buffer
	if err := emailSubjectTmpl.Execute(&subject, view); err != nil {
		return EmailMessage{}, fmt.Errorf("render email subject: %w", err)
	}
	if err := emailTextTmpl.Execute(&text, view); err != nil {
		return EmailMessage{}, fmt.Errorf("render email text body: %w", err)
	}
	if err := emailHTMLTmpl.Execute(&html, view); err != nil {
		return EmailMessage{}, fmt.Errorf("render email html body: %w", err)
	}

	return EmailMessage{
		To:       to,
		Subject:  subject.String(),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}

// renderPush builds the push notification for a due reminder.
func renderPush(deviceToken string, p event.ReminderDue) (PushMessage, error) {
	var body bytes.Buffer
	if err := pushBodyTmpl.Execute(&body, newReminderView(p)); err != nil {
		return PushMessage{}, fmt.Errorf("render push body: %w", err)
	}

	return PushMessage{
		DeviceToken: deviceToken,
		Title:       "Task reminder",
		Body:        body.String(),
	}, nil
}
