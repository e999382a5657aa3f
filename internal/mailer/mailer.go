package mailer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/curaious/chrono/internal/config"
	"github.com/curaious/chrono/internal/services/task"
	"github.com/wneessen/go-mail"
)

var backdatedTemplate = template.Must(template.New("backdated").Parse(`Hello {{.ManagerName}},

{{.EmployeeName}} has submitted a backdated task for {{.TaskDate}}.

Title: {{.TaskTitle}}
Details: {{.TaskDetails}}

Please review and approve it in the time tracker.
`))

// Mailer delivers notification emails over SMTP. It implements
// task.Notifier.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// New builds a Mailer from config. Returns nil when SMTP is not configured;
// callers treat a nil dispatcher as "notifications disabled".
func New(conf *config.Config) *Mailer {
	if conf.SMTP_HOST == "" {
		return nil
	}

	return &Mailer{
		host:     conf.SMTP_HOST,
		port:     conf.SMTP_PORT,
		username: conf.SMTP_USERNAME,
		password: conf.SMTP_PASSWORD,
		from:     conf.SMTP_FROM,
	}
}

// NotifyBackdatedTask emails the owner's reporting manager about a backdated
// submission.
func (m *Mailer) NotifyBackdatedTask(ctx context.Context, n task.BackdatedNotice) error {
	var body bytes.Buffer
	if err := backdatedTemplate.Execute(&body, n); err != nil {
		return fmt.Errorf("failed to render notice body: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(n.ManagerEmail); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(fmt.Sprintf("[Chrono] Backdated task submitted by %s", n.EmployeeName))
	msg.SetBodyString(mail.TypeTextPlain, body.String())

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, msg)
}
