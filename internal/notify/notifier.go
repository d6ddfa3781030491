package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"text/template"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

var (
	certificateTmpl = template.Must(template.New("certificate").Parse(
		`Hello {{.Name}},

Congratulations! Your certificate for "{{.CourseTitle}}" has been approved.
You can view it from your dashboard: {{.DashboardURL}}
`))

	contactAckTmpl = template.Must(template.New("contact_ack").Parse(
		`Hello {{.Name}},

Thank you for contacting us about "{{.Subject}}".
Our team will get back to you shortly.
`))

	digestTmpl = template.Must(template.New("digest").Parse(
		`{{len .Pending}} enrollment(s) are waiting for certificate approval as of {{.AsOf}}:
{{range .Pending}}
- {{if .StudentName}}{{.StudentName}}{{else}}(no profile){{end}}: {{.CourseTitle}}{{if .CompletedAt}} (completed {{.CompletedAt.Format "2006-01-02"}}){{end}}{{end}}

Review them at {{.AdminURL}}
`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// Notifier はドメインイベントをメールに変換して送信する。
type Notifier struct {
	mailer  Mailer
	baseURL string
}

// NewNotifier はNotifierを生成する。baseURLはメール本文中のリンクに使う。
func NewNotifier(mailer Mailer, baseURL string) *Notifier {
	return &Notifier{mailer: mailer, baseURL: baseURL}
}

// CertificateIssued は受講者に認定完了を通知する。メールアドレスが空の場合は何もしない。
func (n *Notifier) CertificateIssued(ctx context.Context, student *model.Profile, courseTitle string) error {
	if student == nil || student.Email == "" {
		return nil
	}
	text, err := render(certificateTmpl, map[string]string{
		"Name":         student.FullName,
		"CourseTitle":  courseTitle,
		"DashboardURL": n.baseURL + "/dashboard",
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{
		To:      []mail.Address{{Name: student.FullName, Address: student.Email}},
		Subject: "Your certificate is ready",
		Text:    text,
	})
}

// ContactAcknowledged は問い合わせ送信者に受付を通知する。
func (n *Notifier) ContactAcknowledged(ctx context.Context, s *model.ContactSubmission) error {
	if s == nil || s.Email == "" {
		return nil
	}
	text, err := render(contactAckTmpl, s)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{
		To:      []mail.Address{{Name: s.Name, Address: s.Email}},
		Subject: "We received your message",
		Text:    text,
	})
}

// PendingCertificatesDigest は認定待ち一覧を管理者に送る。
// pendingが空の場合は送信しない。
func (n *Notifier) PendingCertificatesDigest(ctx context.Context, to string, pending []model.PendingCertificate, asOf time.Time) error {
	if to == "" || len(pending) == 0 {
		return nil
	}
	text, err := render(digestTmpl, map[string]any{
		"Pending":  pending,
		"AsOf":     asOf.UTC().Format(time.RFC1123),
		"AdminURL": n.baseURL + "/admin/certificates",
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{
		To:      []mail.Address{{Address: to}},
		Subject: fmt.Sprintf("%d certificate(s) awaiting approval", len(pending)),
		Text:    text,
	})
}
