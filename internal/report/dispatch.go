package report

import (
	"context"
	"fmt"

	"github.com/frn-reports/voicereport/internal/email"
)

// Dispatcher delivers a rendered report to its fixed destination.
type Dispatcher interface {
	Dispatch(ctx context.Context, filename string, doc []byte) error
}

// EmailDispatcher mails the rendered document as an attachment.
type EmailDispatcher struct {
	SMTP email.SMTPConfig
	To   string
}

func NewEmailDispatcher(smtp email.SMTPConfig, to string) *EmailDispatcher {
	return &EmailDispatcher{SMTP: smtp, To: to}
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, filename string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := "Incident report ready"
	body := "The attached incident report was prepared by the voice assistant."
	if err := email.SendAttachment(d.SMTP, d.To, subject, body, filename, doc); err != nil {
		return fmt.Errorf("report dispatch to %s: %w", d.To, err)
	}
	return nil
}
