package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"dispatch_bot_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	financeTo string
}

// NewSMTPSender creates a new SMTPSender addressed to the finance mailbox.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		financeTo: cfg.GetFinanceEmail(),
	}
}

// NewSender returns an SMTPSender when SMTP is configured and a NoopSender otherwise.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.IsSMTPEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg)
}

func (s *SMTPSender) newMsg(toEmail, subject, htmlContent string, attachments ...Attachment) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		msg.AttachReader(att.FileName, bytes.NewReader(att.Content))
	}
	return msg, nil
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	msg, err := s.newMsg(toEmail, subject, htmlContent, attachments...)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendPaymentProof mails the proof notice, with the file attached when present.
func (s *SMTPSender) SendPaymentProof(ctx context.Context, proof PaymentProof) error {
	content, err := renderEmailTemplate("payment_proof.html", newPaymentProofEmailData(proof))
	if err != nil {
		return err
	}
	var attachments []Attachment
	if proof.Attachment != nil {
		attachments = append(attachments, *proof.Attachment)
	}
	return s.send(ctx, s.financeTo, paymentProofSubject(proof), content, attachments...)
}

func paymentProofSubject(p PaymentProof) string {
	if p.InvoiceID != nil {
		return fmt.Sprintf(subjectPaymentProofInvoiceFmt, p.ProofID, p.ClientName, *p.InvoiceID)
	}
	return fmt.Sprintf(subjectPaymentProofFmt, p.ProofID, p.ClientName)
}
