package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"dispatch_bot_backend/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
}

type paymentProofEmailData struct {
	baseEmailData
	ProofID         int64
	ClientName      string
	ClientPhone     string
	InvoiceID       int64
	AmountFormatted string
	DueDate         string
	StoredAt        string
	ReceivedAt      string
	HasAttachment   bool
}

func newPaymentProofEmailData(p PaymentProof) paymentProofEmailData {
	data := paymentProofEmailData{
		baseEmailData: baseEmailData{
			Title:   "Novo comprovante de pagamento",
			Heading: "Novo comprovante de pagamento",
		},
		ProofID:       p.ProofID,
		ClientName:    p.ClientName,
		ClientPhone:   p.ClientPhone,
		StoredAt:      p.StoredAt,
		ReceivedAt:    domain.FormatDateTime(p.ReceivedAt),
		HasAttachment: p.Attachment != nil,
	}
	if p.InvoiceID != nil {
		data.InvoiceID = *p.InvoiceID
		data.AmountFormatted = domain.FormatBRL(p.AmountCents)
	}
	if p.DueDate != nil {
		data.DueDate = domain.FormatDate(*p.DueDate)
	}
	return data
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
