package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentProofTemplateRendersInvoice(t *testing.T) {
	invoiceID := int64(12)
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	proof := PaymentProof{
		ProofID:     7,
		ClientName:  "Maria Souza",
		ClientPhone: "5541999990000",
		InvoiceID:   &invoiceID,
		AmountCents: 15990,
		DueDate:     &due,
		StoredAt:    "7/proof_1_ab12cd34.jpg",
		ReceivedAt:  time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC),
	}

	html, err := renderEmailTemplate("payment_proof.html", newPaymentProofEmailData(proof))
	require.NoError(t, err)
	assert.Contains(t, html, "Maria Souza")
	assert.Contains(t, html, "#12")
	assert.Contains(t, html, "R$ 159,90")
	assert.Contains(t, html, "10/03/2026")
	assert.NotContains(t, html, "em anexo")
}

func TestPaymentProofSubject(t *testing.T) {
	assert.Equal(t, "Comprovante de pagamento #3 - Ana", paymentProofSubject(PaymentProof{ProofID: 3, ClientName: "Ana"}))
	id := int64(9)
	assert.Equal(t, "Comprovante de pagamento #3 - Ana (fatura #9)", paymentProofSubject(PaymentProof{ProofID: 3, ClientName: "Ana", InvoiceID: &id}))
}

func TestSMTPMessageCarriesAttachment(t *testing.T) {
	s := &SMTPSender{fromName: "Atendimento", fromEmail: "bot@example.com"}
	msg, err := s.newMsg("financeiro@example.com", "x", "<p>x</p>", Attachment{FileName: "proof.jpg", Content: []byte{1, 2}})
	require.NoError(t, err)
	assert.Len(t, msg.GetAttachments(), 1)
}
