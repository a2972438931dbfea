package email

const (
	subjectPaymentProofFmt        = "Comprovante de pagamento #%d - %s"
	subjectPaymentProofInvoiceFmt = "Comprovante de pagamento #%d - %s (fatura #%d)"
)
