package domain

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	return brPrinter.Sprintf("R$ %.2f", float64(cents)/100)
}

// FormatDate renders a date the way customers write it.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// FormatDateTime renders a date and time the way customers write it.
func FormatDateTime(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}
