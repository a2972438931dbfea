package finance

import (
	"fmt"
	"strings"
	"unicode"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PixCharge is the input of a static PIX BR Code.
type PixCharge struct {
	Key          string
	MerchantName string
	MerchantCity string
	AmountCents  int64
	TxID         string
}

// Payload renders the EMV "copia e cola" string, CRC included.
func (c PixCharge) Payload() string {
	var b strings.Builder
	b.WriteString(emvField("00", "01"))
	b.WriteString(emvField("26", emvField("00", "br.gov.bcb.pix")+emvField("01", c.Key)))
	b.WriteString(emvField("52", "0000"))
	b.WriteString(emvField("53", "986"))
	if c.AmountCents > 0 {
		b.WriteString(emvField("54", fmt.Sprintf("%d.%02d", c.AmountCents/100, c.AmountCents%100)))
	}
	b.WriteString(emvField("58", "BR"))
	b.WriteString(emvField("59", emvText(c.MerchantName, 25)))
	b.WriteString(emvField("60", emvText(c.MerchantCity, 15)))
	b.WriteString(emvField("62", emvField("05", txID(c.TxID))))
	b.WriteString("6304")
	return b.String() + fmt.Sprintf("%04X", crc16CCITT([]byte(b.String())))
}

// QRCode renders the payload as a PNG.
func (c PixCharge) QRCode() ([]byte, error) {
	return qrcode.Encode(c.Payload(), qrcode.Medium, 320)
}

func emvField(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// emvText uppercases, drops accents and truncates to max bytes.
func emvText(s string, max int) string {
	plain, _, err := transform.String(stripMarks, s)
	if err != nil {
		plain = s
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(plain)) {
		if r < 0x80 && b.Len() < max {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func txID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == 25 {
			break
		}
	}
	if b.Len() == 0 {
		return "***"
	}
	return b.String()
}

// crc16CCITT is CRC-16/CCITT-FALSE: poly 0x1021, init 0xFFFF.
func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, c := range data {
		crc ^= uint16(c) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
