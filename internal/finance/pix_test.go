package finance

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16CheckValue(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), crc16CCITT([]byte("123456789")))
}

func TestPixPayloadFields(t *testing.T) {
	c := PixCharge{
		Key:          "financeiro@example.com",
		MerchantName: "Atendimento São José",
		MerchantCity: "Curitiba",
		AmountCents:  15990,
		TxID:         "FAT-12",
	}
	p := c.Payload()

	assert.True(t, strings.HasPrefix(p, "000201"))
	assert.Contains(t, p, "0014br.gov.bcb.pix0122financeiro@example.com")
	assert.Contains(t, p, "5303986")
	assert.Contains(t, p, "5406159.90")
	assert.Contains(t, p, "5802BR")
	assert.Contains(t, p, "5920ATENDIMENTO SAO JOSE")
	assert.Contains(t, p, "6008CURITIBA")
	assert.Contains(t, p, "62090505FAT12")

	require.Greater(t, len(p), 8)
	body, crc := p[:len(p)-4], p[len(p)-4:]
	assert.True(t, strings.HasSuffix(body, "6304"))
	assert.Equal(t, fmt.Sprintf("%04X", crc16CCITT([]byte(body))), crc)
}

func TestPixPayloadWithoutAmountOrTxID(t *testing.T) {
	p := PixCharge{Key: "+5541999990000", MerchantName: "A", MerchantCity: "B"}.Payload()
	assert.NotContains(t, p, "5406")
	assert.Contains(t, p, "62070503***")
}

func TestPixQRCodeIsPNG(t *testing.T) {
	png, err := PixCharge{Key: "k", MerchantName: "A", MerchantCity: "B"}.QRCode()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}
