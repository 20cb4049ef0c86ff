package paynow

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"storefront/config"
	"storefront/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16CheckValue(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), CRC16("123456789"))
}

func TestBuildPayloadIsByteExact(t *testing.T) {
	payload, err := BuildPayload(Params{
		Amount:       decimal.RequireFromString("12.5"),
		ProxyValue:   "+65 9123-4567",
		MerchantName: "MALAMART",
		MerchantCity: "SINGAPORE",
		Reference:    "ORDER42",
	})
	require.NoError(t, err)

	// 国家码数字同样保留
	assert.Contains(t, payload, "02106591234567")

	exact, err := BuildPayload(Params{
		Amount:     decimal.RequireFromString("12.5"),
		ProxyValue: "91234567",
		Reference:  "ORDER42",
	})
	require.NoError(t, err)
	assert.Equal(t, "00020101021126350009SG.PAYNOW0101002089123456708010520400005303702540512.505802SG5908MALAMART6009SINGAPORE62110107ORDER42630413B3", exact)
}

func TestBuildPayloadDefaultsAndClipping(t *testing.T) {
	payload, err := BuildPayload(Params{
		Amount:       decimal.Zero,
		ProxyType:    "2",
		ProxyValue:   "201912345",
		MerchantName: strings.Repeat("N", 40),
		MerchantCity: strings.Repeat("C", 30),
		Reference:    strings.Repeat("R", 40),
	})
	require.NoError(t, err)

	entries, err := ParseTLV(payload)
	require.NoError(t, err)

	byID := map[string]TLV{}
	for _, e := range entries {
		byID[e.ID] = e
	}
	assert.Equal(t, "0.01", byID[tagAmount].Value)
	assert.Len(t, byID[tagMerchantName].Value, maxMerchantName)
	assert.Len(t, byID[tagMerchantCity].Value, maxMerchantCity)
	require.Len(t, byID[tagAdditionalData].Children, 1)
	assert.Len(t, byID[tagAdditionalData].Children[0].Value, maxReference)

	account := byID[tagMerchantAccount].Children
	require.Len(t, account, 4)
	assert.Equal(t, "SG.PAYNOW", account[0].Value)
	assert.Equal(t, "2", account[1].Value)
	assert.Equal(t, "201912345", account[2].Value)
}

func TestBuildPayloadRejectsBadProxy(t *testing.T) {
	_, err := BuildPayload(Params{Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)
	_, err = BuildPayload(Params{Amount: decimal.NewFromInt(1), ProxyValue: "abc"})
	assert.Error(t, err)
}

func TestParseTLVDetectsCorruption(t *testing.T) {
	payload, err := BuildPayload(Params{Amount: decimal.NewFromInt(3), ProxyValue: "81234567", Reference: "X"})
	require.NoError(t, err)

	tampered := strings.Replace(payload, "54043.00", "54043.01", 1)
	_, err = ParseTLV(tampered)
	assert.ErrorContains(t, err, "crc mismatch")

	_, err = ParseTLV(payload[:10])
	assert.Error(t, err)

	entries, err := ParseTLV(payload)
	require.NoError(t, err)
	assert.Contains(t, Describe(entries), "  00 (09): SG.PAYNOW")
}

func TestGeneratorCreateIntent(t *testing.T) {
	g := New(config.PayNowConfig{ProxyValue: "91234567", QRSize: 128})
	g.now = func() time.Time { return time.UnixMilli(1700000000000) }

	intent, err := g.CreateIntent(context.Background(), decimal.RequireFromString("8.8"), "")
	require.NoError(t, err)
	assert.Equal(t, "PN1700000000000", intent.Reference)
	assert.Contains(t, intent.QRCode, "54048.80")

	png, err := base64.StdEncoding.DecodeString(intent.Raw[payment.RawQRImage].(string))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	_, err = g.Capture(context.Background(), intent.Reference)
	assert.ErrorIs(t, err, payment.ErrUnsupported)
	_, err = g.Refund(context.Background(), intent.Reference, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, payment.ErrUnsupported)
}
