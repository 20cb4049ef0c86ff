/*
Package paynow 新加坡 PayNow 静态二维码。

完全离线：本地生成 EMV TLV payload，没有网关往返也没有扣款步骤。
确认付款只能依赖客户端声明，是三条支付通道中完整性最弱的一条，
交易记录以 CLIENT_ASSERTED 状态入账，与真正的 capture 区分。
*/
package paynow

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"storefront/config"
	"storefront/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const (
	maxMerchantName = 25
	maxMerchantCity = 15
	maxReference    = 25

	defaultMerchantName = "MALAMART"
	defaultMerchantCity = "SINGAPORE"
	defaultQRSize       = 256
)

// Params 生成 payload 所需的商户与金额信息
type Params struct {
	Amount       decimal.Decimal
	ProxyType    string // 0 = 手机号, 2 = UEN
	ProxyValue   string
	MerchantName string
	MerchantCity string
	Reference    string
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// NewReference 未指定参考号时生成 PN<毫秒时间戳>
func NewReference(now time.Time) string {
	return "PN" + strconv.FormatInt(now.UnixMilli(), 10)
}

// BuildPayload 生成可被钱包扫描的 PayNow payload（末尾 4 位大写十六进制 CRC）
func BuildPayload(p Params) (string, error) {
	if p.ProxyValue == "" {
		return "", fmt.Errorf("paynow proxy value required")
	}
	proxy := digitsOnly(p.ProxyValue)
	if proxy == "" {
		return "", fmt.Errorf("paynow proxy value %q has no digits", p.ProxyValue)
	}
	proxyType := p.ProxyType
	if proxyType == "" {
		proxyType = "0"
	}
	amount := "0.01"
	if p.Amount.IsPositive() {
		amount = p.Amount.StringFixed(2)
	}
	name := p.MerchantName
	if name == "" {
		name = defaultMerchantName
	}
	city := p.MerchantCity
	if city == "" {
		city = defaultMerchantCity
	}
	ref := p.Reference
	if ref == "" {
		ref = NewReference(time.Now())
	}

	merchant := formatTLV("00", "SG.PAYNOW") +
		formatTLV("01", proxyType) +
		formatTLV("02", proxy) +
		formatTLV("08", "0")

	var b strings.Builder
	b.WriteString(formatTLV(tagPayloadFormat, "01"))
	b.WriteString(formatTLV(tagInitiation, "11"))
	b.WriteString(formatTLV(tagMerchantAccount, merchant))
	b.WriteString(formatTLV(tagCategoryCode, "0000"))
	b.WriteString(formatTLV(tagCurrency, "702"))
	b.WriteString(formatTLV(tagAmount, amount))
	b.WriteString(formatTLV(tagCountry, "SG"))
	b.WriteString(formatTLV(tagMerchantName, clip(name, maxMerchantName)))
	b.WriteString(formatTLV(tagMerchantCity, clip(city, maxMerchantCity)))
	b.WriteString(formatTLV(tagAdditionalData, formatTLV("01", clip(ref, maxReference))))
	b.WriteString(tagCRC + "04")

	body := b.String()
	return body + checksum(body), nil
}

// Generator payment.Gateway 的 PayNow 实现；只有 CreateIntent 有意义
type Generator struct {
	cfg    config.PayNowConfig
	qrSize int
	now    func() time.Time
}

func New(cfg config.PayNowConfig) *Generator {
	size := cfg.QRSize
	if size <= 0 {
		size = defaultQRSize
	}
	return &Generator{cfg: cfg, qrSize: size, now: time.Now}
}

func (g *Generator) Method() payment.Method {
	return payment.MethodPayNow
}

// CreateIntent 生成 payload 和 PNG 二维码（base64）
func (g *Generator) CreateIntent(_ context.Context, amount decimal.Decimal, reference string) (*payment.Intent, error) {
	if reference == "" {
		reference = NewReference(g.now())
	}
	reference = clip(reference, maxReference)
	payload, err := BuildPayload(Params{
		Amount:       amount,
		ProxyType:    g.cfg.ProxyType,
		ProxyValue:   g.cfg.ProxyValue,
		MerchantName: g.cfg.MerchantName,
		MerchantCity: g.cfg.MerchantCity,
		Reference:    reference,
	})
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, g.qrSize)
	if err != nil {
		return nil, fmt.Errorf("render paynow qr: %w", err)
	}
	return &payment.Intent{
		Reference: reference,
		Amount:    amount,
		Currency:  "SGD",
		QRCode:    payload,
		Raw: map[string]any{
			payment.RawQRImage: base64.StdEncoding.EncodeToString(png),
		},
	}, nil
}

func (g *Generator) Capture(context.Context, string) (*payment.Capture, error) {
	return nil, fmt.Errorf("%w: paynow has no capture step", payment.ErrUnsupported)
}

func (g *Generator) Refund(context.Context, string, decimal.Decimal) (*payment.RefundResult, error) {
	return nil, fmt.Errorf("%w: paynow refunds are handled offline", payment.ErrUnsupported)
}

var _ payment.Gateway = (*Generator)(nil)
