// Package paypal PayPal REST v2 适配器（Orders + Payments）
package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront/config"
	"storefront/domain/payment"
	"storefront/infrastructure/gateway"
	"storefront/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// token 提前一分钟视为过期
const tokenSkew = time.Minute

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	currency     string
	http         *gateway.Client

	sf      singleflight.Group
	mu      sync.RWMutex
	token   string
	expires time.Time
}

func New(cfg config.PayPalConfig, currency string, breaker config.BreakerConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		currency:     currency,
		http:         gateway.NewClient("paypal", cfg.Timeout, breaker),
	}
}

func (c *Client) Method() payment.Method {
	return payment.MethodPayPal
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// accessToken 缓存 OAuth token；并发请求只触发一次获取
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	token, expires := c.token, c.expires
	c.mu.RUnlock()
	if token != "" && time.Now().Before(expires) {
		return token, nil
	}

	v, err, _ := c.sf.Do("token", func() (any, error) {
		form := url.Values{"grant_type": {"client_credentials"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.SetBasicAuth(c.clientID, c.clientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return "", err
		}
		var body tokenResponse
		if err := resp.Decode(&body); err != nil {
			return "", err
		}
		if body.AccessToken == "" {
			return "", fmt.Errorf("%w: no access token received", payment.ErrGatewayAuth)
		}

		ttl := time.Duration(body.ExpiresIn)*time.Second - tokenSkew
		if ttl <= 0 {
			ttl = time.Minute
		}
		c.mu.Lock()
		c.token, c.expires = body.AccessToken, time.Now().Add(ttl)
		c.mu.Unlock()
		return body.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) post(ctx context.Context, path string, body any) (*gateway.Response, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := gateway.JSONRequest(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("PayPal-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if resp != nil && resp.StatusCode == http.StatusUnauthorized {
		c.dropToken()
	}
	return resp, err
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Amount      money  `json:"amount"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type createOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateIntent 创建 CAPTURE 类型的 PayPal 订单，金额必须是购物车合计
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, reference string) (*payment.Intent, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", payment.ErrGatewayRejected)
	}
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: reference,
			Amount:      money{CurrencyCode: c.currency, Value: amount.StringFixed(2)},
		}},
	}
	resp, err := c.post(ctx, "/v2/checkout/orders", body)
	if err != nil {
		return nil, err
	}
	var out createOrderResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: order id missing", payment.ErrOutcomeUnknown)
	}

	logger.Ctx(ctx).Info("PayPal order created",
		zap.String("paypal_order_id", out.ID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &payment.Intent{
		Reference: out.ID,
		Amount:    amount,
		Currency:  c.currency,
		Raw:       map[string]any{"status": out.Status},
	}, nil
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		PayerID      string `json:"payer_id"`
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID         string    `json:"id"`
				Status     string    `json:"status"`
				Amount     money     `json:"amount"`
				CreateTime time.Time `json:"create_time"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// Capture 扣款；返回的 Status 以 capture 自身状态为准
func (c *Client) Capture(ctx context.Context, paypalOrderID string) (*payment.Capture, error) {
	if paypalOrderID == "" {
		return nil, fmt.Errorf("%w: paypal order id required", payment.ErrGatewayRejected)
	}
	resp, err := c.post(ctx, "/v2/checkout/orders/"+url.PathEscape(paypalOrderID)+"/capture", nil)
	if err != nil {
		return nil, err
	}
	var out captureResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}

	result := &payment.Capture{
		PayerID:    out.Payer.PayerID,
		PayerEmail: out.Payer.EmailAddress,
		Status:     out.Status,
		Currency:   c.currency,
		Time:       time.Now(),
	}
	if len(out.PurchaseUnits) > 0 && len(out.PurchaseUnits[0].Payments.Captures) > 0 {
		cp := out.PurchaseUnits[0].Payments.Captures[0]
		result.CaptureID = cp.ID
		if cp.Status != "" {
			result.Status = cp.Status
		}
		if cp.Amount.CurrencyCode != "" {
			result.Currency = cp.Amount.CurrencyCode
		}
		if v, err := decimal.NewFromString(cp.Amount.Value); err == nil {
			result.Amount = v
		}
		if !cp.CreateTime.IsZero() {
			result.Time = cp.CreateTime
		}
	}

	logger.Ctx(ctx).Info("PayPal capture finished",
		zap.String("paypal_order_id", paypalOrderID),
		zap.String("capture_id", result.CaptureID),
		zap.String("status", result.Status),
	)
	return result, nil
}

type refundRequest struct {
	Amount *money `json:"amount,omitempty"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Refund 按 capture 退款；amount 为零时退全款
func (c *Client) Refund(ctx context.Context, captureID string, amount decimal.Decimal) (*payment.RefundResult, error) {
	if captureID == "" {
		return nil, fmt.Errorf("%w: capture id required", payment.ErrGatewayRejected)
	}
	body := refundRequest{}
	if amount.IsPositive() {
		body.Amount = &money{CurrencyCode: c.currency, Value: amount.StringFixed(2)}
	}
	resp, err := c.post(ctx, "/v2/payments/captures/"+url.PathEscape(captureID)+"/refund", body)
	if err != nil {
		return nil, err
	}
	var out refundResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info("PayPal refund finished",
		zap.String("capture_id", captureID),
		zap.String("refund_id", out.ID),
		zap.String("status", out.Status),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &payment.RefundResult{RefundID: out.ID, Status: out.Status}, nil
}

var _ payment.Gateway = (*Client)(nil)
