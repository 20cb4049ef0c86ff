// Package nets NETS QR 沙箱适配器：请求二维码、查询交易状态。NETS QR 不支持网关退款。
package nets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"storefront/config"
	"storefront/domain/payment"
	"storefront/infrastructure/gateway"
	"storefront/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	requestPath = "/api/v1/common/payments/nets-qr/request"
	queryPath   = "/api/v1/common/payments/nets-qr/query"

	responseOK  = "00"
	txnStatusOK = 1
)

type Client struct {
	baseURL   string
	apiKey    string
	projectID string
	txnID     string
	http      *gateway.Client
}

func New(cfg config.NETSConfig, breaker config.BreakerConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		projectID: cfg.ProjectID,
		txnID:     cfg.TxnID,
		http:      gateway.NewClient("nets", cfg.Timeout, breaker),
	}
}

func (c *Client) Method() payment.Method {
	return payment.MethodNetsQR
}

type envelope struct {
	Result struct {
		Data qrData `json:"data"`
	} `json:"result"`
}

type qrData struct {
	ResponseCode    string `json:"response_code"`
	TxnStatus       int    `json:"txn_status"`
	QRCode          string `json:"qr_code"`
	TxnRetrievalRef string `json:"txn_retrieval_ref"`
	NetworkStatus   int    `json:"network_status"`
	ErrorMessage    string `json:"error_message"`
}

func (c *Client) post(ctx context.Context, path string, body any) (*gateway.Response, *qrData, error) {
	req, err := gateway.JSONRequest(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("project-id", c.projectID)

	resp, err := c.http.Do(req)
	if err != nil {
		return resp, nil, err
	}
	var env envelope
	if err := resp.Decode(&env); err != nil {
		return resp, nil, err
	}
	return resp, &env.Result.Data, nil
}

// CreateIntent 请求 NETS 动态二维码；reference 不使用，幂等键由网关返回的 txn_retrieval_ref 担任
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, _ string) (*payment.Intent, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", payment.ErrGatewayRejected)
	}
	body := map[string]any{
		"txn_id":         c.txnID,
		"amt_in_dollars": amount.StringFixed(2),
		"notify_mobile":  0,
	}
	resp, data, err := c.post(ctx, requestPath, body)
	if err != nil {
		return nil, err
	}

	if data.ResponseCode != responseOK || data.TxnStatus != txnStatusOK || data.QRCode == "" || data.TxnRetrievalRef == "" {
		msg := data.ErrorMessage
		if msg == "" {
			msg = "qr code not generated"
		}
		logger.Ctx(ctx).Warn("NETS QR request rejected",
			zap.String("response_code", data.ResponseCode),
			zap.Int("network_status", data.NetworkStatus),
		)
		return nil, fmt.Errorf("%w: %s (response_code=%s)", payment.ErrGatewayRejected, msg, data.ResponseCode)
	}

	logger.Ctx(ctx).Info("NETS QR generated",
		zap.String("txn_retrieval_ref", data.TxnRetrievalRef),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &payment.Intent{
		Reference: data.TxnRetrievalRef,
		Amount:    amount,
		Currency:  "SGD",
		QRCode:    data.QRCode,
		Raw: map[string]any{
			payment.RawResponseCode:  data.ResponseCode,
			payment.RawNetworkStatus: data.NetworkStatus,
			payment.RawPayload:       string(resp.Body),
		},
	}, nil
}

// Capture 查询交易状态：成功返回 COMPLETED，否则 PENDING
func (c *Client) Capture(ctx context.Context, txnRetrievalRef string) (*payment.Capture, error) {
	if txnRetrievalRef == "" {
		return nil, fmt.Errorf("%w: txn_retrieval_ref required", payment.ErrGatewayRejected)
	}
	body := map[string]any{
		"txn_retrieval_ref":       txnRetrievalRef,
		"frontend_timeout_status": 0,
	}
	_, data, err := c.post(ctx, queryPath, body)
	if err != nil {
		return nil, err
	}

	status := payment.StatusPending
	if data.ResponseCode == responseOK && data.TxnStatus == txnStatusOK {
		status = payment.StatusCompleted
	}
	return &payment.Capture{
		CaptureID: txnRetrievalRef,
		PayerID:   string(payment.MethodNets),
		Currency:  "SGD",
		Status:    status,
	}, nil
}

func (c *Client) Refund(context.Context, string, decimal.Decimal) (*payment.RefundResult, error) {
	return nil, fmt.Errorf("%w: NETS QR refunds are handled offline", payment.ErrUnsupported)
}

// ParseNotification 解析 webhook body，兼容带 result.data 外壳的格式
func ParseNotification(body []byte) (*payment.NetsNotification, error) {
	var wrapped struct {
		Result struct {
			Data payment.NetsNotification `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Result.Data.TxnRetrievalRef != "" {
		return &wrapped.Result.Data, nil
	}
	var n payment.NetsNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("invalid nets notification: %w", err)
	}
	if n.TxnRetrievalRef == "" {
		return nil, fmt.Errorf("invalid nets notification: txn_retrieval_ref missing")
	}
	return &n, nil
}

var _ payment.Gateway = (*Client)(nil)
