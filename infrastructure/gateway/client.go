/*
Package gateway 支付网关 HTTP 调用的公共部分：超时、熔断和错误分类。

分类规则:
  - 熔断打开 / 连接建立失败: payment.ErrGatewayUnavailable（请求没有到达网关）
  - 超时 / 连接中断 / 5xx: payment.ErrOutcomeUnknown（网关可能已经执行）
  - 401 / 403: payment.ErrGatewayAuth
  - 其他 4xx: payment.ErrGatewayRejected

只有"未知"和"不可用"两类计入熔断失败次数。
*/
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"storefront/config"
	"storefront/domain/payment"
	"storefront/pkg/logger"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// Response 网关返回的状态码与原始 body
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode 解析 JSON body
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: malformed gateway response: %v", payment.ErrOutcomeUnknown, err)
	}
	return nil
}

// Client 带熔断的 HTTP 客户端，每个网关一个实例
type Client struct {
	name    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Response]
}

func NewClient(name string, timeout time.Duration, cfg config.BreakerConfig) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		name:    name,
		http:    &http.Client{Timeout: timeout},
		breaker: newBreaker(name, cfg),
	}
}

func newBreaker(name string, cfg config.BreakerConfig) *gobreaker.CircuitBreaker[*Response] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Gateway circuit breaker state changed",
				zap.String("gateway", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// State 当前熔断状态
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// JSONRequest 构造 JSON 请求；body 为 nil 时不带 body
func JSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Do 发送请求并按状态码分类；2xx 返回 (resp, nil)，其余返回带分类哨兵的错误和已读取的 resp
func (c *Client) Do(req *http.Request) (*Response, error) {
	started := time.Now()
	resp, err := c.breaker.Execute(func() (*Response, error) {
		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, classifyTransport(err)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: reading response: %v", payment.ErrOutcomeUnknown, err)
		}
		r := &Response{StatusCode: httpResp.StatusCode, Body: body}
		if httpResp.StatusCode >= 500 {
			return r, fmt.Errorf("%w: %s returned %d", payment.ErrOutcomeUnknown, c.name, httpResp.StatusCode)
		}
		return r, nil
	})

	log := logger.Ctx(req.Context()).With(
		zap.String("gateway", c.name),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("latency", time.Since(started)),
	)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Warn("Gateway call short-circuited", zap.Error(err))
		return nil, fmt.Errorf("%w: %s circuit open", payment.ErrGatewayUnavailable, c.name)
	}
	if err != nil {
		log.Error("Gateway call failed", zap.Error(err))
		return resp, err
	}

	log.Debug("Gateway call completed", zap.Int("status", resp.StatusCode))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp, fmt.Errorf("%w: %s returned %d", payment.ErrGatewayAuth, c.name, resp.StatusCode)
	case resp.StatusCode >= 400:
		return resp, fmt.Errorf("%w: %s returned %d: %s", payment.ErrGatewayRejected, c.name, resp.StatusCode, truncate(resp.Body))
	}
	return resp, nil
}

func classifyTransport(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	return fmt.Errorf("%w: %v", payment.ErrOutcomeUnknown, err)
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
