/*
Package response - API 层统一响应处理

1. 错误码到 HTTP 状态码的映射只发生在这里
2. 错误响应不暴露内部细节，内部错误统一返回 "internal server error"
3. 所有响应携带 RequestID，便于和结算日志对齐

响应格式:

	成功: { success: true, data: {...}, message: "...", code: 200, request_id: "..." }
	列表: { success: true, data: [...], total: N, message: "...", code: 200, request_id: "..." }
	失败: { success: false, error: "ERROR_CODE", message: "...", code: 4xx/5xx, request_id: "...", data: 可选 }

退款接口在失败时也会带上 data（退款结果），调用方据此区分 error / unsupported。
*/
package response

import "github.com/gin-gonic/gin"

const (
	// RequestIDKey gin context 中保存请求 ID 的键
	RequestIDKey = "request_id"
	// RequestIDHeader 请求/响应头中的请求 ID
	RequestIDHeader = "X-Request-ID"
)

type Response struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ListResponse data 总是数组，即使为空
type ListResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// GetRequestID 未经过 RequestIDMiddleware 时返回 ""
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
