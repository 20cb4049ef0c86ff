package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func writeSuccess(c *gin.Context, status int, data any, message string) {
	c.JSON(status, &Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Code:      status,
		RequestID: GetRequestID(c),
	})
}

func HandleSuccess(c *gin.Context, data any, message string) {
	writeSuccess(c, http.StatusOK, data, message)
}

// HandleCreated 新订单落库等产生新资源的请求
func HandleCreated(c *gin.Context, data any, message string) {
	writeSuccess(c, http.StatusCreated, data, message)
}

// HandleAccepted 结果尚未最终确认（例如退款 pending）
func HandleAccepted(c *gin.Context, data any, message string) {
	writeSuccess(c, http.StatusAccepted, data, message)
}

func HandleNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// HandleList nil 切片输出为 []
func HandleList[T any](c *gin.Context, items []T, message string) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, &ListResponse{
		Success:   true,
		Data:      items,
		Total:     len(items),
		Message:   message,
		Code:      http.StatusOK,
		RequestID: GetRequestID(c),
	})
}
