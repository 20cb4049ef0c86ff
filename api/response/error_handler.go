package response

import (
	stdErrors "errors"
	"net/http"

	"storefront/domain/shared"
	"storefront/pkg/errors"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BadRequest 参数绑定、路径参数解析等在进入应用层之前的失败，固定返回 400
func BadRequest(c *gin.Context, err error, message string) {
	logger.Ctx(c.Request.Context()).Warn(message,
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))

	writeError(c, http.StatusBadRequest, errors.CodeBadRequest, message, nil)
}

// HandleAppError 按应用错误码映射 HTTP 状态码
func HandleAppError(c *gin.Context, err error) {
	HandleAppErrorWithData(c, err, nil)
}

// HandleAppErrorWithData 失败响应里附带业务数据，例如退款结果
func HandleAppErrorWithData(c *gin.Context, err error, data any) {
	appErr := errors.FromDomainError(err)
	status := appErr.HTTPStatusCode()

	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("error_code", string(appErr.Code)),
		zap.Int("http_status", status),
	}
	if appErr.Err != nil {
		fields = append(fields, zap.Error(appErr.Err))
	}

	log := logger.Ctx(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error(appErr.Message, append(fields, zap.Strings("stack", stackOf(err)))...)
	} else {
		log.Warn(appErr.Message, fields...)
	}

	message := appErr.Message
	if appErr.Code == errors.CodeInternal {
		message = "internal server error"
	}
	writeError(c, status, appErr.Code, message, data)
}

func writeError(c *gin.Context, status int, code errors.ErrorCode, message string, data any) {
	c.JSON(status, &Response{
		Success:   false,
		Data:      data,
		Error:     string(code),
		Message:   message,
		Code:      status,
		RequestID: GetRequestID(c),
	})
}

// stackOf 优先使用领域错误创建时捕获的堆栈
func stackOf(err error) []string {
	var stacker shared.Stacker
	if stdErrors.As(err, &stacker) {
		if stack := stacker.Stack(); len(stack) > 0 {
			return stack
		}
	}
	return shared.FormatStack(shared.CaptureStack(4))
}
