package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// 错误码定义
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeAuthFailed       = 1001
	CodePermissionDenied = 1002
	CodeResourceNotFound = 1003
	CodeQuotaExceeded    = 1004
	CodeNoBillingAccount = 1005
	CodeGenerationFailed = 5001
	CodeServerError      = 5000
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:          "success",
	CodeParamError:       "Validation failed",
	CodeAuthFailed:       "Unauthorized",
	CodePermissionDenied: "Forbidden",
	CodeResourceNotFound: "Not found",
	CodeQuotaExceeded:    "Daily limit reached",
	CodeNoBillingAccount: "No billing account",
	CodeGenerationFailed: "Failed to generate next action",
	CodeServerError:      "Internal server error",
}

// 错误码对应的 HTTP 状态码
var codeStatus = map[int]int{
	CodeSuccess:          http.StatusOK,
	CodeParamError:       http.StatusBadRequest,
	CodeAuthFailed:       http.StatusUnauthorized,
	CodePermissionDenied: http.StatusForbidden,
	CodeResourceNotFound: http.StatusNotFound,
	CodeQuotaExceeded:    http.StatusForbidden,
	CodeNoBillingAccount: http.StatusBadRequest,
	CodeGenerationFailed: http.StatusInternalServerError,
	CodeServerError:      http.StatusInternalServerError,
}

// ErrorBody 错误响应结构
type ErrorBody struct {
	Code    int         `json:"code"`
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// StatusFor 返回错误码对应的 HTTP 状态码
func StatusFor(code int) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Success 成功响应，直接返回资源
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent 无内容响应
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error 错误响应，并中止后续处理
func Error(c *gin.Context, code int, message string) {
	ErrorWithDetails(c, code, message, nil)
}

// ErrorWithDetails 带详情的错误响应
func ErrorWithDetails(c *gin.Context, code int, message string, details interface{}) {
	c.AbortWithStatusJSON(StatusFor(code), ErrorBody{
		Code:    code,
		Error:   codeMessages[code],
		Message: message,
		Details: details,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// ValidationError 把绑定错误转换成逐字段的错误详情
func ValidationError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldError{
				Field: lowerFirst(fe.Field()),
				Rule:  fe.Tag(),
				Param: fe.Param(),
			})
		}
		ErrorWithDetails(c, CodeParamError, "", details)
		return
	}
	Error(c, CodeParamError, "invalid request body")
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// PermissionError 权限不足
func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// QuotaError 配额不足
func QuotaError(c *gin.Context, message string) {
	Error(c, CodeQuotaExceeded, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
