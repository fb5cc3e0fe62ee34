package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/nextaction_server/internal/pkg/response"
)

// BodyKey 已校验的请求体在 gin.Context 中的键
const BodyKey = "body"

// BindJSON 在后续中间件之前解析并校验 JSON 请求体，失败时直接返回 400。
// 放在 EntitlementCheck 前面，无效请求不会占用额度
func BindJSON[T any]() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body T
		if err := c.ShouldBindJSON(&body); err != nil {
			response.ValidationError(c, err)
			return
		}
		c.Set(BodyKey, &body)
		c.Next()
	}
}

// Body 取出 BindJSON 保存的请求体
func Body[T any](c *gin.Context) (*T, bool) {
	v, exists := c.Get(BodyKey)
	if !exists {
		return nil, false
	}
	body, ok := v.(*T)
	return body, ok
}
