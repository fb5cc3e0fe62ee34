package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/qs3c/nextaction_server/config"
)

// CORS 跨域中间件。client.base_url 总是允许的来源
func CORS(cfg config.CORSConfig, clientURL string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins)+1)
	seen := map[string]bool{}
	for _, o := range append(append([]string{}, cfg.AllowedOrigins...), clientURL) {
		if o == "" || seen[o] {
			continue
		}
		if o == "*" {
			corsCfg.AllowAllOrigins = true
			origins = nil
			break
		}
		seen[o] = true
		origins = append(origins, o)
	}
	if !corsCfg.AllowAllOrigins {
		if len(origins) == 0 {
			corsCfg.AllowAllOrigins = true
		} else {
			corsCfg.AllowOrigins = origins
		}
	}

	return cors.New(corsCfg)
}
