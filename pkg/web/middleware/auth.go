package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/security"
	weberrors "github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
)

// ClaimsKey gin.Context 中存储 Claims 的 key
const ClaimsKey = "jwt_claims"

// AuthConfig 认证配置
type AuthConfig struct {
	JWTManager   *security.JWTManager
	SkipPaths    []string
	SkipPrefixes []string
}

// Auth JWT 认证中间件，通过后 Claims 写入 gin.Context，用户 ID 写入 request context
func Auth(cfg *AuthConfig) gin.HandlerFunc {
	skipPaths := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = struct{}{}
	}
	header := cfg.JWTManager.Config().HeaderName

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, skip := skipPaths[path]; skip {
			c.Next()
			return
		}
		for _, prefix := range cfg.SkipPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		token := c.GetHeader(header)
		if token == "" {
			abortUnauthorized(c, security.ErrTokenMissing)
			return
		}

		claims, err := cfg.JWTManager.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		c.Set(ClaimsKey, claims)
		ctx := security.SetClaimsToContext(c.Request.Context(), claims)
		ctx = logger.ContextWithUserID(ctx, claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole 要求拥有某个角色
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abortUnauthorized(c, security.ErrTokenMissing)
			return
		}
		if !claims.HasRole(role) {
			c.AbortWithStatusJSON(weberrors.CodeToStatus(weberrors.CodeForbidden), gin.H{
				"code":    weberrors.CodeForbidden,
				"message": "forbidden: missing role " + role,
				"data":    nil,
			})
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(weberrors.CodeToStatus(weberrors.CodeUnAuthorized), gin.H{
		"code":    weberrors.CodeUnAuthorized,
		"message": err.Error(),
		"data":    nil,
	})
}

// GetClaims 从 gin.Context 获取 Claims，找不到时再查 request context
func GetClaims(c *gin.Context) (*security.Claims, bool) {
	if v, exists := c.Get(ClaimsKey); exists {
		claims, ok := v.(*security.Claims)
		return claims, ok
	}
	if c.Request == nil {
		return nil, false
	}
	return security.GetClaimsFromContext(c.Request.Context())
}

// GetUserID 当前认证用户 ID，未认证时为空
func GetUserID(c *gin.Context) string {
	if claims, ok := GetClaims(c); ok {
		return claims.UserID
	}
	return ""
}
