package security

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
)

// JWTConfig JWT 配置，仅支持 HMAC 签名
type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`

	// Algorithm HS256 / HS384 / HS512
	Algorithm string `mapstructure:"algorithm" json:"algorithm"`

	ExpiresIn time.Duration `mapstructure:"expires_in" json:"expires_in"`
	Issuer    string        `mapstructure:"issuer" json:"issuer"`

	// TokenPrefix 默认 "Bearer "
	TokenPrefix string `mapstructure:"token_prefix" json:"token_prefix"`
	HeaderName  string `mapstructure:"header_name" json:"header_name"`
}

// DefaultJWTConfig 默认配置，SecretKey 必须由调用方提供
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		Algorithm:   "HS256",
		ExpiresIn:   24 * time.Hour,
		Issuer:      "gacha",
		TokenPrefix: "Bearer ",
		HeaderName:  "Authorization",
	}
}

// Claims 玩家身份
type Claims struct {
	jwt.RegisteredClaims

	UserID      string   `json:"uid"`
	Username    string   `json:"username,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Bot         bool     `json:"bot,omitempty"`
}

// HasRole 是否拥有角色
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// JWTManager JWT 签发与校验
type JWTManager struct {
	config *JWTConfig
	method jwt.SigningMethod
	now    func() time.Time
}

// NewJWTManager 创建 JWT 管理器
func NewJWTManager(cfg *JWTConfig) (*JWTManager, error) {
	merged, err := config.MergeConfig(DefaultJWTConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if merged.SecretKey == "" {
		return nil, ErrSecretKeyEmpty
	}

	var method jwt.SigningMethod
	switch strings.ToUpper(merged.Algorithm) {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: %s", ErrAlgorithmInvalid, merged.Algorithm)
	}

	return &JWTManager{config: merged, method: method, now: time.Now}, nil
}

// Config 返回生效的配置
func (m *JWTManager) Config() *JWTConfig {
	return m.config
}

// GenerateToken 签发 Token，未设置的注册字段按配置补齐
func (m *JWTManager) GenerateToken(claims *Claims) (string, error) {
	if claims.UserID == "" {
		return "", ErrSubjectMissing
	}

	now := m.now()
	c := *claims
	if c.Subject == "" {
		c.Subject = c.UserID
	}
	if c.Issuer == "" {
		c.Issuer = m.config.Issuer
	}
	if c.IssuedAt == nil {
		c.IssuedAt = jwt.NewNumericDate(now)
	}
	if c.ExpiresAt == nil && m.config.ExpiresIn > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(m.config.ExpiresIn))
	}

	signed, err := jwt.NewWithClaims(m.method, &c).SignedString([]byte(m.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token failed: %w", err)
	}
	return signed, nil
}

// ValidateToken 校验 Token 并返回 Claims，可直接传入带前缀的 header 值
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = m.StripPrefix(tokenString)
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(m.config.SecretKey), nil
	}, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	if claims.UserID == "" {
		return nil, ErrSubjectMissing
	}
	return claims, nil
}

// StripPrefix 去掉 "Bearer " 前缀
func (m *JWTManager) StripPrefix(tokenString string) string {
	if m.config.TokenPrefix != "" {
		tokenString = strings.TrimPrefix(tokenString, m.config.TokenPrefix)
	}
	return strings.TrimSpace(tokenString)
}

func wrapError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotValidYet
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

type claimsKey struct{}

// SetClaimsToContext 把 Claims 放入 context
func SetClaimsToContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaimsFromContext 从 context 读取 Claims
func GetClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}
