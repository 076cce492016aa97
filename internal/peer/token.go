package peer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "sudooom.im.conversation/pkg/errors"
)

// NodeClaims 节点令牌声明
type NodeClaims struct {
	NodeId string `json:"node_id"`
	jwt.RegisteredClaims
}

// TokenService 节点令牌服务
// 联邦内所有节点共享同一密钥，跨节点请求必须携带有效令牌
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
}

// NewTokenService 创建节点令牌服务
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		ttl:       ttl,
	}
}

// Sign 为指定节点签发令牌
func (s *TokenService) Sign(nodeId string) (string, error) {
	now := time.Now()
	claims := &NodeClaims{
		NodeId: nodeId,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// Verify 校验令牌并返回声明
func (s *TokenService) Verify(tokenString string) (*NodeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &NodeClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrTokenInvalid
		}
		return s.secretKey, nil
	})

	if err != nil {
		return nil, apperrors.ErrTokenInvalid.Wrap(err)
	}

	claims, ok := token.Claims.(*NodeClaims)
	if !ok || !token.Valid || claims.NodeId == "" {
		return nil, apperrors.ErrTokenInvalid
	}

	return claims, nil
}
