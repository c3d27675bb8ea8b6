package security

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims 定义了我们 Token 中需要包含的业务信息
// 用户名和头像随 Token 下发，发消息时直接固化为发送者快照
type UserClaims struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	jwt.RegisteredClaims
}
